package admin

import "context"

type GetDetailsRequest struct{}

type GetDetailsResponse struct {
	Details string `json:"details"`
}

func (a *AdminSocket) getDetailsHandler(ctx context.Context, _ *GetDetailsRequest, res *GetDetailsResponse) error {
	details, err := a.panel.VerboseStatus(ctx)
	if err != nil {
		return err
	}
	res.Details = details
	return nil
}
