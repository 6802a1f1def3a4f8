package admin

import (
	"context"
	"net/netip"

	"go4.org/netipx"

	"github.com/coreyleavitt/tailscale-openwrt/src/panel"
)

type GetRoutesRequest struct{}

type GetRoutesResponse struct {
	Routes   string           `json:"routes"`
	Prefixes []netip.Prefix   `json:"prefixes"`
	Ranges   []netipx.IPRange `json:"ranges"`
}

func (a *AdminSocket) getRoutesHandler(_ context.Context, _ *GetRoutesRequest, res *GetRoutesResponse) error {
	res.Routes = a.panel.View().Status.AdvertiseRoutes
	routes, err := panel.ParseRoutes(res.Routes)
	if err != nil {
		return err
	}
	res.Prefixes = routes.Prefixes
	res.Ranges = routes.Ranges
	return nil
}
