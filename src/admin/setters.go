package admin

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

type SetKillswitchRequest struct {
	Action string `json:"action"`
}

func (a *AdminSocket) setKillswitchHandler(ctx context.Context, req *SetKillswitchRequest, res *GetStateResponse) error {
	var enable bool
	switch strings.ToLower(req.Action) {
	case "enable", "on":
		enable = true
	case "disable", "off":
	default:
		return fmt.Errorf("unknown killswitch action %q, expected enable or disable", req.Action)
	}
	v, err := a.panel.SetKillswitch(ctx, enable)
	if err != nil {
		return err
	}
	stateResponse(v, res)
	return nil
}

type SetExitNodeRequest struct {
	Node string `json:"node"`
}

func (a *AdminSocket) setExitNodeHandler(ctx context.Context, req *SetExitNodeRequest, res *GetStateResponse) error {
	v, err := a.panel.ApplyExitNode(ctx, req.Node)
	if err != nil {
		return err
	}
	stateResponse(v, res)
	return nil
}

// SetFlagRequest carries a boolean as text, since the CLI sends every
// argument as a string.
type SetFlagRequest struct {
	Enabled string `json:"enabled"`
}

func (r *SetFlagRequest) value() (bool, error) {
	enabled, err := strconv.ParseBool(r.Enabled)
	if err != nil {
		return false, fmt.Errorf("invalid value %q for enabled, expected true or false", r.Enabled)
	}
	return enabled, nil
}

func (a *AdminSocket) setAcceptRoutesHandler(ctx context.Context, req *SetFlagRequest, res *GetStateResponse) error {
	enabled, err := req.value()
	if err != nil {
		return err
	}
	v, err := a.panel.SetAcceptRoutes(ctx, enabled)
	if err != nil {
		return err
	}
	stateResponse(v, res)
	return nil
}

type ToggleRequest struct{}

func (a *AdminSocket) toggleAcceptRoutesHandler(ctx context.Context, _ *ToggleRequest, res *GetStateResponse) error {
	v, err := a.panel.ToggleAcceptRoutes(ctx)
	if err != nil {
		return err
	}
	stateResponse(v, res)
	return nil
}

func (a *AdminSocket) setSSHHandler(ctx context.Context, req *SetFlagRequest, res *GetStateResponse) error {
	enabled, err := req.value()
	if err != nil {
		return err
	}
	v, err := a.panel.SetSSH(ctx, enabled)
	if err != nil {
		return err
	}
	stateResponse(v, res)
	return nil
}

func (a *AdminSocket) toggleSSHHandler(ctx context.Context, _ *ToggleRequest, res *GetStateResponse) error {
	v, err := a.panel.ToggleSSH(ctx)
	if err != nil {
		return err
	}
	stateResponse(v, res)
	return nil
}

type SetAdvertiseRoutesRequest struct {
	Routes string `json:"routes"`
}

func (a *AdminSocket) setAdvertiseRoutesHandler(ctx context.Context, req *SetAdvertiseRoutesRequest, res *GetStateResponse) error {
	v, err := a.panel.ApplyAdvertiseRoutes(ctx, req.Routes)
	if err != nil {
		return err
	}
	stateResponse(v, res)
	return nil
}
