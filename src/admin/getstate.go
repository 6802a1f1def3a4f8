package admin

import (
	"context"

	"github.com/coreyleavitt/tailscale-openwrt/src/panel"
	"github.com/coreyleavitt/tailscale-openwrt/src/version"
)

type GetStateRequest struct{}

// GetStateResponse is returned by getState and by every action, carrying
// the state after the action's resync.
type GetStateResponse struct {
	BuildName         string `json:"build_name"`
	BuildVersion      string `json:"build_version"`
	KillswitchEnabled bool   `json:"killswitch_enabled"`
	CurrentExitNode   string `json:"current_exit_node"`
	panel.View
}

func stateResponse(v panel.View, res *GetStateResponse) {
	res.BuildName = version.BuildName()
	res.BuildVersion = version.BuildVersion()
	res.KillswitchEnabled = v.Status.KillswitchEnabled()
	res.CurrentExitNode = v.ExitNodeLabel()
	res.View = v
}

func (a *AdminSocket) getStateHandler(_ context.Context, _ *GetStateRequest, res *GetStateResponse) error {
	stateResponse(a.panel.View(), res)
	return nil
}

type PollRequest struct{}

func (a *AdminSocket) pollHandler(ctx context.Context, _ *PollRequest, res *GetStateResponse) error {
	if err := a.panel.Poll(ctx); err != nil {
		return err
	}
	stateResponse(a.panel.View(), res)
	return nil
}

type GetExitNodesRequest struct{}

type GetExitNodesResponse struct {
	Current   string   `json:"current"`
	Selected  string   `json:"selected"`
	ExitNodes []string `json:"exit_nodes"`
}

func (a *AdminSocket) getExitNodesHandler(_ context.Context, _ *GetExitNodesRequest, res *GetExitNodesResponse) error {
	v := a.panel.View()
	res.Current = v.Status.ExitNodeSelection()
	res.Selected = v.ExitNodeSelection
	res.ExitNodes = v.ExitNodes
	return nil
}
