package webui

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/csrf"

	"github.com/coreyleavitt/tailscale-openwrt/src/netproto"
	"github.com/coreyleavitt/tailscale-openwrt/src/panel"
)

type mi = map[string]any

// api serves the JSON endpoints under /api/ used by the panel page.
type api struct {
	w *WebUIServer
}

type buttons struct {
	EnableKillswitch  bool   `json:"enable_killswitch"`
	DisableKillswitch bool   `json:"disable_killswitch"`
	AcceptRoutes      string `json:"accept_routes"`
	SSH               string `json:"ssh"`
	Details           string `json:"details"`
}

// stateResponse is the view together with the labels the page renders.
type stateResponse struct {
	panel.View
	KillswitchEnabled bool    `json:"killswitch_enabled"`
	CurrentExitNode   string  `json:"current_exit_node"`
	Buttons           buttons `json:"buttons"`
}

func newStateResponse(v panel.View) stateResponse {
	return stateResponse{
		View:              v,
		KillswitchEnabled: v.Status.KillswitchEnabled(),
		CurrentExitNode:   v.ExitNodeLabel(),
		Buttons: buttons{
			EnableKillswitch:  v.CanEnableKillswitch(),
			DisableKillswitch: v.CanDisableKillswitch(),
			AcceptRoutes:      v.AcceptRoutesButton(),
			SSH:               v.SSHButton(),
			Details:           v.DetailsButton(),
		},
	}
}

type killswitchRequest struct {
	Action string `json:"action"`
}

type exitNodeRequest struct {
	Node string `json:"node"`
}

type flagRequest struct {
	Enabled *bool `json:"enabled"`
}

type routesRequest struct {
	Routes string `json:"routes"`
}

type dismissRequest struct {
	ID string `json:"id"`
}

type interfaceResponse struct {
	Protocol netproto.Descriptor `json:"protocol"`
	Link     netproto.LinkState  `json:"link"`
}

func (a *api) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-CSRF-Token", csrf.Token(r))
	path := strings.TrimPrefix(r.URL.Path, "/api/")
	p := a.w.panel
	ctx := r.Context()
	reply := func(v panel.View, err error) { a.reply(w, v, err) }

	switch {
	case path == "state":
		if !allowMethod(w, r, http.MethodGet) {
			return
		}
		writeJSON(w, http.StatusOK, newStateResponse(p.View()))
	case path == "interface":
		if !allowMethod(w, r, http.MethodGet) {
			return
		}
		a.serveInterface(w)
	case path == "poll":
		if !allowMethod(w, r, http.MethodPost) {
			return
		}
		err := p.Poll(ctx)
		reply(p.View(), err)
	case path == "killswitch":
		var req killswitchRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		var enable bool
		switch strings.ToLower(req.Action) {
		case "enable":
			enable = true
		case "disable":
		default:
			writeJSON(w, http.StatusBadRequest, mi{"error": "action must be enable or disable"})
			return
		}
		reply(p.SetKillswitch(ctx, enable))
	case path == "exitnode":
		var req exitNodeRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		reply(p.ApplyExitNode(ctx, req.Node))
	case path == "acceptroutes":
		var req flagRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		reply(a.flag(ctx, req, p.ToggleAcceptRoutes, p.SetAcceptRoutes))
	case path == "ssh":
		var req flagRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		reply(a.flag(ctx, req, p.ToggleSSH, p.SetSSH))
	case path == "advertiseroutes":
		var req routesRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		reply(p.ApplyAdvertiseRoutes(ctx, req.Routes))
	case path == "details":
		if !allowMethod(w, r, http.MethodPost) {
			return
		}
		reply(p.ToggleDetails(ctx))
	case path == "notifications/dismiss":
		var req dismissRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		if !p.Dismiss(req.ID) {
			writeJSON(w, http.StatusNotFound, mi{"error": "no such notification", "state": newStateResponse(p.View())})
			return
		}
		writeJSON(w, http.StatusOK, newStateResponse(p.View()))
	default:
		writeJSON(w, http.StatusNotFound, mi{"error": "unknown endpoint " + path})
	}
}

func (a *api) flag(ctx context.Context, req flagRequest,
	toggle func(context.Context) (panel.View, error),
	set func(context.Context, bool) (panel.View, error),
) (panel.View, error) {
	if req.Enabled == nil {
		return toggle(ctx)
	}
	return set(ctx, *req.Enabled)
}

func (a *api) serveInterface(w http.ResponseWriter) {
	ifname := string(a.w.config.ifname)
	if ifname == "" {
		ifname = netproto.TailscaleInterface
	}
	proto, _ := netproto.Lookup(netproto.TailscaleName)
	link, err := netproto.GetLinkState(ifname)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, mi{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, interfaceResponse{
		Protocol: netproto.Describe(proto),
		Link:     link,
	})
}

// reply writes the view after an action, or the error with the view if the
// action failed.
func (a *api) reply(w http.ResponseWriter, v panel.View, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, newStateResponse(v))
		return
	}
	writeJSON(w, statusCode(err), mi{"error": err.Error(), "state": newStateResponse(v)})
}

func statusCode(err error) int {
	var routeErr *panel.RouteError
	switch {
	case errors.Is(err, panel.ErrBusy):
		return http.StatusConflict
	case errors.As(err, &routeErr):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeJSON(w, http.StatusMethodNotAllowed, mi{"error": "method not allowed"})
	return false
}

func decodeRequest(w http.ResponseWriter, r *http.Request, req any) bool {
	if !allowMethod(w, r, http.MethodPost) {
		return false
	}
	// An empty body leaves the request at its zero value.
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(req)
	if err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, mi{"error": "invalid request: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
