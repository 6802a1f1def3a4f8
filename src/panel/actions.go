package panel

import (
	"context"
	"fmt"
	"strings"

	"github.com/Arceliar/phony"

	"github.com/coreyleavitt/tailscale-openwrt/src/backend"
)

func (p *Panel) begin(c Control) error {
	var err error
	phony.Block(p, func() {
		if p._busy[c] {
			err = ErrBusy
			return
		}
		p._busy[c] = true
		p._generation++
	})
	return err
}

// finish releases the control, records the outcome and returns the view
// after the action.
func (p *Panel) finish(c Control, action string, err error) (View, error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	actionsTotal.WithLabelValues(action, outcome).Inc()
	var v View
	phony.Block(p, func() {
		delete(p._busy, c)
		p._generation++
		v = p._view()
	})
	return v, err
}

func (p *Panel) notifyError(err error) {
	p.notify(KindError, fmt.Sprintf("Error: %s", err))
}

// resync fetches the full status and applies it. The returned status is the
// one fetched, even if newer fetches have already overwritten some fields.
func (p *Panel) resync(ctx context.Context) (backend.Status, error) {
	seq := p.issue()
	st, err := p.backend.FullStatus(ctx)
	if err != nil {
		return st, err
	}
	phony.Block(p, func() {
		p._apply(seq, st)
	})
	return st, nil
}

// SetKillswitch enables or disables the killswitch. If the call or the
// following resync fails, the status is queried once more so that the
// buttons match the real state; if that fails too the previous state stays
// displayed.
func (p *Panel) SetKillswitch(ctx context.Context, enable bool) (View, error) {
	if err := p.begin(ControlKillswitch); err != nil {
		return p.View(), err
	}
	action, msg := backend.KillswitchDisable, "Killswitch disabled successfully"
	if enable {
		action, msg = backend.KillswitchEnable, "Killswitch enabled successfully"
	}
	err := func() error {
		if _, err := p.backend.Killswitch(ctx, action); err != nil {
			return err
		}
		p.notify(KindInfo, msg)
		_, err := p.resync(ctx)
		return err
	}()
	if err != nil {
		p.notifyError(err)
		if _, rerr := p.resync(ctx); rerr != nil {
			p.log.Warnln("Failed to query killswitch state:", rerr)
		}
	}
	return p.finish(ControlKillswitch, "killswitch_"+string(action), err)
}

// ApplyExitNode selects node as the exit node. An empty node disables exit
// node routing. On success the selector follows the resynced exit node.
func (p *Panel) ApplyExitNode(ctx context.Context, node string) (View, error) {
	if node == "" {
		node = backend.NoExitNode
	}
	if err := p.begin(ControlExitNode); err != nil {
		return p.View(), err
	}
	phony.Block(p, func() {
		p._selection = node
	})
	err := func() error {
		if _, err := p.backend.SetExitNode(ctx, node); err != nil {
			return err
		}
		p.notify(KindInfo, "Exit node updated")
		st, err := p.resync(ctx)
		if err != nil {
			return err
		}
		phony.Block(p, func() {
			p._selection = st.ExitNodeSelection()
		})
		return nil
	}()
	if err != nil {
		p.notifyError(err)
	}
	return p.finish(ControlExitNode, "exit_node", err)
}

// flag describes a boolean setting that is toggled with one call and read
// back with another.
type flag struct {
	control Control
	action  string
	label   string
	field   field
	get     func(Backend, context.Context) (bool, error)
	set     func(Backend, context.Context, bool) (backend.Result, error)
	current func(backend.Status) bool
	store   func(*backend.Status, bool)
}

var acceptRoutesFlag = flag{
	control: ControlAcceptRoutes,
	action:  "accept_routes",
	label:   "Accept routes",
	field:   fieldAcceptRoutes,
	get:     Backend.AcceptRoutes,
	set:     Backend.SetAcceptRoutes,
	current: func(st backend.Status) bool { return st.AcceptRoutes },
	store:   func(st *backend.Status, v bool) { st.AcceptRoutes = v },
}

var sshFlag = flag{
	control: ControlSSH,
	action:  "ssh",
	label:   "SSH",
	field:   fieldSSH,
	get:     Backend.SSH,
	set:     Backend.SetSSH,
	current: func(st backend.Status) bool { return st.SSH },
	store:   func(st *backend.Status, v bool) { st.SSH = v },
}

// setFlag sets f to *target, or flips the displayed value when target is
// nil, then reads back only that one flag.
func (p *Panel) setFlag(ctx context.Context, f flag, target *bool) (View, error) {
	if err := p.begin(f.control); err != nil {
		return p.View(), err
	}
	var enabled bool
	if target != nil {
		enabled = *target
	} else {
		phony.Block(p, func() {
			enabled = !f.current(p._status)
		})
	}
	err := func() error {
		if _, err := f.set(p.backend, ctx, enabled); err != nil {
			return err
		}
		p.notify(KindInfo, fmt.Sprintf("%s %s", f.label, enabledWord(enabled)))
		seq := p.issue()
		v, err := f.get(p.backend, ctx)
		if err != nil {
			return err
		}
		phony.Block(p, func() {
			var st backend.Status
			f.store(&st, v)
			p._apply(seq, st, f.field)
		})
		return nil
	}()
	if err != nil {
		p.notifyError(err)
	}
	return p.finish(f.control, f.action, err)
}

// ToggleAcceptRoutes flips the accept routes setting from its displayed
// value.
func (p *Panel) ToggleAcceptRoutes(ctx context.Context) (View, error) {
	return p.setFlag(ctx, acceptRoutesFlag, nil)
}

// SetAcceptRoutes sets whether routes advertised by other nodes are
// accepted.
func (p *Panel) SetAcceptRoutes(ctx context.Context, enabled bool) (View, error) {
	return p.setFlag(ctx, acceptRoutesFlag, &enabled)
}

// ToggleSSH flips the SSH setting from its displayed value.
func (p *Panel) ToggleSSH(ctx context.Context) (View, error) {
	return p.setFlag(ctx, sshFlag, nil)
}

// SetSSH enables or disables the Tailscale SSH server.
func (p *Panel) SetSSH(ctx context.Context, enabled bool) (View, error) {
	return p.setFlag(ctx, sshFlag, &enabled)
}

// ApplyAdvertiseRoutes validates and applies a comma separated list of
// subnets. Invalid input returns a *RouteError without calling the backend.
// A backend reply reporting an error is shown as an error notification but
// is not returned as an error.
func (p *Panel) ApplyAdvertiseRoutes(ctx context.Context, input string) (View, error) {
	routes := strings.TrimSpace(input)
	if err := p.begin(ControlAdvertiseRoutes); err != nil {
		return p.View(), err
	}
	phony.Block(p, func() {
		p._routesInput = routes
	})
	if err := ValidateRoutes(routes); err != nil {
		p.notify(KindError, err.Error())
		return p.finish(ControlAdvertiseRoutes, "advertise_routes", err)
	}
	err := func() error {
		res, err := p.backend.SetAdvertiseRoutes(ctx, routes)
		if err != nil {
			return err
		}
		if res.Failed() {
			p.notify(KindError, res.Result)
		} else {
			p.notify(KindInfo, "Advertised routes updated")
		}
		st, err := p.resync(ctx)
		if err != nil {
			return err
		}
		phony.Block(p, func() {
			p._routesInput = st.AdvertiseRoutes
		})
		return nil
	}()
	if err != nil {
		p.notifyError(err)
	}
	return p.finish(ControlAdvertiseRoutes, "advertise_routes", err)
}

// ToggleDetails hides the details panel if it is visible, otherwise loads
// the verbose killswitch report and shows it. A failed load is shown in the
// panel and also returned.
func (p *Panel) ToggleDetails(ctx context.Context) (View, error) {
	if err := p.begin(ControlDetails); err != nil {
		return p.View(), err
	}
	var visible bool
	phony.Block(p, func() {
		visible = p._details.Visible
		if visible {
			p._details = Details{}
		}
	})
	if visible {
		return p.finish(ControlDetails, "details_hide", nil)
	}
	text, err := p.backend.StatusVerbose(ctx)
	phony.Block(p, func() {
		if err != nil {
			p._details = Details{Visible: true, Err: fmt.Sprintf("Error: %s", err)}
		} else {
			p._details = Details{Visible: true, Text: text}
		}
	})
	return p.finish(ControlDetails, "details_show", err)
}

// VerboseStatus fetches the verbose killswitch report without touching the
// details panel.
func (p *Panel) VerboseStatus(ctx context.Context) (string, error) {
	return p.backend.StatusVerbose(ctx)
}
