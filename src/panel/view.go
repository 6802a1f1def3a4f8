package panel

import (
	"time"

	"github.com/coreyleavitt/tailscale-openwrt/src/backend"
)

// Control names a group of buttons that trigger one kind of action. Only one
// action per control can be in flight.
type Control string

const (
	ControlKillswitch      Control = "killswitch"
	ControlExitNode        Control = "exitnode"
	ControlAcceptRoutes    Control = "acceptroutes"
	ControlAdvertiseRoutes Control = "advertiseroutes"
	ControlSSH             Control = "ssh"
	ControlDetails         Control = "details"
)

// Details is the verbose killswitch report panel.
type Details struct {
	Visible bool   `json:"visible"`
	Text    string `json:"text,omitempty"`
	Err     string `json:"error,omitempty"`
}

// View is a snapshot of everything the panel displays. Views are copies and
// may be kept or modified by the caller.
type View struct {
	Status               backend.Status   `json:"status"`
	ExitNodes            []string         `json:"exit_nodes"`
	ExitNodeSelection    string           `json:"exit_node_selection"`
	AdvertiseRoutesInput string           `json:"advertise_routes_input"`
	Busy                 map[Control]bool `json:"busy"`
	Details              Details          `json:"details"`
	Notifications        []Notification   `json:"notifications"`
	Loaded               bool             `json:"loaded"`
	LastPoll             time.Time        `json:"last_poll"`
	PollError            string           `json:"poll_error,omitempty"`
	Generation           uint64           `json:"generation"`
}

// CanEnableKillswitch reports whether the enable button is active.
func (v View) CanEnableKillswitch() bool {
	return !v.Busy[ControlKillswitch] && !v.Status.KillswitchEnabled()
}

// CanDisableKillswitch reports whether the disable button is active.
func (v View) CanDisableKillswitch() bool {
	return !v.Busy[ControlKillswitch] && v.Status.KillswitchEnabled()
}

// AcceptRoutesButton is the label of the accept routes toggle.
func (v View) AcceptRoutesButton() string {
	return toggleLabel(v.Status.AcceptRoutes)
}

// SSHButton is the label of the SSH toggle.
func (v View) SSHButton() string {
	return toggleLabel(v.Status.SSH)
}

// DetailsButton is the label of the details toggle.
func (v View) DetailsButton() string {
	if v.Details.Visible {
		return "Hide Details"
	}
	return "Show Details"
}

// ExitNodeLabel is the current exit node as shown next to the selector.
func (v View) ExitNodeLabel() string {
	if !v.Status.HasExitNode() {
		return "None"
	}
	return v.Status.ExitNode
}

func toggleLabel(enabled bool) string {
	if enabled {
		return "Disable"
	}
	return "Enable"
}

func enabledWord(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
