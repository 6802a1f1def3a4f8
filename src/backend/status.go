package backend

import (
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Status is the consolidated daemon status returned by get_full_status.
type Status struct {
	Connected        bool   `mapstructure:"connected" json:"connected"`
	Version          string `mapstructure:"version" json:"version"`
	ExitNode         string `mapstructure:"exit_node" json:"exit_node"`
	AcceptRoutes     bool   `mapstructure:"accept_routes" json:"accept_routes"`
	AdvertiseRoutes  string `mapstructure:"advertise_routes" json:"advertise_routes"`
	SSH              bool   `mapstructure:"ssh" json:"ssh"`
	KillswitchStatus string `mapstructure:"killswitch_status" json:"killswitch_status"`
}

// KillswitchEnabled reports whether the killswitch status text says it is
// enabled.
func (s Status) KillswitchEnabled() bool {
	return strings.Contains(s.KillswitchStatus, "ENABLED")
}

// HasExitNode reports whether traffic currently leaves through an exit node.
func (s Status) HasExitNode() bool {
	return isExitNode(s.ExitNode)
}

// ExitNodeSelection is the value an exit node selector should show: the
// current node, or "none".
func (s Status) ExitNodeSelection() string {
	if !s.HasExitNode() {
		return NoExitNode
	}
	return s.ExitNode
}

// DisplayVersion returns the daemon version, or "Unknown" if the backend did
// not report one.
func (s Status) DisplayVersion() string {
	if s.Version == "" {
		return "Unknown"
	}
	return s.Version
}

// FallbackStatus is displayed when the status could not be loaded at all.
func FallbackStatus(err error) Status {
	return Status{
		Version:          "Unknown",
		KillswitchStatus: "Error: " + err.Error(),
	}
}

// NoExitNode is the exit node value that disables exit node routing.
const NoExitNode = "none"

func isExitNode(node string) bool {
	return node != "" && node != "none" && node != "None"
}

// strictBoolHook makes a string decode to true only when it is exactly
// "true". rpcd scripts report flags either as JSON booleans or as the
// strings "true" and "false".
func strictBoolHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to.Kind() != reflect.Bool || from.Kind() != reflect.String {
		return data, nil
	}
	return data.(string) == "true", nil
}

// decode copies a decoded JSON object into out, tolerating the loose typing
// of shell-script backends.
func decode(in interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       strictBoolHook,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(in)
}
