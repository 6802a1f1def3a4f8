// Package backend is a typed client for the luci.tailscale rpcd object,
// which wraps the tailscale CLI and the killswitch firewall script on the
// router.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Object is the rpcd object implementing the Tailscale management calls.
const Object = "luci.tailscale"

// Caller performs a single RPC call. *ubus.Client implements it.
type Caller interface {
	Call(ctx context.Context, object, method string, args interface{}) (json.RawMessage, error)
}

// Client calls luci.tailscale methods through a Caller.
type Client struct {
	caller Caller
}

// New returns a client using the given caller.
func New(caller Caller) *Client {
	return &Client{caller: caller}
}

// Result is the reply of a mutating call.
type Result struct {
	Result string `mapstructure:"result" json:"result"`
}

// Failed reports whether the backend script reported an error in its output.
// The scripts exit successfully and describe failures in the result text.
func (r Result) Failed() bool {
	return strings.Contains(r.Result, "Error")
}

// Info is the reply of tailscale_info.
type Info struct {
	Connected bool                   `mapstructure:"connected" json:"connected"`
	Version   string                 `mapstructure:"version" json:"version"`
	Extra     map[string]interface{} `mapstructure:",remain" json:"extra,omitempty"`
}

// KillswitchAction is the action argument of the killswitch method.
type KillswitchAction string

const (
	KillswitchEnable  KillswitchAction = "enable"
	KillswitchDisable KillswitchAction = "disable"
)

func (c *Client) call(ctx context.Context, method string, args interface{}, out interface{}) error {
	data, err := c.caller.Call(ctx, Object, method, args)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%s/%s returned malformed JSON: %w", Object, method, err)
	}
	if err := decode(raw, out); err != nil {
		return fmt.Errorf("%s/%s returned unexpected data: %w", Object, method, err)
	}
	return nil
}

func (c *Client) mutate(ctx context.Context, method string, args interface{}) (Result, error) {
	var res Result
	err := c.call(ctx, method, args, &res)
	return res, err
}

func boolArg(enabled bool) string {
	return strconv.FormatBool(enabled)
}

// Killswitch enables or disables the exit node killswitch.
func (c *Client) Killswitch(ctx context.Context, action KillswitchAction) (Result, error) {
	return c.mutate(ctx, "killswitch", map[string]string{"action": string(action)})
}

// KillswitchStatus returns the short killswitch status text.
func (c *Client) KillswitchStatus(ctx context.Context) (string, error) {
	var res Result
	err := c.call(ctx, "status", nil, &res)
	return res.Result, err
}

// StatusVerbose returns the detailed killswitch report. The backend either
// returns the text directly or wrapped in a result object.
func (c *Client) StatusVerbose(ctx context.Context) (string, error) {
	data, err := c.caller.Call(ctx, Object, "status_verbose", nil)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		return text, nil
	}
	var res struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return "", fmt.Errorf("%s/status_verbose returned unexpected data: %w", Object, err)
	}
	return res.Result, nil
}

// Info returns the tailscale_info summary.
func (c *Client) Info(ctx context.Context) (Info, error) {
	var info Info
	err := c.call(ctx, "tailscale_info", nil, &info)
	return info, err
}

// ExitNode returns the exit node currently in use.
func (c *Client) ExitNode(ctx context.Context) (string, error) {
	var res struct {
		ExitNode string `mapstructure:"exit_node"`
	}
	err := c.call(ctx, "get_exit_node", nil, &res)
	return res.ExitNode, err
}

// SetExitNode selects an exit node, or disables exit node routing when node
// is NoExitNode.
func (c *Client) SetExitNode(ctx context.Context, node string) (Result, error) {
	return c.mutate(ctx, "set_exit_node", map[string]string{"node": node})
}

// ExitNodes lists the peers that offer themselves as exit nodes.
func (c *Client) ExitNodes(ctx context.Context) ([]string, error) {
	var res struct {
		Nodes []string `mapstructure:"nodes"`
	}
	if err := c.call(ctx, "list_exit_nodes", nil, &res); err != nil {
		return nil, err
	}
	if res.Nodes == nil {
		res.Nodes = []string{}
	}
	return res.Nodes, nil
}

// AcceptRoutes reports whether routes advertised by other nodes are accepted.
func (c *Client) AcceptRoutes(ctx context.Context) (bool, error) {
	var res struct {
		AcceptRoutes bool `mapstructure:"accept_routes"`
	}
	err := c.call(ctx, "get_accept_routes", nil, &res)
	return res.AcceptRoutes, err
}

// SetAcceptRoutes changes whether routes advertised by other nodes are
// accepted.
func (c *Client) SetAcceptRoutes(ctx context.Context, enabled bool) (Result, error) {
	return c.mutate(ctx, "set_accept_routes", map[string]string{"enabled": boolArg(enabled)})
}

// AdvertiseRoutes returns the comma separated list of advertised subnets.
func (c *Client) AdvertiseRoutes(ctx context.Context) (string, error) {
	var res struct {
		AdvertiseRoutes string `mapstructure:"advertise_routes"`
	}
	err := c.call(ctx, "get_advertise_routes", nil, &res)
	return res.AdvertiseRoutes, err
}

// SetAdvertiseRoutes replaces the advertised subnets. An empty string stops
// advertising routes.
func (c *Client) SetAdvertiseRoutes(ctx context.Context, routes string) (Result, error) {
	return c.mutate(ctx, "set_advertise_routes", map[string]string{"routes": routes})
}

// SSH reports whether the Tailscale SSH server is enabled.
func (c *Client) SSH(ctx context.Context) (bool, error) {
	var res struct {
		SSH bool `mapstructure:"ssh"`
	}
	err := c.call(ctx, "get_ssh", nil, &res)
	return res.SSH, err
}

// SetSSH enables or disables the Tailscale SSH server.
func (c *Client) SetSSH(ctx context.Context, enabled bool) (Result, error) {
	return c.mutate(ctx, "set_ssh", map[string]string{"enabled": boolArg(enabled)})
}

// FullStatus returns the consolidated status used by the panel.
func (c *Client) FullStatus(ctx context.Context) (Status, error) {
	var st Status
	err := c.call(ctx, "get_full_status", nil, &st)
	return st, err
}
