package admin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gologme/log"
	"github.com/google/go-cmp/cmp"

	"github.com/coreyleavitt/tailscale-openwrt/src/backend"
	"github.com/coreyleavitt/tailscale-openwrt/src/panel"
)

type fakeBackend struct {
	mu      sync.Mutex
	status  backend.Status
	verbose string
	err     error
}

func (f *fakeBackend) FullStatus(context.Context) (backend.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.err
}

func (f *fakeBackend) ExitNodes(context.Context) ([]string, error) {
	return []string{"nl-ams", "us-nyc"}, nil
}

func (f *fakeBackend) mutate(fn func()) (backend.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return backend.Result{}, f.err
	}
	fn()
	return backend.Result{Result: "ok"}, nil
}

func (f *fakeBackend) Killswitch(_ context.Context, action backend.KillswitchAction) (backend.Result, error) {
	return f.mutate(func() {
		f.status.KillswitchStatus = "Killswitch: DISABLED"
		if action == backend.KillswitchEnable {
			f.status.KillswitchStatus = "Killswitch: ENABLED"
		}
	})
}

func (f *fakeBackend) SetExitNode(_ context.Context, node string) (backend.Result, error) {
	return f.mutate(func() { f.status.ExitNode = node })
}

func (f *fakeBackend) SetAcceptRoutes(_ context.Context, enabled bool) (backend.Result, error) {
	return f.mutate(func() { f.status.AcceptRoutes = enabled })
}

func (f *fakeBackend) SetAdvertiseRoutes(_ context.Context, routes string) (backend.Result, error) {
	return f.mutate(func() { f.status.AdvertiseRoutes = routes })
}

func (f *fakeBackend) SetSSH(_ context.Context, enabled bool) (backend.Result, error) {
	return f.mutate(func() { f.status.SSH = enabled })
}

func (f *fakeBackend) AcceptRoutes(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status.AcceptRoutes, f.err
}

func (f *fakeBackend) SSH(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status.SSH, f.err
}

func (f *fakeBackend) StatusVerbose(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verbose, f.err
}

func newTestSocket(t *testing.T, listen string) (*AdminSocket, *fakeBackend) {
	t.Helper()
	f := &fakeBackend{
		status: backend.Status{
			Connected:        true,
			Version:          "1.76.1",
			AdvertiseRoutes:  "10.0.0.0/9,10.128.0.0/9",
			KillswitchStatus: "Killswitch: DISABLED",
		},
		verbose: "table inet fw4 { }",
	}
	logger := log.New(io.Discard, "", 0)
	p := panel.New(f, logger)
	p.Load(context.Background())
	a := New(p, logger, ListenAddress(listen), InterfaceName("tspanel-test0"))
	if err := a.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { a.Stop() })
	return a, f
}

func request(t *testing.T, a *AdminSocket, name string, args map[string]string) AdminSocketResponse {
	t.Helper()
	addr := a.Addr()
	conn, err := net.Dial(addr.Network(), addr.String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	req := AdminSocketRequest{Name: name}
	if args != nil {
		if req.Arguments, err = json.Marshal(args); err != nil {
			t.Fatal(err)
		}
	}
	if err := json.NewEncoder(conn).Encode(&req); err != nil {
		t.Fatal(err)
	}
	var resp AdminSocketResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeResponse(t *testing.T, resp AdminSocketResponse, out interface{}) {
	t.Helper()
	if resp.Status != "success" {
		t.Fatalf("request failed: %s", resp.Error)
	}
	if err := json.Unmarshal(resp.Response, out); err != nil {
		t.Fatal(err)
	}
}

func TestList(t *testing.T) {
	a, _ := newTestSocket(t, "tcp://127.0.0.1:0")
	var res ListResponse
	decodeResponse(t, request(t, a, "list", nil), &res)
	var commands []string
	for _, entry := range res.List {
		commands = append(commands, entry.Command)
	}
	want := []string{
		"getdetails", "getexitnodes", "getinterface", "getroutes", "getstate", "list", "poll",
		"setacceptroutes", "setadvertiseroutes", "setexitnode", "setkillswitch", "setssh",
		"toggleacceptroutes", "togglessh",
	}
	if diff := cmp.Diff(want, commands); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestGetState(t *testing.T) {
	a, _ := newTestSocket(t, "tcp://127.0.0.1:0")
	var res GetStateResponse
	decodeResponse(t, request(t, a, "getState", nil), &res)
	if !res.Status.Connected || res.Status.Version != "1.76.1" || res.KillswitchEnabled {
		t.Errorf("Unexpected state %+v", res)
	}
	if res.CurrentExitNode != "None" || res.ExitNodeSelection != "none" {
		t.Errorf("Unexpected exit node %q / %q", res.CurrentExitNode, res.ExitNodeSelection)
	}
}

func TestActions(t *testing.T) {
	a, _ := newTestSocket(t, "tcp://127.0.0.1:0")

	var res GetStateResponse
	decodeResponse(t, request(t, a, "setKillswitch", map[string]string{"action": "enable"}), &res)
	if !res.KillswitchEnabled {
		t.Error("Expected the killswitch to be enabled")
	}

	decodeResponse(t, request(t, a, "SETEXITNODE", map[string]string{"node": "us-nyc"}), &res)
	if res.Status.ExitNode != "us-nyc" || res.ExitNodeSelection != "us-nyc" {
		t.Errorf("Unexpected exit node %+v", res.Status)
	}

	decodeResponse(t, request(t, a, "setSSH", map[string]string{"enabled": "true"}), &res)
	if !res.Status.SSH {
		t.Error("Expected SSH to be enabled")
	}
	decodeResponse(t, request(t, a, "toggleSSH", nil), &res)
	if res.Status.SSH {
		t.Error("Expected SSH to be disabled by the toggle")
	}

	decodeResponse(t, request(t, a, "toggleAcceptRoutes", nil), &res)
	if !res.Status.AcceptRoutes {
		t.Error("Expected accept routes to be enabled by the toggle")
	}
	decodeResponse(t, request(t, a, "setAcceptRoutes", map[string]string{"enabled": "false"}), &res)
	if res.Status.AcceptRoutes {
		t.Error("Expected accept routes to be disabled")
	}

	decodeResponse(t, request(t, a, "setAdvertiseRoutes", map[string]string{"routes": ""}), &res)
	if res.Status.AdvertiseRoutes != "" {
		t.Errorf("Expected routes to be cleared, got %q", res.Status.AdvertiseRoutes)
	}
}

func TestActionErrors(t *testing.T) {
	a, f := newTestSocket(t, "tcp://127.0.0.1:0")
	tests := []struct {
		name string
		args map[string]string
		err  string
	}{
		{"setKillswitch", nil, "Expected field missing: action"},
		{"setKillswitch", map[string]string{"action": "maybe"}, `unknown killswitch action "maybe", expected enable or disable`},
		{"setSSH", map[string]string{"enabled": "perhaps"}, `invalid value "perhaps" for enabled, expected true or false`},
		{"setAdvertiseRoutes", map[string]string{"routes": "10.0.0.0/33"}, "Invalid IPv4 CIDR format: 10.0.0.0/33"},
		{"frobnicate", nil, "Unknown action 'frobnicate', try 'list' for help"},
	}
	for _, tt := range tests {
		resp := request(t, a, tt.name, tt.args)
		if resp.Status != "error" || resp.Error != tt.err {
			t.Errorf("%s: got %s %q, want error %q", tt.name, resp.Status, resp.Error, tt.err)
		}
	}

	f.mu.Lock()
	f.err = errors.New("rpcd unreachable")
	f.mu.Unlock()
	resp := request(t, a, "setExitNode", map[string]string{"node": "de-fra"})
	if resp.Status != "error" || resp.Error != "rpcd unreachable" {
		t.Errorf("got %s %q", resp.Status, resp.Error)
	}
	resp = request(t, a, "poll", nil)
	if resp.Status != "error" {
		t.Errorf("Expected poll to fail, got %s", resp.Status)
	}
}

func TestGetRoutes(t *testing.T) {
	a, _ := newTestSocket(t, "tcp://127.0.0.1:0")
	var res GetRoutesResponse
	decodeResponse(t, request(t, a, "getRoutes", nil), &res)
	if res.Routes != "10.0.0.0/9,10.128.0.0/9" || len(res.Prefixes) != 2 {
		t.Errorf("Unexpected routes %+v", res)
	}
	if len(res.Ranges) != 1 || res.Ranges[0].String() != "10.0.0.0-10.255.255.255" {
		t.Errorf("Expected the prefixes to merge into one range, got %v", res.Ranges)
	}
}

func TestGetDetailsAndInterface(t *testing.T) {
	a, _ := newTestSocket(t, "tcp://127.0.0.1:0")
	var details GetDetailsResponse
	decodeResponse(t, request(t, a, "getDetails", nil), &details)
	if details.Details != "table inet fw4 { }" {
		t.Errorf("Details = %q", details.Details)
	}

	var intf GetInterfaceResponse
	decodeResponse(t, request(t, a, "getInterface", nil), &intf)
	if intf.Protocol.Name != "tailscale" || intf.Link.Name != "tspanel-test0" || intf.Link.Present {
		t.Errorf("Unexpected interface %+v", intf)
	}
	if intf.Managed {
		t.Error("tspanel-test0 is not a Tailscale device")
	}
	decodeResponse(t, request(t, a, "getInterface", map[string]string{"interface": "tailscale0"}), &intf)
	if !intf.Managed {
		t.Error("tailscale0 should be managed by the protocol")
	}
}

func TestKeepAlive(t *testing.T) {
	a, _ := newTestSocket(t, "tcp://127.0.0.1:0")
	conn, err := net.Dial("tcp", a.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	encoder, decoder := json.NewEncoder(conn), json.NewDecoder(conn)
	for i := 0; i < 3; i++ {
		if err := encoder.Encode(&AdminSocketRequest{Name: "getState", KeepAlive: true}); err != nil {
			t.Fatal(err)
		}
		var resp AdminSocketResponse
		if err := decoder.Decode(&resp); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if resp.Status != "success" {
			t.Fatalf("request %d failed: %s", i, resp.Error)
		}
	}
}

func TestUnixSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tspanel.sock")
	a, _ := newTestSocket(t, "unix://"+path)
	var res GetStateResponse
	decodeResponse(t, request(t, a, "getState", nil), &res)

	// A second socket on the same path must refuse to steal it.
	other := New(a.panel, a.log, ListenAddress("unix://"+path))
	if err := other.Start(); err == nil {
		other.Stop()
		t.Fatal("Expected the second socket to fail while the first is in use")
	}
}

func TestDisabled(t *testing.T) {
	a := New(panel.New(&fakeBackend{}, log.New(io.Discard, "", 0)), log.New(io.Discard, "", 0), ListenAddress("none"))
	if err := a.Start(); err != nil {
		t.Fatal(err)
	}
	if a.IsStarted() || a.Addr() != nil {
		t.Error("Expected a disabled socket not to listen")
	}
}
