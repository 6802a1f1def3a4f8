package webui

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gologme/log"
)

type apiClient struct {
	t      *testing.T
	client *http.Client
	url    string
	token  string
}

func newAPIClient(t *testing.T) (*apiClient, *fakeBackend) {
	t.Helper()
	p, f := newTestPanel(t)
	server := Server("127.0.0.1:0", "", p, log.New(io.Discard, "", 0), InterfaceName("ts-test0"))
	ts := newTestHTTPServer(t, server)
	c := &apiClient{t: t, client: newClient(t), url: ts.URL}
	// The first GET hands out the CSRF cookie and token.
	c.do("GET", "state", "")
	if c.token == "" {
		t.Fatal("No CSRF token in the response")
	}
	return c, f
}

func (c *apiClient) do(method, path, body string) (int, map[string]any) {
	c.t.Helper()
	req, err := http.NewRequest(method, c.url+"/api/"+path, strings.NewReader(body))
	if err != nil {
		c.t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("X-CSRF-Token", c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatal(err)
	}
	defer resp.Body.Close()
	if token := resp.Header.Get("X-CSRF-Token"); token != "" {
		c.token = token
	}
	var out map[string]any
	data, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(data, &out)
	return resp.StatusCode, out
}

func field(m map[string]any, path ...string) any {
	var v any = m
	for _, k := range path {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = obj[k]
	}
	return v
}

func TestAPIState(t *testing.T) {
	c, _ := newAPIClient(t)
	code, state := c.do("GET", "state", "")
	if code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	checks := map[string]any{
		"status.connected":           true,
		"status.version":             "1.76.1",
		"killswitch_enabled":         false,
		"current_exit_node":          "None",
		"exit_node_selection":        "none",
		"buttons.enable_killswitch":  true,
		"buttons.disable_killswitch": false,
		"buttons.accept_routes":      "Enable",
		"buttons.details":            "Show Details",
		"loaded":                     true,
	}
	for path, want := range checks {
		if got := field(state, strings.Split(path, ".")...); got != want {
			t.Errorf("%s = %v, want %v", path, got, want)
		}
	}
	if nodes, _ := state["exit_nodes"].([]any); len(nodes) != 2 {
		t.Errorf("Expected two exit nodes, got %v", state["exit_nodes"])
	}
}

func TestAPIActions(t *testing.T) {
	c, f := newAPIClient(t)

	code, state := c.do("POST", "killswitch", `{"action":"enable"}`)
	if code != http.StatusOK || state["killswitch_enabled"] != true {
		t.Errorf("enable killswitch: %d %v", code, state["killswitch_enabled"])
	}
	if field(state, "buttons", "enable_killswitch") != false || field(state, "buttons", "disable_killswitch") != true {
		t.Errorf("Unexpected buttons %v", state["buttons"])
	}

	code, state = c.do("POST", "exitnode", `{"node":"us-nyc"}`)
	if code != http.StatusOK || state["current_exit_node"] != "us-nyc" || state["exit_node_selection"] != "us-nyc" {
		t.Errorf("exit node: %d %v %v", code, state["current_exit_node"], state["exit_node_selection"])
	}

	code, state = c.do("POST", "acceptroutes", "")
	if code != http.StatusOK || field(state, "status", "accept_routes") != true {
		t.Errorf("toggle accept routes: %d %v", code, state["status"])
	}
	code, state = c.do("POST", "acceptroutes", `{"enabled":true}`)
	if code != http.StatusOK || field(state, "buttons", "accept_routes") != "Disable" {
		t.Errorf("set accept routes: %d %v", code, state["buttons"])
	}

	code, state = c.do("POST", "ssh", `{"enabled":true}`)
	if code != http.StatusOK || field(state, "status", "ssh") != true {
		t.Errorf("ssh: %d %v", code, state["status"])
	}

	code, state = c.do("POST", "advertiseroutes", `{"routes":" 192.168.1.0/24 "}`)
	if code != http.StatusOK || state["advertise_routes_input"] != "192.168.1.0/24" {
		t.Errorf("advertise routes: %d %v", code, state["advertise_routes_input"])
	}
	f.mu.Lock()
	routes := f.status.AdvertiseRoutes
	f.mu.Unlock()
	if routes != "192.168.1.0/24" {
		t.Errorf("Backend received routes %q", routes)
	}

	code, state = c.do("POST", "details", "")
	if code != http.StatusOK || field(state, "details", "text") != "table inet fw4 { }" {
		t.Errorf("details: %d %v", code, state["details"])
	}
	if field(state, "buttons", "details") != "Hide Details" {
		t.Errorf("Expected the details button to read Hide Details, got %v", field(state, "buttons", "details"))
	}

	code, _ = c.do("POST", "poll", "")
	if code != http.StatusOK {
		t.Errorf("poll: %d", code)
	}
}

func TestAPINotifications(t *testing.T) {
	c, _ := newAPIClient(t)
	_, state := c.do("POST", "killswitch", `{"action":"enable"}`)
	notes, _ := state["notifications"].([]any)
	if len(notes) != 1 {
		t.Fatalf("Expected one notification, got %v", state["notifications"])
	}
	note := notes[0].(map[string]any)
	if note["message"] != "Killswitch enabled successfully" || note["kind"] != "info" {
		t.Errorf("Unexpected notification %v", note)
	}

	code, state := c.do("POST", "notifications/dismiss", `{"id":"`+note["id"].(string)+`"}`)
	if code != http.StatusOK {
		t.Fatalf("dismiss: %d", code)
	}
	if notes, _ := state["notifications"].([]any); len(notes) != 0 {
		t.Errorf("Expected no notifications, got %v", notes)
	}

	code, _ = c.do("POST", "notifications/dismiss", `{"id":"missing"}`)
	if code != http.StatusNotFound {
		t.Errorf("Expected 404 for an unknown notification, got %d", code)
	}
}

func TestAPIErrors(t *testing.T) {
	c, f := newAPIClient(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		code   int
		err    string
	}{
		{"unknown endpoint", "GET", "frobnicate", "", http.StatusNotFound, "unknown endpoint frobnicate"},
		{"wrong method", "GET", "killswitch", "", http.StatusMethodNotAllowed, "method not allowed"},
		{"state by POST", "POST", "state", "", http.StatusMethodNotAllowed, "method not allowed"},
		{"bad json", "POST", "exitnode", `{"node":`, http.StatusBadRequest, ""},
		{"bad action", "POST", "killswitch", `{"action":"maybe"}`, http.StatusBadRequest, "action must be enable or disable"},
		{"invalid route", "POST", "advertiseroutes", `{"routes":"10.0.0.0/33"}`, http.StatusBadRequest, "Invalid IPv4 CIDR format: 10.0.0.0/33"},
	}
	for _, tt := range tests {
		code, body := c.do(tt.method, tt.path, tt.body)
		if code != tt.code {
			t.Errorf("%s: expected %d, got %d", tt.name, tt.code, code)
		}
		if tt.err != "" && body["error"] != tt.err {
			t.Errorf("%s: error %v, want %q", tt.name, body["error"], tt.err)
		}
	}

	f.fail(errors.New("rpcd unreachable"))
	code, body := c.do("POST", "exitnode", `{"node":"de-fra"}`)
	if code != http.StatusBadGateway || body["error"] != "rpcd unreachable" {
		t.Errorf("backend failure: %d %v", code, body["error"])
	}
	if field(body, "state", "loaded") != true {
		t.Error("Expected the failure to carry the state")
	}
}

func TestAPIBusy(t *testing.T) {
	c, f := newAPIClient(t)
	gate := make(chan struct{})
	f.mu.Lock()
	f.gate = gate
	f.mu.Unlock()

	done := make(chan int, 1)
	first := *c
	go func() {
		code, _ := first.do("POST", "ssh", `{"enabled":true}`)
		done <- code
	}()

	// Wait until the first action holds the control.
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, state := c.do("GET", "state", "")
		if field(state, "busy", "ssh") == true {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("The SSH control never became busy")
		}
		time.Sleep(10 * time.Millisecond)
	}

	code, body := c.do("POST", "ssh", `{"enabled":false}`)
	if code != http.StatusConflict {
		t.Errorf("Expected 409 while busy, got %d (%v)", code, body["error"])
	}

	close(gate)
	if code := <-done; code != http.StatusOK {
		t.Errorf("First action returned %d", code)
	}
}

func TestAPICSRF(t *testing.T) {
	c, _ := newAPIClient(t)
	req, err := http.NewRequest("POST", c.url+"/api/poll", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected a POST without a token to be forbidden, got %d", resp.StatusCode)
	}
}

func TestAPIInterface(t *testing.T) {
	c, _ := newAPIClient(t)
	code, body := c.do("GET", "interface", "")
	if code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if field(body, "protocol", "name") != "tailscale" || field(body, "link", "name") != "ts-test0" {
		t.Errorf("Unexpected interface %v", body)
	}
	if field(body, "link", "present") != false {
		t.Error("ts-test0 should not exist")
	}
}

func TestAPIResponseCarriesToken(t *testing.T) {
	p, _ := newTestPanel(t)
	server := Server("127.0.0.1:0", "", p, log.New(io.Discard, "", 0))
	handler, err := server.Handler()
	if err != nil {
		t.Fatal(err)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/api/state", nil))
	if rr.Header().Get("X-CSRF-Token") == "" {
		t.Error("Expected an X-CSRF-Token header")
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}
