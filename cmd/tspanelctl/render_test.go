package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/coreyleavitt/tailscale-openwrt/src/admin"
	"github.com/coreyleavitt/tailscale-openwrt/src/backend"
	"github.com/coreyleavitt/tailscale-openwrt/src/panel"
)

func renderString(c *qt.C, name string, response interface{}, verbose bool) string {
	data, err := json.Marshal(response)
	c.Assert(err, qt.IsNil)
	var buf bytes.Buffer
	c.Assert(render(&buf, name, data, verbose), qt.IsNil)
	return buf.String()
}

func TestRenderState(t *testing.T) {
	c := qt.New(t)
	state := admin.GetStateResponse{
		BuildName:         "tspanel",
		KillswitchEnabled: true,
		CurrentExitNode:   "us-nyc",
		View: panel.View{
			Status: backend.Status{
				Connected:       true,
				Version:         "1.76.1",
				SSH:             true,
				AdvertiseRoutes: "192.168.1.0/24",
			},
			Busy: map[panel.Control]bool{panel.ControlSSH: true, panel.ControlExitNode: true},
			Notifications: []panel.Notification{
				{ID: "1", Kind: panel.KindError, Message: "Error: rpcd unreachable"},
			},
		},
	}

	out := renderString(c, "setKillswitch", state, false)
	c.Check(out, qt.Contains, "Connected")
	c.Check(out, qt.Contains, "1.76.1")
	c.Check(out, qt.Contains, "us-nyc")
	c.Check(out, qt.Contains, "192.168.1.0/24")
	c.Check(out, qt.Not(qt.Contains), "Busy controls")
	c.Check(out, qt.Not(qt.Contains), "rpcd unreachable")

	out = renderString(c, "getState", state, true)
	c.Check(out, qt.Contains, "exitnode, ssh")
	c.Check(out, qt.Contains, "Error: rpcd unreachable")
}

func TestRenderList(t *testing.T) {
	c := qt.New(t)
	out := renderString(c, "list", admin.ListResponse{List: []admin.ListEntry{
		{Command: "setexitnode", Description: "Route traffic through an exit node, or none", Fields: []string{"node"}},
	}}, false)
	c.Check(out, qt.Contains, "node=...")
	c.Check(out, qt.Contains, "Route traffic through an exit node")
}

func TestRenderExitNodes(t *testing.T) {
	c := qt.New(t)
	out := renderString(c, "getExitNodes", admin.GetExitNodesResponse{
		Current:   "none",
		Selected:  "nl-ams",
		ExitNodes: []string{"nl-ams", "us-nyc"},
	}, false)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	c.Assert(lines, qt.HasLen, 4)
	c.Check(lines[1], qt.Contains, "current")
	c.Check(lines[2], qt.Contains, "selected")
	c.Check(strings.TrimSpace(lines[3]), qt.Equals, "us-nyc")
}

func TestRenderRoutes(t *testing.T) {
	c := qt.New(t)
	routes, err := panel.ParseRoutes("10.0.0.0/9,10.128.0.0/9")
	c.Assert(err, qt.IsNil)
	out := renderString(c, "getRoutes", admin.GetRoutesResponse{
		Routes:   "10.0.0.0/9,10.128.0.0/9",
		Prefixes: routes.Prefixes,
		Ranges:   routes.Ranges,
	}, true)
	c.Check(out, qt.Contains, "10.0.0.0-10.127.255.255")
	c.Check(out, qt.Contains, "10.0.0.0-10.255.255.255")
}

func TestRenderUnknown(t *testing.T) {
	c := qt.New(t)
	var buf bytes.Buffer
	c.Assert(render(&buf, "frobnicate", json.RawMessage(`{"a":1}`), false), qt.IsNil)
	c.Check(buf.String(), qt.Equals, "{\"a\":1}\n")
}

func TestBuildRequest(t *testing.T) {
	c := qt.New(t)
	logger := newDiscardLogger()
	req, err := buildRequest([]string{"setKillswitch", "action=enable", "bogus"}, logger)
	c.Assert(err, qt.IsNil)
	c.Check(req.Name, qt.Equals, "setKillswitch")
	c.Check(string(req.Arguments), qt.Equals, `{"action":"enable"}`)

	_, err = buildRequest([]string{"-v"}, logger)
	c.Check(err, qt.ErrorMatches, "no command given")
}

func newDiscardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
