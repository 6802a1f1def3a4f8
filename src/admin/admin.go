package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gologme/log"

	"github.com/coreyleavitt/tailscale-openwrt/src/panel"
)

type AdminSocket struct {
	panel    *panel.Panel
	log      *log.Logger
	listener net.Listener
	handlers map[string]handler
	ctx      context.Context
	cancel   context.CancelFunc
	config   struct {
		listenaddr    ListenAddress
		ifname        InterfaceName
		actionTimeout ActionTimeout
	}
	done chan struct{}
	once sync.Once
}

type AdminSocketRequest struct {
	Name      string          `json:"request"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	KeepAlive bool            `json:"keepalive,omitempty"`
}

type AdminSocketResponse struct {
	Status   string          `json:"status"`
	Error    string          `json:"error,omitempty"`
	Request  json.RawMessage `json:"request"`
	Response json.RawMessage `json:"response"`
}

type handler struct {
	desc    string   // What does the endpoint do?
	args    []string // List of human-readable argument names
	handler func(context.Context, json.RawMessage) (interface{}, error)
}

type ListResponse struct {
	List []ListEntry `json:"list"`
}

type ListEntry struct {
	Command     string   `json:"command"`
	Description string   `json:"description"`
	Fields      []string `json:"fields,omitempty"`
}

// AddHandler is called for each admin function to add the handler and help documentation to the API.
func (a *AdminSocket) AddHandler(name, desc string, args []string, handlerfunc func(context.Context, json.RawMessage) (interface{}, error)) error {
	if _, ok := a.handlers[strings.ToLower(name)]; ok {
		return errors.New("handler already exists")
	}
	a.handlers[strings.ToLower(name)] = handler{
		desc:    desc,
		args:    args,
		handler: handlerfunc,
	}
	return nil
}

// typed adapts a handler taking decoded request and response structs.
func typed[Req, Res any](fn func(context.Context, *Req, *Res) error) func(context.Context, json.RawMessage) (interface{}, error) {
	return func(ctx context.Context, in json.RawMessage) (interface{}, error) {
		req := new(Req)
		res := new(Res)
		if len(in) > 0 {
			if err := json.Unmarshal(in, req); err != nil {
				return nil, err
			}
		}
		if err := fn(ctx, req, res); err != nil {
			return nil, err
		}
		return res, nil
	}
}

// New creates an admin socket for the panel. The socket does not listen
// until Start is called.
func New(p *panel.Panel, log *log.Logger, opts ...SetupOption) *AdminSocket {
	a := &AdminSocket{
		panel:    p,
		log:      log,
		handlers: make(map[string]handler),
		done:     make(chan struct{}),
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())
	a.config.actionTimeout = ActionTimeout(30 * time.Second)
	for _, opt := range opts {
		a._applyOption(opt)
	}
	_ = a.AddHandler("list", "List available commands", []string{}, func(_ context.Context, _ json.RawMessage) (interface{}, error) {
		res := &ListResponse{}
		for name, handler := range a.handlers {
			res.List = append(res.List, ListEntry{
				Command:     name,
				Description: handler.desc,
				Fields:      handler.args,
			})
		}
		sort.SliceStable(res.List, func(i, j int) bool {
			return strings.Compare(res.List[i].Command, res.List[j].Command) < 0
		})
		return res, nil
	})
	a.SetupAdminHandlers()
	return a
}

func (a *AdminSocket) SetupAdminHandlers() {
	_ = a.AddHandler("getState", "Show the displayed Tailscale state", []string{}, typed(a.getStateHandler))
	_ = a.AddHandler("getExitNodes", "Show the exit nodes offered by peers", []string{}, typed(a.getExitNodesHandler))
	_ = a.AddHandler("poll", "Refresh the status from the daemon now", []string{}, typed(a.pollHandler))
	_ = a.AddHandler("setKillswitch", "Enable or disable the killswitch", []string{"action"}, typed(a.setKillswitchHandler))
	_ = a.AddHandler("setExitNode", "Route traffic through an exit node, or none", []string{"node"}, typed(a.setExitNodeHandler))
	_ = a.AddHandler("setAcceptRoutes", "Accept or ignore routes advertised by peers", []string{"enabled"}, typed(a.setAcceptRoutesHandler))
	_ = a.AddHandler("toggleAcceptRoutes", "Flip the accept routes setting", []string{}, typed(a.toggleAcceptRoutesHandler))
	_ = a.AddHandler("setSSH", "Enable or disable the Tailscale SSH server", []string{"enabled"}, typed(a.setSSHHandler))
	_ = a.AddHandler("toggleSSH", "Flip the Tailscale SSH setting", []string{}, typed(a.toggleSSHHandler))
	_ = a.AddHandler("setAdvertiseRoutes", "Advertise a comma separated list of subnets", []string{"routes"}, typed(a.setAdvertiseRoutesHandler))
	_ = a.AddHandler("getRoutes", "Show the advertised subnets", []string{}, typed(a.getRoutesHandler))
	_ = a.AddHandler("getDetails", "Show the verbose killswitch report", []string{}, typed(a.getDetailsHandler))
	_ = a.AddHandler("getInterface", "Show the Tailscale interface and its protocol", []string{"[interface]"}, typed(a.getInterfaceHandler))
}

// Start binds the admin socket and serves requests in the background.
func (a *AdminSocket) Start() error {
	if a.config.listenaddr == "none" || a.config.listenaddr == "" {
		a.log.Debugln("Admin socket is disabled")
		return nil
	}
	listener, err := a.bind(string(a.config.listenaddr))
	if err != nil {
		return fmt.Errorf("admin socket failed to listen: %w", err)
	}
	a.listener = listener
	a.log.Infof("%s admin socket listening on %s",
		strings.ToUpper(a.listener.Addr().Network()),
		a.listener.Addr().String())
	go a.listen()
	return nil
}

// Addr returns the address the socket listens on, or nil if it is not
// listening.
func (a *AdminSocket) Addr() net.Addr {
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// IsStarted returns true if the module has been started.
func (a *AdminSocket) IsStarted() bool {
	select {
	case <-a.done:
		// Not blocking, so we're not currently running
		return false
	default:
		// Blocked, so we must have started
		return a.listener != nil
	}
}

// Stop will stop the admin API and close the socket.
func (a *AdminSocket) Stop() error {
	if a == nil {
		return nil
	}
	var err error
	a.once.Do(func() {
		close(a.done)
		a.cancel()
		if a.listener != nil {
			err = a.listener.Close()
		}
	})
	return err
}

func (a *AdminSocket) bind(listenaddr string) (net.Listener, error) {
	u, err := url.Parse(listenaddr)
	if err != nil {
		return net.Listen("tcp", listenaddr)
	}
	switch strings.ToLower(u.Scheme) {
	case "unix":
		path := listenaddr[7:]
		if _, err := os.Stat(path); err == nil {
			a.log.Debugln("Admin socket", path, "already exists, trying to clean up")
			if conn, err := net.DialTimeout("unix", path, time.Second*2); err == nil {
				conn.Close()
				return nil, fmt.Errorf("%s already exists and is in use by another process", path)
			} else if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				return nil, fmt.Errorf("%s already exists and is in use by another process", path)
			}
			if err := os.Remove(path); err != nil {
				return nil, fmt.Errorf("%s already exists and was not cleaned up: %w", path, err)
			}
			a.log.Debugln(path, "was cleaned up")
		}
		listener, err := net.Listen("unix", path)
		if err != nil {
			return nil, err
		}
		if !strings.HasPrefix(path, "@") { // abstract namespace
			if err := os.Chmod(path, 0660); err != nil {
				a.log.Warnln("WARNING:", path, "may have unsafe permissions!")
			}
		}
		return listener, nil
	case "tcp":
		return net.Listen("tcp", u.Host)
	default:
		return net.Listen("tcp", listenaddr)
	}
}

// listen is run by start and manages API connections.
func (a *AdminSocket) listen() {
	defer a.listener.Close()
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			select {
			case <-a.done:
				return
			default:
			}
			a.log.Debugln("Admin socket accept error:", err)
			continue
		}
		go a.handleRequest(conn)
	}
}

// handleRequest calls the request handler for each request sent to the admin API.
func (a *AdminSocket) handleRequest(conn net.Conn) {
	decoder := json.NewDecoder(conn)
	decoder.DisallowUnknownFields()

	encoder := json.NewEncoder(conn)
	encoder.SetIndent("", "  ")

	defer conn.Close()

	defer func() {
		r := recover()
		if r != nil {
			a.log.Debugln("Admin socket error:", r)
			if err := encoder.Encode(&AdminSocketResponse{
				Status: "error",
				Error:  "Check your syntax and input types",
			}); err != nil {
				a.log.Debugln("Admin socket JSON encode error:", err)
			}
		}
	}()

	for {
		var buf json.RawMessage
		var req AdminSocketRequest
		var resp AdminSocketResponse
		if err := decoder.Decode(&buf); err != nil {
			a.log.Debugln("Admin socket JSON decode error:", err)
			return
		}
		resp.Request = buf
		if err := json.Unmarshal(buf, &req); err != nil {
			resp.Status = "error"
			resp.Error = fmt.Sprintf("Failed to unmarshal request: %s", err)
		} else {
			res, err := a.handle(req)
			if err != nil {
				resp.Status = "error"
				resp.Error = err.Error()
			} else {
				resp.Status = "success"
				if resp.Response, err = json.Marshal(res); err != nil {
					resp.Status = "error"
					resp.Error = fmt.Sprintf("Failed to marshal response: %s", err)
					resp.Response = nil
				}
			}
		}
		if err := encoder.Encode(&resp); err != nil {
			a.log.Debugln("Admin socket JSON encode error:", err)
			return
		}
		if !req.KeepAlive {
			return
		}
	}
}

// handle looks up the handler for a request, checks that every required
// argument is present and runs the handler.
func (a *AdminSocket) handle(req AdminSocketRequest) (interface{}, error) {
	if req.Name == "" {
		return nil, errors.New("No request sent")
	}
	h, ok := a.handlers[strings.ToLower(req.Name)]
	if !ok {
		return nil, fmt.Errorf("Unknown action '%s', try 'list' for help", req.Name)
	}
	args := map[string]interface{}{}
	if len(req.Arguments) > 0 {
		if err := json.Unmarshal(req.Arguments, &args); err != nil {
			return nil, fmt.Errorf("Arguments must be an object: %w", err)
		}
	}
	for _, arg := range h.args {
		// An argument in [square brackets] is optional and not required,
		// so we can safely ignore those
		if strings.HasPrefix(arg, "[") && strings.HasSuffix(arg, "]") {
			continue
		}
		if _, ok := args[arg]; !ok {
			return nil, fmt.Errorf("Expected field missing: %s", arg)
		}
	}
	ctx, cancel := context.WithTimeout(a.ctx, time.Duration(a.config.actionTimeout))
	defer cancel()
	return h.handler(ctx, req.Arguments)
}
