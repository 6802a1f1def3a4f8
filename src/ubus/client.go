package ubus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gologme/log"
)

// Client calls rpcd objects over the uhttpd-mod-ubus JSON-RPC endpoint. It is
// safe for concurrent use.
type Client struct {
	endpoint string
	log      *log.Logger
	http     *http.Client
	username string
	password string

	mu     sync.Mutex
	sid    string // cached login session, empty until the first login
	nextID atomic.Uint64
}

type SetupOption interface {
	isSetupOption()
}

// Credentials makes the client log in through session/login instead of
// using the unauthenticated session.
type Credentials struct {
	Username string
	Password string
}

// Timeout bounds every HTTP exchange with rpcd.
type Timeout time.Duration

func (a Credentials) isSetupOption() {}
func (a Timeout) isSetupOption()     {}

// New creates a client for the given endpoint, e.g. http://192.168.1.1/ubus.
func New(endpoint string, log *log.Logger, opts ...SetupOption) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid RPC endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid RPC endpoint %q: scheme must be http or https", endpoint)
	}
	c := &Client{
		endpoint: u.String(),
		log:      log,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		c._applyOption(opt)
	}
	return c, nil
}

func (c *Client) _applyOption(opt SetupOption) {
	switch v := opt.(type) {
	case Credentials:
		c.username, c.password = v.Username, v.Password
	case Timeout:
		c.http.Timeout = time.Duration(v)
	}
}

type request struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type response struct {
	ID     json.RawMessage   `json:"id"`
	Result []json.RawMessage `json:"result"`
	Error  *RPCError         `json:"error"`
}

// Call invokes method on object with the given arguments and returns the raw
// data element of the reply. A nil args sends an empty argument object. The
// returned data is nil when rpcd replied with a status code only.
func (c *Client) Call(ctx context.Context, object, method string, args interface{}) (json.RawMessage, error) {
	start := time.Now()
	data, err := c.call(ctx, object, method, args)
	observeCall(object, method, time.Since(start), err)
	if err != nil {
		c.log.Debugf("RPC %s/%s failed after %s: %v", object, method, time.Since(start).Round(time.Millisecond), err)
	} else {
		c.log.Debugf("RPC %s/%s completed in %s", object, method, time.Since(start).Round(time.Millisecond))
	}
	return data, err
}

func (c *Client) call(ctx context.Context, object, method string, args interface{}) (json.RawMessage, error) {
	sid, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	data, err := c.do(ctx, sid, object, method, args)
	if errors.Is(err, ErrAccessDenied) && c.username != "" {
		// The cached session most likely expired, so log in again once.
		c.invalidate(sid)
		if sid, err = c.session(ctx); err != nil {
			return nil, err
		}
		data, err = c.do(ctx, sid, object, method, args)
	}
	return data, err
}

// session returns the session ID to use for a call, logging in first if
// credentials are configured and no session is cached.
func (c *Client) session(ctx context.Context) (string, error) {
	if c.username == "" {
		return NullSession, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sid != "" {
		return c.sid, nil
	}
	data, err := c.do(ctx, NullSession, "session", "login", map[string]interface{}{
		"username": c.username,
		"password": c.password,
	})
	if err != nil {
		return "", fmt.Errorf("rpcd login failed: %w", err)
	}
	var login struct {
		Session string `json:"ubus_rpc_session"`
		Timeout int    `json:"timeout"`
	}
	if err := json.Unmarshal(data, &login); err != nil {
		return "", fmt.Errorf("rpcd login returned malformed data: %w", err)
	}
	if login.Session == "" {
		return "", errors.New("rpcd login returned no session")
	}
	c.log.Debugf("Logged in to rpcd as %s (session timeout %ds)", c.username, login.Timeout)
	c.sid = login.Session
	return c.sid, nil
}

func (c *Client) invalidate(sid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sid == sid {
		c.sid = ""
	}
}

func (c *Client) do(ctx context.Context, sid, object, method string, args interface{}) (json.RawMessage, error) {
	if args == nil {
		args = map[string]interface{}{}
	}
	body, err := json.Marshal(&request{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  "call",
		Params:  []interface{}{sid, object, method, args},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode RPC request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("rpcd returned HTTP %d: %s", res.StatusCode, bytes.TrimSpace(msg))
	}
	var reply response
	if err := json.NewDecoder(res.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("failed to decode RPC reply: %w", err)
	}
	if reply.Error != nil {
		return nil, reply.Error
	}
	if len(reply.Result) == 0 {
		return nil, fmt.Errorf("RPC call to %s/%s returned no result", object, method)
	}
	var code Status
	if err := json.Unmarshal(reply.Result[0], &code); err != nil {
		return nil, fmt.Errorf("RPC call to %s/%s returned a malformed status: %w", object, method, err)
	}
	if code != StatusOK {
		return nil, &StatusError{Object: object, Method: method, Code: code}
	}
	if len(reply.Result) < 2 {
		return nil, nil
	}
	return reply.Result[1], nil
}
