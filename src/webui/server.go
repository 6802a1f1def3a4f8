package webui

import (
	"archive/zip"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"gerace.dev/zipfs"
	"github.com/gologme/log"
	"github.com/gorilla/csrf"
	"github.com/jellydator/ttlcache/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/netutil"
	"golang.org/x/time/rate"

	"github.com/coreyleavitt/tailscale-openwrt/src/panel"
)

const (
	sessionCookie = "tspanel_session"
	sessionTTL    = 24 * time.Hour
)

type WebUIServer struct {
	server   *http.Server
	listener net.Listener
	mu       sync.Mutex
	log      *log.Logger
	panel    *panel.Panel
	listen   string
	password string
	sessions *ttlcache.Cache[string, time.Time] // sessionID -> creation time
	logins   *rate.Limiter                       // failed login attempts
	csrfKey  []byte
	config   struct {
		root     WebRoot
		maxConns MaxConns
		ifname   InterfaceName
	}
	assets  http.FileSystem
	closers []func() error
}

type LoginRequest struct {
	Password string `json:"password"`
}

type SetupOption interface {
	isSetupOption()
}

// WebRoot serves the panel from a zip file or directory instead of the
// built in assets.
type WebRoot string

// MaxConns caps the number of concurrent connections. Zero means no limit.
type MaxConns int

// InterfaceName is the Tailscale interface shown by /api/interface.
type InterfaceName string

func (a WebRoot) isSetupOption()       {}
func (a MaxConns) isSetupOption()      {}
func (a InterfaceName) isSetupOption() {}

func (w *WebUIServer) _applyOption(opt SetupOption) {
	switch v := opt.(type) {
	case WebRoot:
		w.config.root = v
	case MaxConns:
		w.config.maxConns = v
	case InterfaceName:
		w.config.ifname = v
	}
}

func Server(listen string, password string, p *panel.Panel, log *log.Logger, opts ...SetupOption) *WebUIServer {
	w := &WebUIServer{
		listen:   listen,
		password: password,
		panel:    p,
		log:      log,
		sessions: ttlcache.New(
			ttlcache.WithTTL[string, time.Time](sessionTTL),
		),
		logins:  rate.NewLimiter(rate.Every(2*time.Second), 5),
		csrfKey: make([]byte, 32),
	}
	if _, err := rand.Read(w.csrfKey); err != nil {
		panic("failed to generate CSRF key: " + err.Error())
	}
	for _, opt := range opts {
		w._applyOption(opt)
	}
	return w
}

// generateSessionID creates a random session ID
func (w *WebUIServer) generateSessionID() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		panic("failed to generate session ID: " + err.Error())
	}
	return hex.EncodeToString(bytes)
}

// isValidSession checks if a session is valid and not expired
func (w *WebUIServer) isValidSession(sessionID string) bool {
	item := w.sessions.Get(sessionID)
	return item != nil && !item.IsExpired()
}

// createSession creates a new session for the user
func (w *WebUIServer) createSession() string {
	sessionID := w.generateSessionID()
	w.sessions.Set(sessionID, time.Now(), ttlcache.DefaultTTL)
	return sessionID
}

// authMiddleware checks for valid session or redirects to login
func (w *WebUIServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		// Skip authentication if no password is set
		if w.password == "" {
			next.ServeHTTP(rw, r)
			return
		}

		cookie, err := r.Cookie(sessionCookie)
		if err == nil && w.isValidSession(cookie.Value) {
			next.ServeHTTP(rw, r)
			return
		}

		switch {
		case r.URL.Path == "/login.html", strings.HasPrefix(r.URL.Path, "/static/"):
			// The login page and its assets are public
			next.ServeHTTP(rw, r)
		case strings.HasPrefix(r.URL.Path, "/api/"), r.URL.Path == "/metrics":
			writeJSON(rw, http.StatusUnauthorized, mi{"error": "login required"})
		default:
			http.Redirect(rw, r, "/login.html", http.StatusSeeOther)
		}
	})
}

// loginHandler handles password authentication
func (w *WebUIServer) loginHandler(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var loginReq LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&loginReq); err != nil {
		http.Error(rw, "Invalid request", http.StatusBadRequest)
		return
	}

	if w.logins.Tokens() < 1 {
		w.log.Warnf("Too many failed logins, refusing request from %s", r.RemoteAddr)
		http.Error(rw, "Too many attempts, try again later", http.StatusTooManyRequests)
		return
	}

	if w.password == "" || subtle.ConstantTimeCompare([]byte(loginReq.Password), []byte(w.password)) != 1 {
		w.logins.Allow()
		w.log.Debugf("Authentication failed for request from %s", r.RemoteAddr)
		http.Error(rw, "Invalid password", http.StatusUnauthorized)
		return
	}

	sessionID := w.createSession()
	http.SetCookie(rw, &http.Cookie{
		Name:     sessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil, // Only set Secure flag if using HTTPS
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(sessionTTL / time.Second),
	})

	w.log.Debugf("Successful authentication for request from %s", r.RemoteAddr)
	rw.WriteHeader(http.StatusOK)
}

// logoutHandler handles logout
func (w *WebUIServer) logoutHandler(rw http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		w.sessions.Delete(cookie.Value)
	}

	http.SetCookie(rw, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1, // Delete cookie
	})

	http.Redirect(rw, r, "/login.html", http.StatusSeeOther)
}

// openAssets picks the file system the panel is served from: a zip file or
// directory named by WebRoot, or the built in assets.
func (w *WebUIServer) openAssets() (http.FileSystem, string, error) {
	root := string(w.config.root)
	if root == "" {
		return builtinAssets(), "built in assets", nil
	}
	if pakReader, err := zip.OpenReader(root); err == nil {
		fs, err := zipfs.NewZipFileSystem(&pakReader.Reader, zipfs.ServeIndexForMissing())
		if err != nil {
			pakReader.Close()
			return nil, "", fmt.Errorf("failed to read %s: %w", root, err)
		}
		w.closers = append(w.closers, pakReader.Close)
		return fs, "zipfs " + root, nil
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, "", fmt.Errorf("web root %s is neither a zip file nor a directory", root)
	}
	return http.Dir(root), "local fs " + root, nil
}

// Handler builds the HTTP handler of the panel.
func (w *WebUIServer) Handler() (http.Handler, error) {
	if w.assets == nil {
		assets, source, err := w.openAssets()
		if err != nil {
			return nil, err
		}
		w.assets = assets
		w.log.Debugf("WebUI is supplied from %s", source)
	}

	mux := http.NewServeMux()

	// Authentication endpoints - no auth required
	mux.HandleFunc("/auth/login", w.loginHandler)
	mux.HandleFunc("/auth/logout", w.logoutHandler)

	// Health check endpoint - no auth required
	mux.HandleFunc("/health", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("OK"))
	})

	mux.Handle("/metrics", w.authMiddleware(promhttp.Handler()))

	// We don't require secure cookies, since the panel is served from the
	// router on plain http.
	csrfProtect := csrf.Protect(w.csrfKey, csrf.Secure(false), csrf.Path("/"))
	mux.Handle("/api/", w.authMiddleware(plaintext(csrfProtect(&api{w: w}))))

	mux.Handle("/", w.authMiddleware(staticHandler(w.assets, w.log)))
	return mux, nil
}

// plaintext marks requests that did not arrive over TLS, so that the CSRF
// check skips the Referer comparison reserved for https.
func plaintext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.TLS == nil {
			r = csrf.PlaintextHTTPRequest(r)
		}
		next.ServeHTTP(rw, r)
	})
}

// Start binds the listener and serves until Stop is called.
func (w *WebUIServer) Start() error {
	if err := w.Listen(); err != nil {
		return err
	}
	return w.Serve()
}

// Listen builds the handler and binds the listen address without serving
// yet, so that bind errors surface before privileges are dropped.
func (w *WebUIServer) Listen() error {
	// Validate listen address before starting
	if _, _, err := net.SplitHostPort(w.listen); err != nil {
		return fmt.Errorf("invalid listen address: %v", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.server != nil {
		return errors.New("WebUI server is already running")
	}

	handler, err := w.Handler()
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", w.listen)
	if err != nil {
		return fmt.Errorf("WebUI server failed: %v", err)
	}
	if w.config.maxConns > 0 {
		listener = netutil.LimitListener(listener, int(w.config.maxConns))
	}

	w.listener = listener
	w.server = &http.Server{
		Handler:        handler,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   60 * time.Second, // actions wait on the router
		MaxHeaderBytes: 1 << 20,
	}
	go w.sessions.Start()
	return nil
}

// Serve accepts connections on the listener bound by Listen. It returns
// nil once Stop closes the server.
func (w *WebUIServer) Serve() error {
	w.mu.Lock()
	server, listener := w.server, w.listener
	w.mu.Unlock()
	switch {
	case listener == nil:
		return errors.New("WebUI server is not listening")
	case server == nil:
		return nil // stopped before serving
	}

	w.log.Infof("WebUI server starting on %s", listener.Addr())

	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("WebUI server failed: %v", err)
	}
	return nil
}

// Addr returns the listening address, or nil before Start.
func (w *WebUIServer) Addr() net.Addr {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.listener == nil {
		return nil
	}
	return w.listener.Addr()
}

func (w *WebUIServer) Stop() error {
	w.mu.Lock()
	server, listener := w.server, w.listener
	w.server = nil
	w.mu.Unlock()
	if server == nil {
		return nil
	}
	w.sessions.Stop()
	err := server.Close()
	// Close only tracks listeners passed to Serve.
	_ = listener.Close()
	for _, c := range w.closers {
		c()
	}
	w.closers = nil
	return err
}
