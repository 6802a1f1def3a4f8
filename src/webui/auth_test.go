package webui

import (
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gologme/log"
)

func newTestHTTPServer(t *testing.T, server *WebUIServer) *httptest.Server {
	t.Helper()
	handler, err := server.Handler()
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func login(t *testing.T, client *http.Client, url, password string) int {
	t.Helper()
	resp, err := client.Post(url+"/auth/login", "application/json",
		strings.NewReader(fmt.Sprintf(`{"password":%q}`, password)))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestSessionAuthentication(t *testing.T) {
	p, _ := newTestPanel(t)
	server := Server("127.0.0.1:0", "testpassword", p, log.New(io.Discard, "", 0))

	loginTests := []struct {
		name       string
		body       string
		expectCode int
	}{
		{"Wrong password", `{"password":"wrongpass"}`, http.StatusUnauthorized},
		{"Correct password", `{"password":"testpassword"}`, http.StatusOK},
		{"Malformed", `{"password":`, http.StatusBadRequest},
	}

	for _, tt := range loginTests {
		t.Run("Login_"+tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/auth/login", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			rr := httptest.NewRecorder()
			server.loginHandler(rr, req)

			if rr.Code != tt.expectCode {
				t.Errorf("Expected status code %d, got %d", tt.expectCode, rr.Code)
			}
		})
	}

	t.Run("Login_GET", func(t *testing.T) {
		rr := httptest.NewRecorder()
		server.loginHandler(rr, httptest.NewRequest("GET", "/auth/login", nil))
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("Expected 405, got %d", rr.Code)
		}
	})

	protected := server.authMiddleware(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
	}))

	accessTests := []struct {
		path       string
		expectCode int
	}{
		{"/", http.StatusSeeOther},
		{"/index.html", http.StatusSeeOther},
		{"/api/state", http.StatusUnauthorized},
		{"/metrics", http.StatusUnauthorized},
		{"/login.html", http.StatusOK},
		{"/static/style.css", http.StatusOK},
	}
	for _, tt := range accessTests {
		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, httptest.NewRequest("GET", tt.path, nil))
		if rr.Code != tt.expectCode {
			t.Errorf("%s without session: expected %d, got %d", tt.path, tt.expectCode, rr.Code)
		}
	}
}

func TestNoPasswordAuthentication(t *testing.T) {
	p, _ := newTestPanel(t)
	server := Server("127.0.0.1:0", "", p, log.New(io.Discard, "", 0))

	rr := httptest.NewRecorder()
	handler := server.authMiddleware(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("Expected access without auth when no password is set, got %d", rr.Code)
	}

	// Logging in is impossible without a password
	rr = httptest.NewRecorder()
	server.loginHandler(rr, httptest.NewRequest("POST", "/auth/login", strings.NewReader(`{"password":""}`)))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rr.Code)
	}
}

func TestSessionWorkflow(t *testing.T) {
	p, _ := newTestPanel(t)
	server := Server("127.0.0.1:0", "testpassword", p, log.New(io.Discard, "", 0))
	ts := newTestHTTPServer(t, server)
	client := newClient(t)

	resp, err := client.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected 401 before login, got %d", resp.StatusCode)
	}

	if code := login(t, client, ts.URL, "testpassword"); code != http.StatusOK {
		t.Fatalf("Login failed with %d", code)
	}

	resp, err = client.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 after login, got %d", resp.StatusCode)
	}

	resp, err = client.Get(ts.URL + "/auth/logout")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("Expected logout to redirect, got %d", resp.StatusCode)
	}

	resp, err = client.Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 after logout, got %d", resp.StatusCode)
	}
}

func TestLoginRateLimit(t *testing.T) {
	p, _ := newTestPanel(t)
	server := Server("127.0.0.1:0", "testpassword", p, log.New(io.Discard, "", 0))
	ts := newTestHTTPServer(t, server)
	client := newClient(t)

	for i := 0; i < 5; i++ {
		if code := login(t, client, ts.URL, "guess"); code != http.StatusUnauthorized {
			t.Fatalf("Attempt %d: expected 401, got %d", i, code)
		}
	}
	if code := login(t, client, ts.URL, "testpassword"); code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 after repeated failures, got %d", code)
	}
}

func TestHealthEndpointNoAuth(t *testing.T) {
	p, _ := newTestPanel(t)
	server := Server("127.0.0.1:0", "testpassword", p, log.New(io.Discard, "", 0))
	ts := newTestHTTPServer(t, server)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected health check to bypass auth, got %d", resp.StatusCode)
	}
}

func TestMetricsBehindAuth(t *testing.T) {
	p, _ := newTestPanel(t)
	server := Server("127.0.0.1:0", "testpassword", p, log.New(io.Discard, "", 0))
	ts := newTestHTTPServer(t, server)
	client := newClient(t)
	login(t, client, ts.URL, "testpassword")

	resp, err := client.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "tspanel_connected") {
		t.Errorf("Expected panel metrics, got %d", resp.StatusCode)
	}
}
