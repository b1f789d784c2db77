package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/splax/umd/internal/session"
	"github.com/splax/umd/internal/ws"
	"github.com/splax/umd/pkg/logger"
)

const testSecret = "test-session-secret"

type testEnv struct {
	router   *Router
	registry *session.Registry
	hub      *ws.Hub
	sessions session.Manager
}

type envOption func(*Options)

func withWriteLimit(limit int, limiter RateLimiter) envOption {
	return func(o *Options) {
		o.WriteLimit = limit
		o.Limiter = limiter
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	sessions, err := session.NewManager(testSecret, "umd_session", false, 0)
	require.NoError(t, err)
	hub := ws.NewHub()
	registry := session.NewRegistry(session.Options{
		IdleTTL:     time.Hour,
		MaxSessions: 50,
		OnEvict:     hub.Drop,
	})
	options := Options{
		Logger:    logger.Discard(),
		Sessions:  sessions,
		Registry:  registry,
		Hub:       hub,
		Heartbeat: 20 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&options)
	}
	router, err := NewRouter(options)
	require.NoError(t, err)
	t.Cleanup(func() {
		router.Close()
		registry.Close()
		hub.Close()
	})
	return &testEnv{router: router, registry: registry, hub: hub, sessions: sessions}
}

// request runs one request through the router, attaching cookies.
func (e *testEnv) request(method, target string, body io.Reader, header http.Header, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) postForm(target string, values url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	header := http.Header{"Content-Type": []string{"application/x-www-form-urlencoded"}}
	return e.request(http.MethodPost, target, strings.NewReader(values.Encode()), header, cookies...)
}

// startBrowserSession opens a page and returns the issued session cookie.
func (e *testEnv) startBrowserSession(t *testing.T) *http.Cookie {
	t.Helper()
	rec := e.request(http.MethodGet, "/users", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	return sessionCookie(t, rec)
}

// startAPISession opens a session through the JSON API and returns its bearer token.
func (e *testEnv) startAPISession(t *testing.T) (string, string) {
	t.Helper()
	rec := e.request(http.MethodPost, "/api/session", nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var payload sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.NotEmpty(t, payload.Token)
	return payload.SessionID, payload.Token
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "umd_session" {
			return c
		}
	}
	t.Fatalf("no session cookie issued")
	return nil
}

func parseError(t *testing.T, body string) string {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	msg, _ := payload["error"].(string)
	return msg
}

type streamRecorder struct {
	mu     sync.Mutex
	header http.Header
	status int
	buf    bytes.Buffer
	flush  int
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{header: make(http.Header)}
}

func (s *streamRecorder) Header() http.Header {
	return s.header
}

func (s *streamRecorder) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.buf.Write(b)
}

func (s *streamRecorder) WriteHeader(status int) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

func (s *streamRecorder) Flush() {
	s.mu.Lock()
	s.flush++
	s.mu.Unlock()
}

func (s *streamRecorder) body() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func (s *streamRecorder) flushCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush
}

// noFlushRecorder hides the http.Flusher of the embedded recorder.
type noFlushRecorder struct {
	rec *httptest.ResponseRecorder
}

func (n noFlushRecorder) Header() http.Header         { return n.rec.Header() }
func (n noFlushRecorder) Write(b []byte) (int, error) { return n.rec.Write(b) }
func (n noFlushRecorder) WriteHeader(status int)      { n.rec.WriteHeader(status) }

func extractSSEPayloads(body string) []map[string]any {
	var out []map[string]any
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &payload); err == nil {
			out = append(out, payload)
		}
	}
	return out
}
