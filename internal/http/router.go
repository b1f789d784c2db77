package httpx

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/splax/umd/internal/domain"
	"github.com/splax/umd/internal/notify"
	"github.com/splax/umd/internal/service/settings"
	"github.com/splax/umd/internal/service/users"
	"github.com/splax/umd/internal/session"
	"github.com/splax/umd/internal/ws"
)

const (
	defaultWriteWindow = time.Minute
	defaultHeartbeat   = 15 * time.Second
)

// Options carries the collaborators of a Router.
type Options struct {
	Logger      *slog.Logger
	Sessions    session.Manager
	Registry    *session.Registry
	Hub         *ws.Hub
	Limiter     RateLimiter
	StatRoles   []domain.Role
	WriteLimit  int
	WriteWindow time.Duration
	Heartbeat   time.Duration
}

// Router wires HTTP endpoints to the per-session services.
type Router struct {
	mux         *http.ServeMux
	logger      *slog.Logger
	sessions    session.Manager
	registry    *session.Registry
	hub         *ws.Hub
	limiter     RateLimiter
	pages       *renderer
	metrics     *metrics
	upgrader    websocket.Upgrader
	statRoles   []domain.Role
	writeLimit  int
	writeWindow time.Duration
	heartbeat   time.Duration
}

// NewRouter assembles routes with dependencies.
func NewRouter(opts Options) (*Router, error) {
	if opts.Registry == nil {
		return nil, errors.New("session registry is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	pages, err := newRenderer()
	if err != nil {
		return nil, err
	}
	r := &Router{
		mux:         http.NewServeMux(),
		logger:      opts.Logger,
		sessions:    opts.Sessions,
		registry:    opts.Registry,
		hub:         opts.Hub,
		limiter:     opts.Limiter,
		pages:       pages,
		metrics:     newMetrics(),
		statRoles:   opts.StatRoles,
		writeLimit:  opts.WriteLimit,
		writeWindow: opts.WriteWindow,
		heartbeat:   opts.Heartbeat,
	}
	r.upgrader = websocket.Upgrader{CheckOrigin: sameOrigin}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	if r.hub == nil {
		r.hub = ws.NewHub()
	}
	if len(r.statRoles) == 0 {
		r.statRoles = []domain.Role{domain.RoleAdmin, domain.RoleEditor}
	}
	if r.writeWindow <= 0 {
		r.writeWindow = defaultWriteWindow
	}
	if r.heartbeat <= 0 {
		r.heartbeat = defaultHeartbeat
	}
	r.register()
	return r, nil
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())

	r.mux.HandleFunc("/", r.page("/", r.handleRoot))
	r.mux.HandleFunc("/users", r.page("/users", r.handleUsers))
	r.mux.HandleFunc("/users/", r.page("/users/{id}/delete", r.handleUserDelete))
	r.mux.HandleFunc("/dashboard", r.page("/dashboard", r.handleDashboard))
	r.mux.HandleFunc("/settings", r.page("/settings", r.handleSettings))
	r.mux.HandleFunc("/settings/", r.page("/settings/{section}", r.handleSettingsUpdate))
	r.mux.HandleFunc("/ui/sidebar", r.page("/ui/sidebar", r.handleSidebarToggle))
	r.mux.HandleFunc("/logout", r.page("/logout", r.handleLogout))

	r.mux.HandleFunc("/api/session", r.audit("/api/session", r.withRateLimit("/api/session", r.handleAPISession)))
	r.mux.HandleFunc("/api/users", r.api("/api/users", r.handleAPIUsers))
	r.mux.HandleFunc("/api/users/", r.api("/api/users/{id}", r.handleAPIUserSubroutes))

	r.mux.HandleFunc("/events", r.stream("/events", r.handleEvents))
	r.mux.HandleFunc("/ws/notifications", r.stream("/ws/notifications", r.handleNotificationsWS))
}

// page serves browser routes; a missing session is created on the fly.
func (r *Router) page(route string, next http.HandlerFunc) http.HandlerFunc {
	return r.audit(route, r.withSession(false, r.withRateLimit(route, next)))
}

// api serves JSON routes, which require an existing session.
func (r *Router) api(route string, next http.HandlerFunc) http.HandlerFunc {
	return r.audit(route, r.withSession(true, r.withRateLimit(route, next)))
}

func (r *Router) stream(route string, next http.HandlerFunc) http.HandlerFunc {
	return r.audit(route, r.withSession(true, next))
}

func (r *Router) usersFor(space *session.Workspace) users.Service {
	return users.New(space.Users, r.notifierFor(space), r.logger.With("session_id", space.ID))
}

func (r *Router) settingsFor(space *session.Workspace) settings.Service {
	return settings.New(space.Settings, r.notifierFor(space), r.logger.With("session_id", space.ID))
}

func (r *Router) notifierFor(space *session.Workspace) notify.Sink {
	return notify.Fanout{space.Toasts, notify.NewBroadcaster(r.hub, space.ID, r.logger)}
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		r.methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": r.registry.Len(),
	})
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.metrics.recordRequest(req.Method, route, status, duration)

		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"route", route,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if space, ok := workspaceFromContext(ctx); ok {
			fields = append(fields, "session_id", space.ID)
		}

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}

func sameOrigin(req *http.Request) bool {
	origin := req.Header.Get("Origin")
	if origin == "" {
		return true
	}
	trimmed := strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://")
	return strings.EqualFold(trimmed, req.Host)
}
