package httpx

import (
	"net/http"
	"time"

	"github.com/splax/umd/internal/ws"
)

const (
	notificationEvent = "notification"
	wsPingInterval    = 30 * time.Second
)

// handleEvents streams the caller's notifications as Server-Sent Events until
// the client disconnects.
func (r *Router) handleEvents(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	session, ok := workspaceFromContext(req.Context())
	if !ok {
		r.logger.Error("session context missing for event stream", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "session context missing")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	client := ws.NewSSEClient(w, flusher, notificationEvent, r.logger)
	r.hub.Register(session.ID, client)
	defer func() {
		r.hub.Unregister(session.ID, client)
		client.Close()
	}()
	if err := client.Heartbeat(); err != nil {
		return
	}

	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-req.Context().Done():
			return
		case <-r.hub.Done():
			return
		case <-ticker.C:
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}

// handleNotificationsWS upgrades to a websocket that receives the same
// notification payloads as the SSE stream.
func (r *Router) handleNotificationsWS(w http.ResponseWriter, req *http.Request) {
	session, ok := workspaceFromContext(req.Context())
	if !ok {
		r.logger.Error("session context missing for notifications websocket", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "session context missing")
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.hub.Register(session.ID, client)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := client.Ping(); err != nil {
					return
				}
			}
		}
	}()
	go func() {
		defer func() {
			close(done)
			r.hub.Unregister(session.ID, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}
