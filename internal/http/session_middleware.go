package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/splax/umd/internal/session"
)

type sessionContextKey struct{}

type contextSetter interface {
	SetContext(context.Context)
}

// withSession resolves the caller's workspace. With require set, requests
// without a live session are rejected instead of starting a new one.
func (r *Router) withSession(require bool, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id, err := r.sessions.SessionIDFromRequest(req)
		if err != nil && !errors.Is(err, http.ErrNoCookie) {
			r.logger.Warn("session token invalid", "error", err, "path", req.URL.Path)
		}

		var ws *session.Workspace
		if require {
			live, ok := r.registry.Lookup(id)
			if !ok {
				writeError(w, http.StatusUnauthorized, "session required")
				return
			}
			ws, _ = r.registry.Open(live.ID)
		} else {
			var created bool
			ws, created = r.registry.Open(id)
			if created {
				cookie, err := r.sessions.MakeCookie(ws.ID)
				if err != nil {
					r.logger.Error("session cookie issuance failed", "error", err)
					r.registry.End(ws.ID)
					r.renderError(w, req, http.StatusInternalServerError, "session issuance failed")
					return
				}
				http.SetCookie(w, cookie)
				r.logger.Info("session started", "session_id", ws.ID)
			}
		}
		r.metrics.setSessions(r.registry.Len())

		ctx := context.WithValue(req.Context(), sessionContextKey{}, ws)
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

func workspaceFromContext(ctx context.Context) (*session.Workspace, bool) {
	ws, ok := ctx.Value(sessionContextKey{}).(*session.Workspace)
	return ws, ok && ws != nil
}
