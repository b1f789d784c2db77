package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/splax/umd/internal/repository"
	"github.com/splax/umd/internal/service/users"
	"github.com/splax/umd/pkg/config"
)

const maxJSONBody = 64 << 10

type sessionResponse struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
}

type validateResponse struct {
	Valid  bool              `json:"valid"`
	Errors users.FieldErrors `json:"errors"`
}

// handleAPISession starts a fresh seeded session and returns its bearer token.
func (r *Router) handleAPISession(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	ws, _ := r.registry.Open("")
	token, err := r.sessions.Token(ws.ID)
	if err != nil {
		r.registry.End(ws.ID)
		r.logger.Error("session token issuance failed", "error", err)
		writeError(w, http.StatusInternalServerError, "session issuance failed")
		return
	}
	if cookie, err := r.sessions.MakeCookie(ws.ID); err == nil {
		http.SetCookie(w, cookie)
	}
	r.metrics.setSessions(r.registry.Len())
	r.logger.Info("session started", "session_id", ws.ID, "via", "api")
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: ws.ID, Token: token})
}

func (r *Router) handleAPIUsers(w http.ResponseWriter, req *http.Request) {
	ws, _ := workspaceFromContext(req.Context())
	svc := r.usersFor(ws)
	switch req.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"users": svc.List(req.Context())})
	case http.MethodPost:
		var input users.Input
		if err := decodeJSON(req, &input); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json payload")
			return
		}
		user, err := svc.Add(req.Context(), input)
		var invalid *users.ValidationError
		switch {
		case errors.As(err, &invalid):
			r.metrics.recordMutation("add", "invalid")
			r.metrics.recordValidationFailures(invalid.Fields.Fields())
			writeFieldErrors(w, invalid.Fields)
			return
		case err != nil:
			r.metrics.recordMutation("add", "error")
			writeError(w, http.StatusInternalServerError, "could not add user")
			return
		}
		r.metrics.recordMutation("add", "ok")
		writeJSON(w, http.StatusCreated, user)
	default:
		r.methodNotAllowed(w)
	}
}

// handleAPIUserSubroutes dispatches /api/users/stats, /api/users/validate and
// /api/users/{id}.
func (r *Router) handleAPIUserSubroutes(w http.ResponseWriter, req *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(req.URL.Path, "/api/users/"), "/")
	switch rest {
	case "":
		r.handleAPIUsers(w, req)
	case "stats":
		r.handleAPIStats(w, req)
	case "validate":
		r.handleAPIValidate(w, req)
	default:
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			r.notFound(w)
			return
		}
		r.handleAPIUser(w, req, id)
	}
}

func (r *Router) handleAPIUser(w http.ResponseWriter, req *http.Request, id int64) {
	ws, _ := workspaceFromContext(req.Context())
	switch req.Method {
	case http.MethodGet:
		user, ok := ws.Users.Get(id)
		if !ok {
			r.notFound(w)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodDelete:
		_, err := r.usersFor(ws).Delete(req.Context(), id)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			r.metrics.recordMutation("delete", "missing")
			r.notFound(w)
		case err != nil:
			r.metrics.recordMutation("delete", "error")
			writeError(w, http.StatusInternalServerError, "could not delete user")
		default:
			r.metrics.recordMutation("delete", "ok")
			w.WriteHeader(http.StatusNoContent)
		}
	default:
		r.methodNotAllowed(w)
	}
}

// handleAPIStats reports counts for the configured roles, or for the
// comma-separated ?roles= override.
func (r *Router) handleAPIStats(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	roles := r.statRoles
	if raw := req.URL.Query().Get("roles"); strings.TrimSpace(raw) != "" {
		parsed, err := users.ParseStatRoles(config.SplitList(raw))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		roles = parsed
	}
	ws, _ := workspaceFromContext(req.Context())
	writeJSON(w, http.StatusOK, r.usersFor(ws).Stats(req.Context(), roles))
}

// handleAPIValidate checks a candidate without storing it; the add form uses
// it to refresh field messages while typing.
func (r *Router) handleAPIValidate(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var input users.Input
	if err := decodeJSON(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json payload")
		return
	}
	errs := users.Validate(input)
	writeJSON(w, http.StatusOK, validateResponse{Valid: len(errs) == 0, Errors: errs})
}

func decodeJSON(req *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(req.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}
