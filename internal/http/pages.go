package httpx

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/splax/umd/internal/domain"
	"github.com/splax/umd/internal/repository"
	"github.com/splax/umd/internal/service/settings"
	"github.com/splax/umd/internal/service/users"
	"github.com/splax/umd/internal/session"
)

var settingsTabs = []string{"profile", "notifications", "security", "appearance"}

func (r *Router) handleRoot(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/" {
		r.renderError(w, req, http.StatusNotFound, "page not found")
		return
	}
	r.handleUsers(w, req)
}

func (r *Router) handleUsers(w http.ResponseWriter, req *http.Request) {
	ws, _ := workspaceFromContext(req.Context())
	switch req.Method {
	case http.MethodGet, http.MethodHead:
		r.renderUsers(w, req, ws, http.StatusOK, users.Input{}, nil, req.URL.Query().Get("add") == "1")
	case http.MethodPost:
		r.handleUserCreate(w, req, ws)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleUserCreate(w http.ResponseWriter, req *http.Request, ws *session.Workspace) {
	if err := req.ParseForm(); err != nil {
		r.renderError(w, req, http.StatusBadRequest, "invalid form payload")
		return
	}
	input := users.Input{
		Name:  req.PostFormValue("name"),
		Email: req.PostFormValue("email"),
		Role:  req.PostFormValue("role"),
	}
	_, err := r.usersFor(ws).Add(req.Context(), input)
	var invalid *users.ValidationError
	switch {
	case errors.As(err, &invalid):
		r.metrics.recordMutation("add", "invalid")
		r.metrics.recordValidationFailures(invalid.Fields.Fields())
		r.renderUsers(w, req, ws, http.StatusUnprocessableEntity, input, invalid.Fields, true)
		return
	case err != nil:
		r.metrics.recordMutation("add", "error")
		r.renderError(w, req, http.StatusInternalServerError, "could not add user")
		return
	}
	r.metrics.recordMutation("add", "ok")
	http.Redirect(w, req, "/users", http.StatusSeeOther)
}

func (r *Router) renderUsers(w http.ResponseWriter, req *http.Request, ws *session.Workspace, status int, form users.Input, errs users.FieldErrors, showForm bool) {
	svc := r.usersFor(ws)
	list := svc.List(req.Context())
	data := r.baseData(ws, "Users", "users")
	data["Users"] = list
	data["Stats"] = users.ComputeStats(list, r.statRoles)
	data["Roles"] = domain.Roles
	data["Form"] = form
	data["ShowForm"] = showForm
	if errs != nil {
		data["Errors"] = map[string]string(errs)
	}
	r.render(w, req, status, "users", data)
}

// handleUserDelete serves POST /users/{id}/delete. Unknown ids are ignored.
func (r *Router) handleUserDelete(w http.ResponseWriter, req *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(req.URL.Path, "/users/"), "/"), "/")
	if len(parts) != 2 || parts[1] != "delete" {
		r.renderError(w, req, http.StatusNotFound, "page not found")
		return
	}
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		r.renderError(w, req, http.StatusNotFound, "user not found")
		return
	}
	ws, _ := workspaceFromContext(req.Context())
	_, err = r.usersFor(ws).Delete(req.Context(), id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		r.metrics.recordMutation("delete", "missing")
	case err != nil:
		r.metrics.recordMutation("delete", "error")
		r.renderError(w, req, http.StatusInternalServerError, "could not delete user")
		return
	default:
		r.metrics.recordMutation("delete", "ok")
	}
	http.Redirect(w, req, "/users", http.StatusSeeOther)
}

func (r *Router) handleDashboard(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		r.methodNotAllowed(w)
		return
	}
	ws, _ := workspaceFromContext(req.Context())
	list := r.usersFor(ws).List(req.Context())
	recent := list
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	data := r.baseData(ws, "Dashboard", "dashboard")
	data["Stats"] = users.ComputeStats(list, domain.Roles)
	data["Recent"] = recent
	r.render(w, req, http.StatusOK, "dashboard", data)
}

func (r *Router) handleSettings(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		r.methodNotAllowed(w)
		return
	}
	ws, _ := workspaceFromContext(req.Context())
	r.renderSettings(w, req, ws, http.StatusOK, settingsTab(req.URL.Query().Get("tab")), nil)
}

func (r *Router) renderSettings(w http.ResponseWriter, req *http.Request, ws *session.Workspace, status int, tab string, errs settings.FieldErrors) {
	data := r.baseData(ws, "Settings", "settings")
	prefs := ws.Settings.Get()
	data["Tab"] = tab
	data["Tabs"] = settingsTabs
	data["Settings"] = prefs
	data["Themes"] = domain.Themes
	data["Languages"] = domain.Languages
	data["PasswordSet"] = len(prefs.PasswordHash) > 0
	if errs != nil {
		data["Errors"] = map[string]string(errs)
	}
	r.render(w, req, status, "settings", data)
}

// handleSettingsUpdate serves POST /settings/{section}.
func (r *Router) handleSettingsUpdate(w http.ResponseWriter, req *http.Request) {
	section := strings.Trim(strings.TrimPrefix(req.URL.Path, "/settings/"), "/")
	if settingsTab(section) != section {
		r.renderError(w, req, http.StatusNotFound, "page not found")
		return
	}
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	if err := req.ParseForm(); err != nil {
		r.renderError(w, req, http.StatusBadRequest, "invalid form payload")
		return
	}
	ws, _ := workspaceFromContext(req.Context())
	svc := r.settingsFor(ws)
	ctx := req.Context()

	var err error
	switch section {
	case "profile":
		_, err = svc.UpdateProfile(ctx, settings.ProfileInput{
			Name:  req.PostFormValue("name"),
			Email: req.PostFormValue("email"),
			Phone: req.PostFormValue("phone"),
		})
	case "notifications":
		_, err = svc.UpdateNotifications(ctx, domain.NotificationPrefs{
			Email:   checkbox(req, "email"),
			Push:    checkbox(req, "push"),
			Updates: checkbox(req, "updates"),
		})
	case "security":
		err = svc.ChangePassword(ctx, settings.PasswordInput{
			Current: req.PostFormValue("current_password"),
			New:     req.PostFormValue("new_password"),
			Confirm: req.PostFormValue("confirm_password"),
		})
	case "appearance":
		_, err = svc.UpdateAppearance(ctx, settings.AppearanceInput{
			Theme:    req.PostFormValue("theme"),
			Language: req.PostFormValue("language"),
		})
	}

	var invalid *settings.ValidationError
	switch {
	case errors.As(err, &invalid):
		r.renderSettings(w, req, ws, http.StatusUnprocessableEntity, section, invalid.Fields)
		return
	case err != nil:
		r.renderError(w, req, http.StatusInternalServerError, "could not save settings")
		return
	}
	http.Redirect(w, req, "/settings?tab="+url.QueryEscape(section), http.StatusSeeOther)
}

func (r *Router) handleSidebarToggle(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	ws, _ := workspaceFromContext(req.Context())
	if _, err := r.settingsFor(ws).ToggleSidebar(req.Context()); err != nil {
		r.renderError(w, req, http.StatusInternalServerError, "could not toggle sidebar")
		return
	}
	http.Redirect(w, req, localReferer(req, "/users"), http.StatusSeeOther)
}

// handleLogout discards the caller's workspace; the next visit starts over
// from the seed data.
func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	if ws, ok := workspaceFromContext(req.Context()); ok {
		r.registry.End(ws.ID)
		r.metrics.setSessions(r.registry.Len())
	}
	http.SetCookie(w, r.sessions.ExpireCookie())
	http.Redirect(w, req, "/", http.StatusSeeOther)
}

func settingsTab(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, tab := range settingsTabs {
		if tab == value {
			return tab
		}
	}
	return settingsTabs[0]
}

func checkbox(req *http.Request, name string) bool {
	switch strings.ToLower(req.PostFormValue(name)) {
	case "on", "true", "1":
		return true
	default:
		return false
	}
}

// localReferer returns the path of the Referer header when it points back at
// this host, and fallback otherwise.
func localReferer(req *http.Request, fallback string) string {
	ref := strings.TrimSpace(req.Referer())
	if ref == "" {
		return fallback
	}
	u, err := url.Parse(ref)
	if err != nil || (u.Host != "" && !strings.EqualFold(u.Host, req.Host)) {
		return fallback
	}
	if !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return fallback
	}
	target := u.Path
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return target
}
