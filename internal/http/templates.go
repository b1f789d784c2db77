package httpx

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/splax/umd/internal/domain"
	"github.com/splax/umd/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

type renderer struct {
	templates *template.Template
}

func newRenderer() (*renderer, error) {
	funcs := template.FuncMap{
		"initials":  initials,
		"roleClass": func(r domain.Role) string { return strings.ToLower(string(r)) },
		"year":      func() int { return time.Now().Year() },
	}
	templates, err := template.New("base").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &renderer{templates: templates}, nil
}

func (p *renderer) execute(name string, data map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	if err := p.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// baseData fills the values every page layout reads. Pending toasts are
// drained here so each one is shown exactly once.
func (r *Router) baseData(ws *session.Workspace, title, active string) map[string]any {
	prefs := ws.Settings.Get()
	return map[string]any{
		"Title":       title,
		"Active":      active,
		"SidebarOpen": prefs.SidebarOpen,
		"Theme":       prefs.Appearance.Theme,
		"Profile":     prefs.Profile,
		"Toasts":      ws.Toasts.Drain(),
		"Errors":      map[string]string{},
	}
}

func (r *Router) render(w http.ResponseWriter, req *http.Request, status int, tpl string, data map[string]any) {
	body, err := r.pages.execute(tpl, data)
	if err != nil {
		r.logger.Error("template render failed", "template", tpl, "path", req.URL.Path, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (r *Router) renderError(w http.ResponseWriter, req *http.Request, status int, message string) {
	r.logger.Warn("dashboard error", "status", status, "message", message, "path", req.URL.Path)
	if wantsJSON(req) {
		writeError(w, status, message)
		return
	}
	data := map[string]any{
		"Title":   http.StatusText(status),
		"Status":  status,
		"Message": message,
	}
	body, err := r.pages.execute("error", data)
	if err != nil {
		http.Error(w, message, status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func initials(name string) string {
	var out []rune
	for _, part := range strings.Fields(name) {
		for _, r := range part {
			out = append(out, r)
			break
		}
		if len(out) == 2 {
			break
		}
	}
	return strings.ToUpper(string(out))
}
