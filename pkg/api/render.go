package api

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"blog/pkg/blog"
	"blog/pkg/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type indexData struct {
	SessionID string
	Posts     []models.DisplayPost
	HasMore   bool
	LoadError string
}

type errorData struct {
	Message string
}

func renderIndex(w http.ResponseWriter, s *blog.Session) error {
	page := s.Page()
	data := indexData{
		SessionID: s.ID.String(),
		Posts:     page.Posts,
		HasMore:   page.HasMore(),
	}
	if s.LastError() != nil {
		data.LoadError = msgLoadMoreFailed
	}

	return render(w, http.StatusOK, "index.html", data)
}

func renderError(w http.ResponseWriter, code int, msg string) {
	_ = render(w, code, "error.html", errorData{Message: msg})
}

// render executes the template into a buffer first so a template error can
// still produce a clean 500.
func render(w http.ResponseWriter, code int, name string, data any) error {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		http.Error(w, msgInternal, http.StatusInternalServerError)
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_, err := buf.WriteTo(w)
	return err
}
