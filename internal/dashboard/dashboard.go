package dashboard

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"

	"github.com/hazz-dev/readycheck/internal/readiness"
)

//go:embed templates
var templates embed.FS

//go:embed static
var static embed.FS

var pageTmpl = template.Must(template.ParseFS(templates, "templates/index.html"))

type pageData struct {
	BackendURL string
	State      string
	StatusText string
	Service    string
	Timestamp  string
	Error      string
}

// Render writes the readiness page for backendURL in view v.
func Render(w io.Writer, backendURL string, v readiness.View) error {
	data := pageData{
		BackendURL: backendURL,
		State:      v.State().String(),
		StatusText: v.StatusText(),
	}
	if h, ok := v.Health(); ok {
		data.Service = h.Service
		data.Timestamp = h.Timestamp
	}
	if msg, ok := v.ErrorMessage(); ok {
		data.Error = msg
	}
	if err := pageTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("rendering page: %w", err)
	}
	return nil
}

// Static returns an HTTP handler serving the embedded stylesheet and other
// static assets. Mount it with the /static/ prefix stripped.
func Static() http.Handler {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		// Unreachable: "static" is always present as it is embedded.
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
