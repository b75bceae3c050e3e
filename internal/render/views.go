package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"

	"github.com/MimeLyc/study-assistant/internal/jobs"
)

//go:embed templates/*.html
var templateFiles embed.FS

//go:embed static
var staticFiles embed.FS

// View names.
const (
	ViewHome       = "home"
	ViewHowItWorks = "how_it_works"
	ViewUpload     = "upload"
	ViewPending    = "pending"
	ViewResult     = "result"
	ViewError      = "error"
	ViewHistory    = "history"
)

var viewNames = []string{ViewHome, ViewHowItWorks, ViewUpload, ViewPending, ViewResult, ViewError, ViewHistory}

// Page is the data handed to every view.
type Page struct {
	L      *Labels
	Active string

	Message string
	Error   string

	Job    *jobs.TrackedJob
	Result *jobs.Result

	RefreshSeconds int

	Summaries    []jobs.Summary
	StatusFilter string
}

// Views holds the parsed templates, one set per page sharing the layout.
type Views struct {
	pages map[string]*template.Template
}

func NewViews() (*Views, error) {
	funcs := template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}
	v := &Views{pages: make(map[string]*template.Template, len(viewNames))}
	for _, name := range viewNames {
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFiles, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse view %s: %w", name, err)
		}
		v.pages[name] = tmpl
	}
	return v, nil
}

// Render executes view name into w. The page is rendered to a buffer first
// so a template error never leaves a half-written response.
func (v *Views) Render(w io.Writer, name string, page Page) error {
	tmpl, ok := v.pages[name]
	if !ok {
		return fmt.Errorf("unknown view %q", name)
	}
	if page.L == nil {
		page.L = LabelsFor("", page.Result)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout.html", page); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// Static returns the embedded stylesheet tree, rooted at its directory.
func Static() fs.FS {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
