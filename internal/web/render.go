package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/timetable-admin/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutFile = "templates/layout.html"

// Renderer executes the embedded page templates inside the shared layout.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses every page template together with the layout.
func NewRenderer() (*Renderer, error) {
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		if file == layoutFile {
			continue
		}
		name := strings.TrimSuffix(path.Base(file), ".html")
		tmpl, err := template.New(path.Base(layoutFile)).Funcs(templateFuncs).ParseFS(templateFS, layoutFile, file)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = tmpl
	}
	return &Renderer{pages: pages}, nil
}

// Render writes page name to w. Output is buffered so a failing template writes nothing.
func (r *Renderer) Render(w io.Writer, name string, page Page) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", page); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

var templateFuncs = template.FuncMap{
	"statusLabel": func(active bool) string {
		if active {
			return "Active"
		}
		return "Inactive"
	},
	"statusClass": func(active bool) string {
		if active {
			return "badge-success"
		}
		return "badge-muted"
	},
	"typeLabel": func(t models.SubjectType) string {
		switch t {
		case models.SubjectTypePractical:
			return "Practical"
		case models.SubjectTypeLab:
			return "Lab"
		}
		return "Theory"
	},
	"facultyBadge": func(n int) string {
		switch n {
		case 0:
			return "No faculty"
		case 1:
			return "1 faculty member"
		}
		return strconv.Itoa(n) + " faculty members"
	},
	"urlWith": func(base, filters, key string, value interface{}) string {
		v, _ := url.ParseQuery(filters)
		v.Set(key, fmt.Sprint(value))
		return base + "?" + v.Encode()
	},
	"listURL": func(base, filters string) string {
		if filters == "" {
			return base
		}
		return base + "?" + filters
	},
	"percent": func(ratio float64) string {
		return fmt.Sprintf("%.0f%%", ratio*100)
	},
	"seq": func(from, to int) []int {
		out := make([]int, 0, to-from+1)
		for i := from; i <= to; i++ {
			out = append(out, i)
		}
		return out
	},
	"pages": func(p *models.Pagination) []int {
		total := p.TotalPages()
		out := make([]int, 0, total)
		for i := 1; i <= total; i++ {
			out = append(out, i)
		}
		return out
	},
	"selected": func(a, b interface{}) bool {
		return fmt.Sprint(a) == fmt.Sprint(b)
	},
	"contains": func(list []string, item string) bool {
		for _, v := range list {
			if v == item {
				return true
			}
		}
		return false
	},
	"date": func(v interface{}) string {
		switch t := v.(type) {
		case time.Time:
			if t.IsZero() {
				return "-"
			}
			return t.Format("02 Jan 2006 15:04")
		case *time.Time:
			if t == nil || t.IsZero() {
				return "-"
			}
			return t.Format("02 Jan 2006 15:04")
		}
		return "-"
	},
}
