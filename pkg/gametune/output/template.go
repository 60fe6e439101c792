package output

import (
	"bytes"
	"sync"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
)

// TemplateFormatter formats output using a custom Go text/template.
// The template receives the View.
type TemplateFormatter struct {
	templateStr string
	template    *template.Template
	mu          sync.Mutex
}

// NewTemplateFormatter creates a new template formatter with the given template string.
func NewTemplateFormatter(templateStr string) *TemplateFormatter {
	return &TemplateFormatter{
		templateStr: templateStr,
	}
}

// SetTemplate sets or updates the template string.
func (f *TemplateFormatter) SetTemplate(templateStr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.templateStr = templateStr
	f.template = nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		// Usage: {{date .AppliedAt "2006-01-02"}}
		"date": func(t time.Time, layout string) string {
			if t.IsZero() {
				return ""
			}
			return t.Format(layout)
		},

		// Usage: {{bytes .Memory.Available}}
		"bytes": func(size uint64) string {
			return humanize.IBytes(size)
		},

		// Usage: {{ago .Timestamp}}
		"ago": humanize.Time,
	}
}

// Format writes the formatted output to the buffer.
func (f *TemplateFormatter) Format(w *bytes.Buffer, v *View) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.template == nil {
		tmpl, err := template.New("output").Funcs(templateFuncs()).Parse(f.templateStr)
		if err != nil {
			return err
		}
		f.template = tmpl
	}
	return f.template.Execute(w, v)
}

// defaultTemplate lists report steps one per line.
const defaultTemplate = `{{with .Report}}{{range .Steps}}{{.Result.Status}}	{{.Operation}}	{{.Result.Message}}
{{end}}{{end}}`

func init() {
	Register("template", func() Formatter {
		return NewTemplateFormatter(defaultTemplate)
	})
}

// Ensure TemplateFormatter implements Formatter.
var _ Formatter = (*TemplateFormatter)(nil)
