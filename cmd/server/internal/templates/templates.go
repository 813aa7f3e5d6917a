// Package templates renders notification email bodies from embedded
// templates. Rendering is a pure function of the template name and the data
// context; the same context is used for the HTML and the plain-text body.
package templates

import (
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

//go:embed *.tmpl
var files embed.FS

// Template identifiers accepted by Render.
const (
	QueueItemChangeHTML = "queue-item-change"
	QueueItemChangeText = "queue-item-change-text"
)

// Renderer renders named templates to strings.
type Renderer struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	html, err := htmltemplate.ParseFS(files, "*.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("templates: parse html: %w", err)
	}
	text, err := texttemplate.ParseFS(files, "*.txt.tmpl")
	if err != nil {
		return nil, fmt.Errorf("templates: parse text: %w", err)
	}
	return &Renderer{html: html, text: text}, nil
}

// Render executes the named template with the given data context.
func (r *Renderer) Render(name string, data any) (string, error) {
	var out strings.Builder
	switch name {
	case QueueItemChangeHTML:
		if err := r.html.ExecuteTemplate(&out, "queue-item-change.html.tmpl", data); err != nil {
			return "", fmt.Errorf("templates: render %s: %w", name, err)
		}
	case QueueItemChangeText:
		if err := r.text.ExecuteTemplate(&out, "queue-item-change.txt.tmpl", data); err != nil {
			return "", fmt.Errorf("templates: render %s: %w", name, err)
		}
	default:
		return "", fmt.Errorf("templates: unknown template %q", name)
	}
	return out.String(), nil
}
