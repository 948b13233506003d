package messages

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer evaluates the embedded message templates.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses every embedded template.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("messages").Option("missingkey=error").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse message templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render executes the named template against data.
func (r *Renderer) Render(name string, data any) (string, error) {
	if r == nil || r.tmpl == nil {
		return "", fmt.Errorf("renderer not initialized")
	}
	if r.tmpl.Lookup(name) == nil {
		return "", fmt.Errorf("template %q not found", name)
	}
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %q: %w", name, err)
	}
	return buf.String(), nil
}
