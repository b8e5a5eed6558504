// Package prompts holds the instructional text sent to agents.
package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"
)

//go:embed dbbench/preamble.md.tmpl
var PreambleTemplate string

// PreambleData is the template input for a preamble.
type PreambleData struct {
	// MaxRound is the round budget T.
	MaxRound int
	// Dialect names the database agents talk to, e.g. "SQLite".
	Dialect string
}

// Preamble renders the built-in preamble.
func Preamble(data PreambleData) (string, error) {
	return RenderPreamble(PreambleTemplate, data)
}

// LoadPreamble renders the template at path, or the built-in one when path
// is empty.
func LoadPreamble(path string, data PreambleData) (string, error) {
	if path == "" {
		return Preamble(data)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading preamble: %w", err)
	}
	return RenderPreamble(string(raw), data)
}

// RenderPreamble executes tmpl with data.
func RenderPreamble(tmpl string, data PreambleData) (string, error) {
	t, err := template.New("preamble").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parsing preamble template: %w", err)
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering preamble: %w", err)
	}
	return b.String(), nil
}
