// Package template expands the artifact location templates of the
// configuration, e.g. "{{.Experiment}}/intermediate".
package template

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Context holds all variables available for template resolution.
type Context struct {
	// Experiment is the experiment directory name, e.g. "2024_01_heart".
	Experiment string
	// Name is the experiment name without its date prefix, e.g. "heart".
	Name string

	// User-defined variables
	Vars map[string]string
}

// Render resolves template expressions in the given string.
// Uses Go's text/template syntax: {{.Experiment}}, {{.Vars.region}}.
// Returns the input unchanged if it contains no template delimiters.
func Render(tmpl string, ctx *Context) (string, error) {
	// Fast path: no template delimiters means no work to do.
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("template: render: %w", err)
	}

	return buf.String(), nil
}

// Validate reports whether tmpl parses and only refers to known fields and
// to keys defined in vars.
func Validate(tmpl string, vars map[string]string) error {
	if strings.TrimSpace(tmpl) == "" {
		return fmt.Errorf("template: empty")
	}
	_, err := Render(tmpl, &Context{Experiment: "e", Name: "e", Vars: vars})
	return err
}

func parse(tmpl string) (*template.Template, error) {
	t, err := template.New("").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("template: parse: %w", err)
	}
	return t, nil
}
