package dsl

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/aretw0/automata/internal/runtime"
)

// ViewData is the template input of a view.
type ViewData struct {
	Automaton string
	State     string
	Action    string
	Context   map[string]any
	Output    runtime.Output
}

// ActionData is the template input of action values.
type ActionData struct {
	Action  string
	From    string
	Input   any
	Context map[string]any
}

// TemplateRender compiles text into a RenderFunc producing a string.
func TemplateRender(name, text string) (runtime.RenderFunc, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template for view '%s': %w", name, err)
	}

	return func(ctx context.Context, rc runtime.RenderContext) (any, error) {
		data := ViewData{
			Automaton: rc.Automaton.Name,
			State:     rc.Automaton.Current,
			Context:   rc.Automaton.Context,
		}
		if rc.Delta != nil {
			data.Action = rc.Delta.Action
		}
		if rc.Omega != nil {
			data.Output = rc.Omega.Output
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, err
		}
		return buf.String(), nil
	}, nil
}

// expand evaluates string values (recursively inside maps and slices) as templates.
// Strings without template actions are returned unchanged.
func expand(name string, value any, data ActionData) (any, error) {
	switch v := value.(type) {
	case string:
		if !strings.Contains(v, "{{") {
			return v, nil
		}
		tmpl, err := template.New(name).Parse(v)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template '%s': %w", name, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("failed to evaluate template '%s': %w", name, err)
		}
		return buf.String(), nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			expanded, err := expand(name+"."+k, item, data)
			if err != nil {
				return nil, err
			}
			out[k] = expanded
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			expanded, err := expand(fmt.Sprintf("%s[%d]", name, i), item, data)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	default:
		return value, nil
	}
}
