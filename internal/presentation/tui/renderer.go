package tui

import (
	"github.com/charmbracelet/glamour"
)

// RenderFunc turns markdown into terminal output.
type RenderFunc func(string) (string, error)

// NewRenderer returns a function that renders markdown using glamour.
// Without a usable terminal renderer the markdown is returned unchanged.
func NewRenderer() RenderFunc {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	)
	if err != nil {
		return PlainRenderer
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// PlainRenderer returns markdown as is.
func PlainRenderer(markdown string) (string, error) {
	return markdown, nil
}
