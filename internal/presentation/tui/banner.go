package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the ASCII art banner.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	// Using a subtle gradient-like color scheme (Indigo/Violet)
	lines := []termenv.Style{
		termenv.String("   __ _ _   _| |_ ___  _ __ ___   __ _| |_ __ _ ").Foreground(p.Color("#818cf8")),
		termenv.String("  / _` | | | | __/ _ \\| '_ ` _ \\ / _` | __/ _` |").Foreground(p.Color("#a78bfa")),
		termenv.String(" | (_| | |_| | || (_) | | | | | | (_| | || (_| |").Foreground(p.Color("#e879f9")),
		termenv.String("  \\__,_|\\__,_|\\__\\___/|_| |_| |_|\\__,_|\\__\\__,_|").Foreground(p.Color("#fb7185")),
	}

	fmt.Fprintln(w)
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)
}

// Highlight colors s as an accent, if the terminal supports it.
func Highlight(s string) string {
	p := termenv.ColorProfile()
	return termenv.String(s).Foreground(p.Color("#a78bfa")).Bold().String()
}
