package tui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/aretw0/automata/internal/logging"
	"github.com/aretw0/automata/internal/runtime"
	"github.com/aretw0/automata/pkg/domain"
)

// App renders every completed transition of its automata to a terminal.
// Views producing strings are treated as markdown; other outputs are printed with %v.
type App struct {
	runtime.BaseApp

	mu     sync.Mutex
	out    io.Writer
	render RenderFunc
	logger *slog.Logger
}

// Option configures the App.
type Option func(*App)

// WithRenderer overrides the markdown renderer.
func WithRenderer(r RenderFunc) Option {
	return func(a *App) {
		a.render = r
	}
}

// WithLogger sets the logger used for render failures.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// NewApp creates a terminal App writing to out.
func NewApp(out io.Writer, opts ...Option) *App {
	a := &App{
		out:    out,
		render: PlainRenderer,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// OnTransition implements runtime.App.
func (a *App) OnTransition(ctx context.Context, e runtime.Event) {
	if e.Omega == nil {
		return
	}
	automaton, ok := a.Automaton(e.Automaton)
	if !ok {
		return
	}

	outputs, err := runtime.RenderAll(ctx, automaton, e.Delta, e.Omega)
	if err != nil {
		a.logger.Warn("View render failed", "automaton", e.Automaton, "err", err)
	}

	var md strings.Builder
	fmt.Fprintf(&md, "**%s** `%s` → `%s`\n\n", e.Automaton, e.Delta.From, e.Omega.Next)
	if e.Omega.Next == domain.StateFailed {
		if msg, ok := e.Omega.Output[domain.OutputError]; ok {
			fmt.Fprintf(&md, "> %v\n\n", msg)
		}
	}
	for _, out := range outputs {
		switch v := out.(type) {
		case nil:
		case string:
			md.WriteString(v)
			md.WriteString("\n\n")
		default:
			fmt.Fprintf(&md, "%v\n\n", v)
		}
	}

	rendered, err := a.render(md.String())
	if err != nil {
		rendered = md.String()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprint(a.out, rendered)
}

// Prompt describes the actions available in the current state of a.
func Prompt(a *runtime.Automaton) string {
	cur := a.Current()
	if cur == nil {
		return fmt.Sprintf("%s (not initialized)> ", a.Name())
	}
	return fmt.Sprintf("%s:%s [%s]> ", a.Name(), cur.Name(), strings.Join(cur.Actions(), " "))
}
