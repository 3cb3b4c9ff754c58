package automata

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/automata/internal/logging"
	"github.com/aretw0/automata/internal/runtime"
	"github.com/aretw0/automata/pkg/dsl"
	"github.com/aretw0/automata/pkg/ports"
)

// Engine is the high-level entry point of the library. It owns one Factory and,
// when built from a definition, the definition it was built from.
type Engine struct {
	factory     *runtime.Factory
	definition  *dsl.Definition
	logger      *slog.Logger
	runtimeOpts []runtime.Option
	Name        string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks on every automaton. It may be
// given more than once.
func WithLifecycleHooks(hooks LifecycleHooks) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithLifecycleHooks(hooks))
	}
}

// WithEventBus publishes every lifecycle event on the given bus.
func WithEventBus(bus ports.EventBus) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithEventBus(bus))
	}
}

// WithTransitionTimeout bounds each handler invocation.
func WithTransitionTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithTransitionTimeout(d))
	}
}

// WithRejectConcurrent fails concurrent transits of one automaton instead of queueing them.
func WithRejectConcurrent() Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithRejectConcurrent())
	}
}

// WithName labels the engine. The name is added to every log record.
func WithName(name string) Option {
	return func(e *Engine) {
		e.Name = name
	}
}

// New initializes an empty engine. Views, states and automata are created through
// its Factory.
func New(opts ...Option) *Engine {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("engine", eng.Name)
	}

	runtimeOpts := append([]runtime.Option{runtime.WithLogger(eng.logger)}, eng.runtimeOpts...)
	eng.factory = runtime.NewFactory(runtimeOpts...)
	return eng
}

// Load reads a YAML definition file and builds its views and automata.
// Unless WithName is given, the engine is named after the file.
func Load(path string, opts ...Option) (*Engine, error) {
	def, err := dsl.LoadFile(path)
	if err != nil {
		return nil, err
	}

	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return FromDefinition(def, append([]Option{WithName(name)}, opts...)...)
}

// FromDefinition builds an engine from an in-memory definition.
func FromDefinition(def *dsl.Definition, opts ...Option) (*Engine, error) {
	eng := New(opts...)
	if _, err := dsl.Build(eng.factory, def); err != nil {
		return nil, fmt.Errorf("failed to build definition: %w", err)
	}
	eng.definition = def
	return eng, nil
}

// Factory returns the engine's factory.
func (e *Engine) Factory() *Factory {
	return e.factory
}

// Definition returns the definition the engine was built from, or nil.
func (e *Engine) Definition() *dsl.Definition {
	return e.definition
}

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

// Automaton returns a registered automaton.
func (e *Engine) Automaton(name string) (*Automaton, bool) {
	return e.factory.Automaton(name)
}

// Transit routes req to the automaton that accepts it (see Factory.Transit).
func (e *Engine) Transit(ctx context.Context, req TransitRequest) (*Omega, error) {
	return e.factory.Transit(ctx, req)
}

// Route is Transit, also returning the automaton that performed the transition.
func (e *Engine) Route(ctx context.Context, req TransitRequest) (*Automaton, *Omega, error) {
	return e.factory.Route(ctx, req)
}

// Inspect returns a snapshot of every automaton, in registration order.
func (e *Engine) Inspect() []Snapshot {
	automata := e.factory.Automata()
	snaps := make([]Snapshot, 0, len(automata))
	for _, a := range automata {
		snaps = append(snaps, a.Snapshot())
	}
	return snaps
}

// Close releases the automata's context watchers.
func (e *Engine) Close() {
	for _, a := range e.factory.Automata() {
		a.Close()
	}
}
