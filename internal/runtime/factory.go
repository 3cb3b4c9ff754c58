package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/automata/internal/logging"
	"github.com/aretw0/automata/pkg/domain"
	"github.com/aretw0/automata/pkg/ports"
	"github.com/google/uuid"
)

// Factory creates and registers views, states and automata, and connects Apps to
// automaton lifecycle events. Each Factory owns its registries, so independent
// engines can coexist in one process.
type Factory struct {
	logger  *slog.Logger
	hooks   []LifecycleHooks
	bus     ports.EventBus
	timeout time.Duration
	reject  bool
	newID   func() string

	// createMu serializes CreateAutomaton, so a rejected automaton never binds states.
	createMu sync.Mutex

	mu        sync.RWMutex
	automata  map[string]*Automaton
	order     []string
	views     map[string]*View
	viewOrder []string
	apps      map[string][]App
}

// Option defines a functional option for configuring the Factory.
type Option func(*Factory)

// WithLogger sets the structured logger used by the factory and its automata.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks on every automaton created
// afterwards. It may be given more than once.
func WithLifecycleHooks(hooks LifecycleHooks) Option {
	return func(f *Factory) {
		f.hooks = append(f.hooks, hooks)
	}
}

// WithEventBus publishes every lifecycle event, JSON encoded, on EventTopic(automaton).
func WithEventBus(bus ports.EventBus) Option {
	return func(f *Factory) {
		f.bus = bus
	}
}

// WithTransitionTimeout bounds each handler invocation. On expiry the automaton
// enters the failed state with a domain.ErrTransitionTimeout message.
func WithTransitionTimeout(d time.Duration) Option {
	return func(f *Factory) {
		f.timeout = d
	}
}

// WithRejectConcurrent makes a transit fail with domain.ErrTransitionInProgress
// instead of queueing while another transit of the same automaton is running.
func WithRejectConcurrent() Option {
	return func(f *Factory) {
		f.reject = true
	}
}

// WithIDGenerator overrides the event ID generator (UUIDv7 by default).
func WithIDGenerator(gen func() string) Option {
	return func(f *Factory) {
		f.newID = gen
	}
}

// NewFactory creates an empty factory.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		automata: make(map[string]*Automaton),
		views:    make(map[string]*View),
		apps:     make(map[string][]App),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = logging.NewNop()
	}
	if f.newID == nil {
		f.newID = newEventID
	}
	return f
}

// EventTopic is the bus topic carrying the events of one automaton.
func EventTopic(automaton string) string {
	return "automata." + automaton
}

func newEventID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// CreateView creates and registers a view. View names are unique per factory.
func (f *Factory) CreateView(cfg ViewConfig) (*View, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: view name is required", domain.ErrInvalidName)
	}
	if cfg.Render == nil {
		return nil, fmt.Errorf("%w: view '%s'", domain.ErrMissingRender, cfg.Name)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.views[cfg.Name]; exists {
		return nil, fmt.Errorf("%w: view '%s'", domain.ErrDuplicateRegistration, cfg.Name)
	}

	v := &View{
		name:    cfg.Name,
		render:  cfg.Render,
		binding: cfg.Automaton,
		router:  f,
	}
	f.views[cfg.Name] = v
	f.viewOrder = append(f.viewOrder, cfg.Name)
	return v, nil
}

// CreateState constructs a state. It is not registered to any automaton.
func (f *Factory) CreateState(cfg StateConfig) (*State, error) {
	return newState(cfg)
}

// CreateAutomaton constructs and registers an automaton, injects the failed state
// and forwards its afterTransition events to the Apps connected to it.
func (f *Factory) CreateAutomaton(cfg AutomatonConfig) (*Automaton, error) {
	f.createMu.Lock()
	defer f.createMu.Unlock()

	f.mu.RLock()
	_, exists := f.automata[cfg.Name]
	f.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("%w: automaton '%s'", domain.ErrDuplicateRegistration, cfg.Name)
	}

	a, err := newAutomaton(cfg, automatonSettings{
		logger:  f.logger,
		timeout: f.timeout,
		reject:  f.reject,
		newID:   f.newID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create automaton '%s': %w", cfg.Name, err)
	}

	f.mu.Lock()
	f.automata[cfg.Name] = a
	f.order = append(f.order, cfg.Name)
	f.mu.Unlock()

	a.On(EventAfterTransition, func(ctx context.Context, e Event) {
		for _, app := range f.connected(a.Name()) {
			app.OnTransition(ctx, e)
		}
	})

	for _, hooks := range f.hooks {
		for _, t := range EventTypes {
			if l := hooks.Listener(t); l != nil {
				a.On(t, l)
			}
		}
	}

	if f.bus != nil {
		publish := f.publisher(a.Name())
		for _, t := range EventTypes {
			a.On(t, publish)
		}
	}

	f.logger.Debug("Automaton created", "automaton", a.Name(), "states", len(a.States()))
	return a, nil
}

func (f *Factory) publisher(automaton string) Listener {
	topic := EventTopic(automaton)
	return func(ctx context.Context, e Event) {
		payload, err := json.Marshal(e)
		if err != nil {
			f.logger.Warn("Failed to encode event", "automaton", automaton, "type", e.Type, "err", err)
			return
		}
		if err := f.bus.Publish(ctx, topic, payload); err != nil {
			f.logger.Warn("Failed to publish event", "automaton", automaton, "type", e.Type, "err", err)
		}
	}
}

// Connect subscribes app to the afterTransition events of the named automata.
// Apps implementing AutomatonBinder receive a back-reference to each automaton.
// Connecting the same app twice is a no-op; apps are compared by identity.
func (f *Factory) Connect(app App, automata ...string) error {
	targets := make([]*Automaton, 0, len(automata))
	for _, name := range automata {
		a, ok := f.Automaton(name)
		if !ok {
			return fmt.Errorf("%w: '%s'", domain.ErrUnknownAutomaton, name)
		}
		targets = append(targets, a)
	}

	binder, canBind := app.(AutomatonBinder)

	f.mu.Lock()
	for _, a := range targets {
		if !containsApp(f.apps[a.Name()], app) {
			f.apps[a.Name()] = append(f.apps[a.Name()], app)
		}
	}
	f.mu.Unlock()

	if canBind {
		for _, a := range targets {
			binder.BindAutomaton(a)
		}
	}
	return nil
}

// Disconnect removes app from the named automata.
func (f *Factory) Disconnect(app App, automata ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, name := range automata {
		apps := f.apps[name]
		for i, existing := range apps {
			if existing == app {
				f.apps[name] = append(apps[:i], apps[i+1:]...)
				break
			}
		}
	}
}

func (f *Factory) connected(automaton string) []App {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]App(nil), f.apps[automaton]...)
}

func containsApp(apps []App, app App) bool {
	for _, existing := range apps {
		if existing == app {
			return true
		}
	}
	return false
}

// Automaton returns a registered automaton.
func (f *Factory) Automaton(name string) (*Automaton, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	a, ok := f.automata[name]
	return a, ok
}

// Automata returns the registered automata in registration order.
func (f *Factory) Automata() []*Automaton {
	f.mu.RLock()
	defer f.mu.RUnlock()

	list := make([]*Automaton, 0, len(f.order))
	for _, name := range f.order {
		list = append(list, f.automata[name])
	}
	return list
}

// View returns a registered view.
func (f *Factory) View(name string) (*View, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.views[name]
	return v, ok
}

// Views returns the registered views in registration order.
func (f *Factory) Views() []*View {
	f.mu.RLock()
	defer f.mu.RUnlock()

	list := make([]*View, 0, len(f.viewOrder))
	for _, name := range f.viewOrder {
		list = append(list, f.views[name])
	}
	return list
}

// Transit routes req to an automaton that accepts it.
//
// With req.Automaton set only that automaton is asked. Otherwise every registered
// automaton is asked in registration order and the first acceptance wins.
// domain.ErrNoMatchingTransition is returned when nobody accepts.
func (f *Factory) Transit(ctx context.Context, req TransitRequest) (*Omega, error) {
	_, omega, err := f.Route(ctx, req)
	return omega, err
}

// Route is Transit, also returning the automaton that performed the transition.
func (f *Factory) Route(ctx context.Context, req TransitRequest) (*Automaton, *Omega, error) {
	if req.Automaton != "" {
		a, ok := f.Automaton(req.Automaton)
		if !ok {
			return nil, nil, fmt.Errorf("%w: '%s'", domain.ErrUnknownAutomaton, req.Automaton)
		}
		omega, accepted, err := a.TryTransit(ctx, req.Action, req.Input)
		if err != nil {
			return nil, nil, err
		}
		if !accepted {
			return nil, nil, fmt.Errorf("%w: automaton '%s' does not accept action '%s'", domain.ErrNoMatchingTransition, req.Automaton, req.Action)
		}
		return a, omega, nil
	}

	for _, a := range f.Automata() {
		omega, accepted, err := a.TryTransit(ctx, req.Action, req.Input)
		if err != nil {
			return nil, nil, err
		}
		if accepted {
			f.logger.Debug("Transition routed", "automaton", a.Name(), "action", req.Action, "requester", req.Name)
			return a, omega, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: action '%s'", domain.ErrNoMatchingTransition, req.Action)
}

// NewDelta creates a transition request.
func (f *Factory) NewDelta(action string, input any, from string) *Delta {
	return NewDelta(action, input, from)
}

// NewOmega creates a transition result.
func (f *Factory) NewOmega(next string, output Output, views []*View, data any) *Omega {
	return NewOmega(next, output, views, data)
}
