package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/automata/internal/logging"
	"github.com/aretw0/automata/pkg/domain"
)

// AutomatonConfig describes an automaton created by the Factory.
type AutomatonConfig struct {
	Name    string
	States  []*State
	Context map[string]any
	Buffer  map[string]any

	// Initial, when set, initializes the automaton after its states are registered.
	Initial string
}

// Snapshot is a detached, read-only view of an automaton.
type Snapshot struct {
	Name    string         `json:"name"`
	Current string         `json:"current"`
	Initial string         `json:"initial"`
	States  []StateInfo    `json:"states"`
	Context map[string]any `json:"context"`
}

// StateInfo describes a registered state for introspection.
type StateInfo struct {
	Name    string   `json:"name"`
	Actions []string `json:"actions"`
	Views   []string `json:"views,omitempty"`
}

type listenerEntry struct {
	id int
	fn Listener
}

// Automaton owns a set of states, a shared context, a private buffer and the
// active state, and executes the transition protocol.
//
// Transit calls are serialized per automaton: a second call waits in FIFO order
// (or fails with domain.ErrTransitionInProgress in reject mode). Listeners run on
// the transiting goroutine while the automaton is still held. A listener that calls
// Transit on the same automaton with the context it was given runs the nested
// transition inline, after the outer one is committed. A handler doing the same
// fails with domain.ErrTransitionInProgress.
type Automaton struct {
	name    string
	context *domain.Context
	buffer  *domain.Buffer

	mu      sync.RWMutex
	states  map[string]*State
	order   []string
	current *State
	initial string

	listenerMu   sync.RWMutex
	listeners    map[EventType][]listenerEntry
	nextListener int

	guard     *transitGuard
	timeout   time.Duration
	logger    *slog.Logger
	newID     func() string
	stopWatch func()
}

type automatonSettings struct {
	logger  *slog.Logger
	timeout time.Duration
	reject  bool
	newID   func() string
}

func newAutomaton(cfg AutomatonConfig, settings automatonSettings) (*Automaton, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: automaton name is required", domain.ErrInvalidName)
	}
	if settings.logger == nil {
		settings.logger = logging.NewNop()
	}
	if settings.newID == nil {
		settings.newID = newEventID
	}

	a := &Automaton{
		name:      cfg.Name,
		context:   domain.NewContext(cfg.Context),
		buffer:    domain.NewBuffer(cfg.Buffer),
		states:    make(map[string]*State),
		listeners: make(map[EventType][]listenerEntry),
		guard:     newTransitGuard(settings.reject),
		timeout:   settings.timeout,
		logger:    settings.logger.With("automaton", cfg.Name),
		newID:     settings.newID,
	}

	for _, s := range cfg.States {
		if s == nil || s.Name() == "" {
			return nil, fmt.Errorf("%w: cannot register an unnamed state in automaton '%s'", domain.ErrUnknownState, a.name)
		}
		if owner := s.Automaton(); owner != nil {
			return nil, fmt.Errorf("%w: state '%s' already belongs to automaton '%s'", domain.ErrDuplicateRegistration, s.Name(), owner.Name())
		}
	}

	if err := a.AddState(newFailedState()); err != nil {
		return nil, err
	}
	for _, s := range cfg.States {
		if err := a.AddState(s); err != nil {
			a.detach()
			return nil, err
		}
	}

	a.stopWatch = a.context.Watch(func(cs domain.ChangeSet) {
		a.emit(context.Background(), Event{Type: EventStateChanged, Changes: cs})
	})

	if cfg.Initial != "" {
		if err := a.Init(cfg.Initial); err != nil {
			a.detach()
			return nil, err
		}
	}
	return a, nil
}

// detach releases the states of an automaton that was never registered, so they
// can be given to another one.
func (a *Automaton) detach() {
	a.Close()
	for _, s := range a.States() {
		s.unbind(a)
	}
}

// Name returns the automaton name.
func (a *Automaton) Name() string { return a.name }

// Context returns the shared observable context.
func (a *Automaton) Context() *domain.Context { return a.context }

// Buffer returns the private buffer.
func (a *Automaton) Buffer() *domain.Buffer { return a.buffer }

// Init sets the initial and the current state.
func (a *Automaton) Init(stateName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.states[stateName]
	if !ok {
		return fmt.Errorf("%w: '%s' in automaton '%s'", domain.ErrUnknownState, stateName, a.name)
	}
	a.initial = stateName
	a.current = s
	return nil
}

// AddState registers s. Registering a second state with a name already present is
// a no-op and keeps the original instance.
func (a *Automaton) AddState(s *State) error {
	if s == nil || s.Name() == "" {
		return fmt.Errorf("%w: cannot register an unnamed state in automaton '%s'", domain.ErrUnknownState, a.name)
	}

	a.mu.Lock()
	if _, exists := a.states[s.Name()]; exists {
		a.mu.Unlock()
		a.logger.Debug("State already registered", "state", s.Name())
		return nil
	}
	a.mu.Unlock()

	if err := s.bind(a); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.states[s.Name()]; exists {
		return nil
	}
	a.states[s.Name()] = s
	a.order = append(a.order, s.Name())
	return nil
}

// State returns a registered state.
func (a *Automaton) State(name string) (*State, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.states[name]
	return s, ok
}

// States returns the registered states in registration order, failed first.
func (a *Automaton) States() []*State {
	a.mu.RLock()
	defer a.mu.RUnlock()

	states := make([]*State, 0, len(a.order))
	for _, name := range a.order {
		states = append(states, a.states[name])
	}
	return states
}

// Current returns the active state, or nil before Init.
func (a *Automaton) Current() *State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

// Initial returns the initial state name.
func (a *Automaton) Initial() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.initial
}

// Pending returns the number of transit calls waiting for the automaton.
func (a *Automaton) Pending() int {
	return a.guard.waiting()
}

// Snapshot captures the automaton for rendering and introspection.
func (a *Automaton) Snapshot() Snapshot {
	snap := Snapshot{
		Name:    a.name,
		Initial: a.Initial(),
		Context: a.context.Snapshot(),
	}
	if cur := a.Current(); cur != nil {
		snap.Current = cur.Name()
	}
	for _, s := range a.States() {
		info := StateInfo{Name: s.Name(), Actions: s.Actions()}
		for _, v := range s.Views() {
			info.Views = append(info.Views, v.Name())
		}
		snap.States = append(snap.States, info)
	}
	return snap
}

// On registers l for events of type t. The returned function unregisters it.
func (a *Automaton) On(t EventType, l Listener) func() {
	a.listenerMu.Lock()
	defer a.listenerMu.Unlock()

	a.nextListener++
	id := a.nextListener
	a.listeners[t] = append(a.listeners[t], listenerEntry{id: id, fn: l})

	return func() {
		a.listenerMu.Lock()
		defer a.listenerMu.Unlock()
		entries := a.listeners[t]
		for i, e := range entries {
			if e.id == id {
				a.listeners[t] = append(entries[:i], entries[i+1:]...)
				return
			}
		}
	}
}

// TryTransit performs the transition only if the active state defines action.
// It reports false, without error, when the automaton is not initialized or the
// action is not defined.
func (a *Automaton) TryTransit(ctx context.Context, action string, input any) (*Omega, bool, error) {
	ctx, release, err := a.guard.acquire(ctx)
	if err != nil {
		return nil, false, err
	}
	defer release()

	cur := a.Current()
	if cur == nil || !cur.Has(action) {
		return nil, false, nil
	}

	omega, err := a.transit(ctx, NewDelta(action, input, ""))
	if err != nil {
		return nil, false, err
	}
	return omega, true, nil
}

// Transit executes the transition protocol for d.
//
// Handler failures do not surface as errors: the automaton enters the failed state
// and the returned Omega reports it. That includes an expired transition deadline.
// Errors are returned only when the automaton is not initialized, the guard could
// not be acquired, or ctx was canceled while the handler ran. A canceled transit
// fails with domain.ErrTransitionAborted and leaves the active state unchanged.
func (a *Automaton) Transit(ctx context.Context, d *Delta) (*Omega, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: nil delta for automaton '%s'", domain.ErrUnmatchedAction, a.name)
	}

	ctx, release, err := a.guard.acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("automaton '%s': %w", a.name, err)
	}
	defer release()

	return a.transit(ctx, d)
}

func (a *Automaton) transit(ctx context.Context, d *Delta) (*Omega, error) {
	prev := a.Current()
	if prev == nil {
		return nil, fmt.Errorf("%w: '%s'", domain.ErrNotInitialized, a.name)
	}

	d.From = prev.Name()
	d.Context = a.context
	d.Buffer = a.buffer

	start := time.Now()
	a.emit(ctx, Event{Type: EventBeforeTransition, Delta: d})

	omega, err := a.invoke(ctx, prev, d)
	if err != nil && errors.Is(ctx.Err(), context.Canceled) {
		a.logger.Warn("Transition aborted", "from", d.From, "action", d.Action)
		a.emit(ctx, Event{Type: EventFailedTransition, Delta: d, Error: domain.ErrTransitionAborted.Error()})
		return nil, fmt.Errorf("%w: automaton '%s' action '%s': %w", domain.ErrTransitionAborted, a.name, d.Action, ctx.Err())
	}
	if err != nil {
		a.logger.Error("Action handler failed",
			"from", d.From,
			"action", d.Action,
			"err", err,
		)
		a.emit(ctx, Event{Type: EventFailedTransition, Delta: d, Error: err.Error()})

		omega, err = a.capture(ctx, d, failureMessage(err))
		if err != nil {
			return nil, err
		}
	} else if omega.Next == domain.StateFailed && prev.Name() != domain.StateFailed {
		a.recordUnmatched(d, omega)
	}

	next := a.resolve(omega.Next, prev)

	a.mu.Lock()
	a.current = next
	a.mu.Unlock()

	prev.CleanUp(ctx)

	omega.Next = next.Name()
	omega.Views = next.Views()
	if omega.Output == nil {
		omega.Output = Output{}
	}
	omega.Output[domain.OutputContext] = a.context.Snapshot()
	omega.Output[domain.OutputBuffer] = a.buffer

	a.logger.Debug("Transition completed",
		"from", d.From,
		"to", next.Name(),
		"action", d.Action,
	)

	elapsed := time.Since(start)
	restore := a.guard.notifying(ctx)
	a.emit(ctx, Event{Type: EventDataTransition, Delta: d, Omega: omega, Duration: elapsed})
	a.emit(ctx, Event{Type: EventAfterTransition, Delta: d, Omega: omega, Duration: elapsed})
	restore()

	return omega, nil
}

// invoke runs the handler with panic recovery and the optional deadline.
func (a *Automaton) invoke(ctx context.Context, s *State, d *Delta) (*Omega, error) {
	if a.timeout <= 0 {
		return safeTransit(ctx, s, d)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	type result struct {
		omega *Omega
		err   error
	}
	done := make(chan result, 1)
	go func() {
		omega, err := safeTransit(ctx, s, d)
		done <- result{omega: omega, err: err}
	}()

	select {
	case r := <-done:
		return r.omega, r.err
	case <-ctx.Done():
		cause := ctx.Err()
		if errors.Is(cause, context.DeadlineExceeded) {
			cause = fmt.Errorf("%w after %s", domain.ErrTransitionTimeout, a.timeout)
		}
		return nil, &domain.HandlerError{State: s.Name(), Action: d.Action, Err: cause}
	}
}

func safeTransit(ctx context.Context, s *State, d *Delta) (omega *Omega, err error) {
	defer func() {
		if r := recover(); r != nil {
			omega = nil
			err = &domain.HandlerError{State: s.Name(), Action: d.Action, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return s.Transit(ctx, d)
}

// capture dispatches the built-in failed action for a handler failure.
func (a *Automaton) capture(ctx context.Context, d *Delta, message string) (*Omega, error) {
	failed, ok := a.State(domain.StateFailed)
	if !ok {
		return nil, fmt.Errorf("%w: '%s' in automaton '%s'", domain.ErrUnknownState, domain.StateFailed, a.name)
	}

	fd := &Delta{
		Action:  domain.ActionFailed,
		Input:   domain.FailedOutput{Message: message, From: d.From},
		From:    d.From,
		Context: a.context,
		Buffer:  a.buffer,
	}
	return failed.Transit(ctx, fd)
}

// recordUnmatched keeps the origin of a per-state fallback so that "back" recovers.
func (a *Automaton) recordUnmatched(d *Delta, omega *Omega) {
	message := fmt.Sprintf("state '%s' routed action '%s' to '%s'", d.From, d.Action, domain.StateFailed)
	if err, ok := omega.Output[domain.OutputError].(error); ok {
		message = err.Error()
		a.logger.Warn("Unmatched action", "from", d.From, "action", d.Action)
	}
	a.buffer.SetFailedOutput(domain.FailedOutput{Message: message, From: d.From})
}

// resolve maps an Omega's next name to a registered state.
// Empty stays in prev; unknown names fall back to the initial state, then failed.
func (a *Automaton) resolve(next string, prev *State) *State {
	if next == "" {
		return prev
	}
	if s, ok := a.State(next); ok {
		return s
	}

	fallback := domain.StateFailed
	if _, ok := a.State(a.Initial()); ok {
		fallback = a.Initial()
	}
	a.logger.Warn("Next state not registered, falling back",
		"next", next,
		"fallback", fallback,
	)
	s, _ := a.State(fallback)
	return s
}

func (a *Automaton) emit(ctx context.Context, e Event) {
	e.ID = a.newID()
	e.Automaton = a.name
	e.Timestamp = time.Now()

	a.listenerMu.RLock()
	entries := make([]listenerEntry, len(a.listeners[e.Type]))
	copy(entries, a.listeners[e.Type])
	a.listenerMu.RUnlock()

	for _, entry := range entries {
		entry.fn(ctx, e)
	}
}

// Close stops forwarding context changes as stateChanged events.
func (a *Automaton) Close() {
	if a.stopWatch != nil {
		a.stopWatch()
	}
}

func failureMessage(err error) string {
	var he *domain.HandlerError
	if errors.As(err, &he) && he.Err != nil {
		return he.Err.Error()
	}
	return err.Error()
}
