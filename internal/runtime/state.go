package runtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/automata/pkg/domain"
)

// Handler executes one action. It may block; ctx carries the transition deadline.
// Returning an error (or panicking) routes the automaton to the failed state.
type Handler func(ctx context.Context, s *State, d *Delta) (*Omega, error)

// CleanUpFunc runs whenever the automaton leaves a state.
type CleanUpFunc func(ctx context.Context, s *State)

// StateConfig describes a state created by the Factory.
type StateConfig struct {
	Name    string
	Local   map[string]any
	Actions map[string]Handler
	CleanUp CleanUpFunc
	Views   []*View
}

// State is a named unit holding local data and a table of action handlers.
type State struct {
	name    string
	local   map[string]any
	cleanUp CleanUpFunc

	mu        sync.RWMutex
	actions   map[string]Handler
	views     []*View
	automaton *Automaton
}

func newState(cfg StateConfig) (*State, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: state name is required", domain.ErrInvalidName)
	}

	s := &State{
		name:    cfg.Name,
		local:   cfg.Local,
		cleanUp: cfg.CleanUp,
		actions: make(map[string]Handler, len(cfg.Actions)),
	}
	if s.local == nil {
		s.local = make(map[string]any)
	}

	for name, h := range cfg.Actions {
		if err := s.DefineAction(name, h); err != nil {
			return nil, err
		}
	}
	for _, v := range cfg.Views {
		s.AddView(v)
	}
	return s, nil
}

// Name returns the state name.
func (s *State) Name() string { return s.name }

// Local returns the state-private data.
func (s *State) Local() map[string]any { return s.local }

// Automaton returns the owning automaton, or nil before registration.
func (s *State) Automaton() *Automaton {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.automaton
}

// DefineAction registers handler under name, replacing any previous handler.
func (s *State) DefineAction(name string, handler Handler) error {
	if name == "" {
		return fmt.Errorf("%w: action name is required in state '%s'", domain.ErrInvalidName, s.name)
	}
	if handler == nil {
		return fmt.Errorf("%w: action '%s' in state '%s' has no handler", domain.ErrInvalidName, name, s.name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[name] = handler
	return nil
}

// Has reports whether the state defines action.
func (s *State) Has(action string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.actions[action]
	return ok
}

// Actions returns the defined action names, sorted.
func (s *State) Actions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.actions))
	for name := range s.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Transit dispatches d to the matching handler.
//
// An action the state does not define is not an error: the result routes to the
// failed state and carries an *domain.UnmatchedActionError under Output["error"].
// A handler error is returned wrapped in *domain.HandlerError.
func (s *State) Transit(ctx context.Context, d *Delta) (*Omega, error) {
	s.mu.RLock()
	handler, ok := s.actions[d.Action]
	s.mu.RUnlock()

	if !ok {
		return NewOmega(domain.StateFailed, Output{
			domain.OutputError: &domain.UnmatchedActionError{State: s.name, Action: d.Action},
		}, nil, nil), nil
	}

	omega, err := handler(ctx, s, d)
	if err != nil {
		return nil, &domain.HandlerError{State: s.name, Action: d.Action, Err: err}
	}
	if omega == nil {
		return nil, &domain.HandlerError{State: s.name, Action: d.Action, Err: errors.New("handler returned no result")}
	}
	return omega, nil
}

// AddView attaches v to the state. Attaching the same view twice is a no-op.
// The view records the state name, and the owning automaton if there is one.
func (s *State) AddView(v *View) {
	if v == nil {
		return
	}

	s.mu.Lock()
	for _, existing := range s.views {
		if existing == v {
			s.mu.Unlock()
			return
		}
	}
	s.views = append(s.views, v)
	owner := s.automaton
	s.mu.Unlock()

	v.attach(s.name)
	if owner != nil {
		v.bind(owner.Name())
	}
}

// Views returns the attached views in attachment order.
func (s *State) Views() []*View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]*View, len(s.views))
	copy(views, s.views)
	return views
}

// CleanUp runs the exit hook. The default is a no-op.
func (s *State) CleanUp(ctx context.Context) {
	if s.cleanUp != nil {
		s.cleanUp(ctx, s)
	}
}

// bind records the owning automaton on the state and its views.
func (s *State) bind(a *Automaton) error {
	s.mu.Lock()
	if s.automaton != nil && s.automaton != a {
		owner := s.automaton.Name()
		s.mu.Unlock()
		return fmt.Errorf("%w: state '%s' already belongs to automaton '%s'", domain.ErrDuplicateRegistration, s.name, owner)
	}
	s.automaton = a
	views := make([]*View, len(s.views))
	copy(views, s.views)
	s.mu.Unlock()

	for _, v := range views {
		v.bind(a.Name())
	}
	return nil
}

// unbind clears the owner recorded by bind, if it is a.
func (s *State) unbind(a *Automaton) {
	s.mu.Lock()
	if s.automaton != a {
		s.mu.Unlock()
		return
	}
	s.automaton = nil
	views := make([]*View, len(s.views))
	copy(views, s.views)
	s.mu.Unlock()

	for _, v := range views {
		v.unbind(a.Name())
	}
}
