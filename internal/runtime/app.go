package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/automata/pkg/domain"
)

// App consumes completed transitions, typically by rendering omega.Views.
// OnTransition is called once per completed transition of every connected automaton.
type App interface {
	OnTransition(ctx context.Context, e Event)
}

// AutomatonBinder is implemented by Apps that want a reference to the automata they
// are connected to, e.g. to issue their own transitions.
type AutomatonBinder interface {
	BindAutomaton(a *Automaton)
}

// BaseApp records the automata an App is connected to. Embed it to get
// AutomatonBinder and an App-initiated Transit helper.
type BaseApp struct {
	mu       sync.RWMutex
	automata map[string]*Automaton
}

// BindAutomaton implements AutomatonBinder.
func (b *BaseApp) BindAutomaton(a *Automaton) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.automata == nil {
		b.automata = make(map[string]*Automaton)
	}
	b.automata[a.Name()] = a
}

// Automaton returns a bound automaton.
func (b *BaseApp) Automaton(name string) (*Automaton, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.automata[name]
	return a, ok
}

// Transit issues a transition on a bound automaton.
func (b *BaseApp) Transit(ctx context.Context, automaton, action string, input any) (*Omega, error) {
	a, ok := b.Automaton(automaton)
	if !ok {
		return nil, fmt.Errorf("%w: '%s' is not connected", domain.ErrUnknownAutomaton, automaton)
	}
	return a.Transit(ctx, NewDelta(action, input, ""))
}
