package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// RenderFunc produces renderable output as a pure function of its input.
// The same RenderFunc may back any number of views.
type RenderFunc func(ctx context.Context, rc RenderContext) (any, error)

// TransitFunc requests a new transition on behalf of rendered output.
type TransitFunc func(ctx context.Context, req TransitRequest) (*Omega, error)

// RenderContext is everything a RenderFunc may read.
type RenderContext struct {
	Automaton    Snapshot
	Delta        *Delta
	Omega        *Omega
	Transit      TransitFunc
	CachedOutput any
}

// RenderInput identifies the transition being rendered.
type RenderInput struct {
	Automaton *Automaton
	Delta     *Delta
	Omega     *Omega
}

// TransitRequest is a routed transition request.
// Automaton selects a single target; empty means the view binding, then every
// registered automaton in registration order. Name labels the requester in logs.
type TransitRequest struct {
	Action    string `json:"action"`
	Input     any    `json:"input,omitempty"`
	Name      string `json:"name,omitempty"`
	Automaton string `json:"automaton,omitempty"`
}

// ViewConfig describes a view created by the Factory.
type ViewConfig struct {
	Name   string
	Render RenderFunc

	// Automaton optionally binds the view to a fixed automaton for routing.
	Automaton string
}

// View is a stateless render binding.
type View struct {
	name    string
	render  RenderFunc
	binding string
	router  *Factory

	mu       sync.RWMutex
	states   []string
	automata []string
	cached   any
}

// Name returns the globally unique view name.
func (v *View) Name() string { return v.name }

// Binding returns the fixed automaton name, or "" for dynamic routing.
func (v *View) Binding() string { return v.binding }

// States returns the names of the states the view is attached to, in attachment order.
func (v *View) States() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]string(nil), v.states...)
}

// Automata returns the names of the automata owning those states.
func (v *View) Automata() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]string(nil), v.automata...)
}

// CachedOutput returns the last rendered output.
func (v *View) CachedOutput() any {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cached
}

// Render invokes the render function and caches its output.
// On error the cached output is kept.
func (v *View) Render(ctx context.Context, in RenderInput) (any, error) {
	rc := RenderContext{
		Delta:        in.Delta,
		Omega:        in.Omega,
		Transit:      v.Transit,
		CachedOutput: v.CachedOutput(),
	}
	if in.Automaton != nil {
		rc.Automaton = in.Automaton.Snapshot()
	}

	out, err := v.render(ctx, rc)
	if err != nil {
		return nil, fmt.Errorf("view '%s' render failed: %w", v.name, err)
	}

	v.mu.Lock()
	v.cached = out
	v.mu.Unlock()
	return out, nil
}

// Transit routes req through the factory the view was created by.
// A request without an automaton uses the view binding, if any.
func (v *View) Transit(ctx context.Context, req TransitRequest) (*Omega, error) {
	if req.Automaton == "" {
		req.Automaton = v.binding
	}
	if req.Name == "" {
		req.Name = v.name
	}
	return v.router.Transit(ctx, req)
}

// MarshalJSON encodes the view by name.
func (v *View) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.name)
}

func (v *View) attach(state string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, s := range v.states {
		if s == state {
			return
		}
	}
	v.states = append(v.states, state)
}

func (v *View) bind(automaton string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, a := range v.automata {
		if a == automaton {
			return
		}
	}
	v.automata = append(v.automata, automaton)
}

func (v *View) unbind(automaton string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, a := range v.automata {
		if a == automaton {
			v.automata = append(v.automata[:i:i], v.automata[i+1:]...)
			return
		}
	}
}

// RenderAll renders every view of omega in order. It stops at the first error.
func RenderAll(ctx context.Context, a *Automaton, d *Delta, omega *Omega) ([]any, error) {
	outputs := make([]any, 0, len(omega.Views))
	for _, v := range omega.Views {
		out, err := v.Render(ctx, RenderInput{Automaton: a, Delta: d, Omega: omega})
		if err != nil {
			return outputs, err
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}
