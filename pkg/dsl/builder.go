package dsl

import (
	"fmt"

	"github.com/aretw0/automata/internal/runtime"
)

// Builder manages the definition construction.
type Builder struct {
	views    []ViewDef
	automata []*AutomatonBuilder
}

// New creates a new definition builder.
func New() *Builder {
	return &Builder{}
}

// View declares a template view.
func (b *Builder) View(name, text string) *Builder {
	b.views = append(b.views, ViewDef{Name: name, Template: text})
	return b
}

// BoundView declares a template view bound to one automaton for routing.
func (b *Builder) BoundView(name, text, automaton string) *Builder {
	b.views = append(b.views, ViewDef{Name: name, Template: text, Automaton: automaton})
	return b
}

// Automaton adds an automaton to the definition.
// If it already exists, it returns the existing builder.
func (b *Builder) Automaton(name string) *AutomatonBuilder {
	for _, ab := range b.automata {
		if ab.def.Name == name {
			return ab
		}
	}
	ab := &AutomatonBuilder{def: AutomatonDef{Name: name}}
	b.automata = append(b.automata, ab)
	return ab
}

// Definition returns the definition as built so far, without validation.
func (b *Builder) Definition() *Definition {
	def := &Definition{Views: append([]ViewDef(nil), b.views...)}
	for _, ab := range b.automata {
		ad := ab.def
		ad.States = make([]StateDef, 0, len(ab.states))
		for _, sb := range ab.states {
			ad.States = append(ad.States, sb.def)
		}
		def.Automata = append(def.Automata, ad)
	}
	return def
}

// Build validates and returns the definition.
func (b *Builder) Build() (*Definition, error) {
	def := b.Definition()
	if err := Validate(def); err != nil {
		return nil, fmt.Errorf("failed to build definition: %w", err)
	}
	return def, nil
}

// Compile builds the definition and registers it on f.
func (b *Builder) Compile(f *runtime.Factory) ([]*runtime.Automaton, error) {
	def, err := b.Build()
	if err != nil {
		return nil, err
	}
	return Build(f, def)
}

// AutomatonBuilder provides a fluent API for configuring an automaton.
type AutomatonBuilder struct {
	def    AutomatonDef
	states []*StateBuilder
}

// Initial sets the state the automaton is initialized with.
func (a *AutomatonBuilder) Initial(state string) *AutomatonBuilder {
	a.def.Initial = state
	return a
}

// Context adds an initial context value.
func (a *AutomatonBuilder) Context(key string, value any) *AutomatonBuilder {
	if a.def.Context == nil {
		a.def.Context = make(map[string]any)
	}
	a.def.Context[key] = value
	return a
}

// State adds a state. If it already exists, it returns the existing builder.
// The first state added becomes the initial state unless Initial is called.
func (a *AutomatonBuilder) State(name string) *StateBuilder {
	for _, sb := range a.states {
		if sb.def.Name == name {
			return sb
		}
	}
	if a.def.Initial == "" {
		a.def.Initial = name
	}
	sb := &StateBuilder{def: StateDef{Name: name}, automaton: a}
	a.states = append(a.states, sb)
	return sb
}

// StateBuilder provides a fluent API for configuring a state.
type StateBuilder struct {
	def       StateDef
	automaton *AutomatonBuilder
}

// Views attaches views, in order.
func (s *StateBuilder) Views(names ...string) *StateBuilder {
	s.def.Views = append(s.def.Views, names...)
	return s
}

// Local adds a state-local value.
func (s *StateBuilder) Local(key string, value any) *StateBuilder {
	if s.def.Local == nil {
		s.def.Local = make(map[string]any)
	}
	s.def.Local[key] = value
	return s
}

func (s *StateBuilder) action(name string) ActionDef {
	if s.def.Actions == nil {
		s.def.Actions = make(map[string]ActionDef)
	}
	return s.def.Actions[name]
}

// Go defines action to move to the target state.
func (s *StateBuilder) Go(action, target string) *StateBuilder {
	a := s.action(action)
	a.Next = target
	s.def.Actions[action] = a
	return s
}

// Stay defines action to remain in this state.
func (s *StateBuilder) Stay(action string) *StateBuilder {
	a := s.action(action)
	a.Next = ""
	s.def.Actions[action] = a
	return s
}

// Assign makes action set a context path. String values are templates.
func (s *StateBuilder) Assign(action, path string, value any) *StateBuilder {
	a := s.action(action)
	if a.Assign == nil {
		a.Assign = make(map[string]any)
	}
	a.Assign[path] = value
	s.def.Actions[action] = a
	return s
}

// Unset makes action delete a context path.
func (s *StateBuilder) Unset(action, path string) *StateBuilder {
	a := s.action(action)
	a.Unset = append(a.Unset, path)
	s.def.Actions[action] = a
	return s
}

// Output makes action add a value to the transition output.
func (s *StateBuilder) Output(action, key string, value any) *StateBuilder {
	a := s.action(action)
	if a.Output == nil {
		a.Output = make(map[string]any)
	}
	a.Output[key] = value
	s.def.Actions[action] = a
	return s
}

// Fail makes action route to the failed state with message.
func (s *StateBuilder) Fail(action, message string) *StateBuilder {
	a := s.action(action)
	a.Fail = message
	s.def.Actions[action] = a
	return s
}

// State continues with another state of the same automaton.
func (s *StateBuilder) State(name string) *StateBuilder {
	return s.automaton.State(name)
}
