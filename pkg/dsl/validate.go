package dsl

import (
	"errors"
	"fmt"
	"sort"
	"text/template"

	"github.com/aretw0/automata/pkg/domain"
)

// ErrInvalidDefinition wraps every problem reported by Validate.
var ErrInvalidDefinition = errors.New("invalid definition")

// Validate checks names, references and templates. All problems are reported at once.
func Validate(def *Definition) error {
	var errs []error
	report := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidDefinition}, args...)...))
	}

	views := make(map[string]bool, len(def.Views))
	for i, v := range def.Views {
		if v.Name == "" {
			report("view #%d has no name", i)
			continue
		}
		if views[v.Name] {
			report("view '%s' is declared twice", v.Name)
		}
		views[v.Name] = true
		if _, err := template.New(v.Name).Parse(v.Template); err != nil {
			report("view '%s' has an invalid template: %v", v.Name, err)
		}
	}

	if len(def.Automata) == 0 {
		report("no automata declared")
	}

	automata := make(map[string]bool, len(def.Automata))
	for i, a := range def.Automata {
		if a.Name == "" {
			report("automaton #%d has no name", i)
			continue
		}
		if automata[a.Name] {
			report("automaton '%s' is declared twice", a.Name)
		}
		automata[a.Name] = true

		states := map[string]bool{domain.StateFailed: true}
		for j, s := range a.States {
			switch {
			case s.Name == "":
				report("automaton '%s': state #%d has no name", a.Name, j)
			case s.Name == domain.StateFailed:
				report("automaton '%s': state name '%s' is reserved", a.Name, s.Name)
			case states[s.Name]:
				report("automaton '%s': state '%s' is declared twice", a.Name, s.Name)
			}
			states[s.Name] = true
		}

		if a.Initial == "" {
			report("automaton '%s' has no initial state", a.Name)
		} else if !states[a.Initial] {
			report("automaton '%s': initial state '%s' is not declared", a.Name, a.Initial)
		}

		for _, s := range a.States {
			for _, name := range s.Views {
				if !views[name] {
					report("automaton '%s': state '%s' references unknown view '%s'", a.Name, s.Name, name)
				}
			}
			for _, action := range sortedActions(s.Actions) {
				next := s.Actions[action].Next
				if next != "" && !states[next] {
					report("automaton '%s': action '%s' of state '%s' targets unknown state '%s'", a.Name, action, s.Name, next)
				}
			}
		}
	}

	for _, v := range def.Views {
		if v.Automaton != "" && !automata[v.Automaton] {
			report("view '%s' is bound to unknown automaton '%s'", v.Name, v.Automaton)
		}
	}

	return errors.Join(errs...)
}

func sortedActions(actions map[string]ActionDef) []string {
	names := make([]string, 0, len(actions))
	for name := range actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
