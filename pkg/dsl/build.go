package dsl

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aretw0/automata/internal/runtime"
	"github.com/aretw0/automata/pkg/domain"
)

// Build validates def and registers its views and automata on f.
// Automata are returned in declaration order.
func Build(f *runtime.Factory, def *Definition) ([]*runtime.Automaton, error) {
	if err := Validate(def); err != nil {
		return nil, err
	}

	views := make(map[string]*runtime.View, len(def.Views))
	for _, vd := range def.Views {
		render, err := TemplateRender(vd.Name, vd.Template)
		if err != nil {
			return nil, err
		}
		v, err := f.CreateView(runtime.ViewConfig{Name: vd.Name, Render: render, Automaton: vd.Automaton})
		if err != nil {
			return nil, err
		}
		views[vd.Name] = v
	}

	automata := make([]*runtime.Automaton, 0, len(def.Automata))
	for _, ad := range def.Automata {
		states := make([]*runtime.State, 0, len(ad.States))
		for _, sd := range ad.States {
			cfg := runtime.StateConfig{
				Name:    sd.Name,
				Local:   sd.Local,
				Actions: make(map[string]runtime.Handler, len(sd.Actions)),
			}
			for name, action := range sd.Actions {
				cfg.Actions[name] = Handler(action)
			}
			for _, name := range sd.Views {
				cfg.Views = append(cfg.Views, views[name])
			}

			s, err := f.CreateState(cfg)
			if err != nil {
				return nil, fmt.Errorf("automaton '%s': %w", ad.Name, err)
			}
			states = append(states, s)
		}

		a, err := f.CreateAutomaton(runtime.AutomatonConfig{
			Name:    ad.Name,
			States:  states,
			Context: ad.Context,
			Buffer:  ad.Buffer,
			Initial: ad.Initial,
		})
		if err != nil {
			return nil, err
		}
		automata = append(automata, a)
	}
	return automata, nil
}

// Handler compiles a declarative action into a runtime.Handler.
//
// Assignments and removals are applied as one context transaction, so watchers see
// a single change set. A failing action leaves the context untouched.
func Handler(action ActionDef) runtime.Handler {
	return func(ctx context.Context, s *runtime.State, d *runtime.Delta) (*runtime.Omega, error) {
		data := ActionData{
			Action:  d.Action,
			From:    d.From,
			Input:   d.Input,
			Context: d.Context.Snapshot(),
		}

		if action.Fail != "" {
			msg, err := expand(d.Action+".fail", action.Fail, data)
			if err != nil {
				return nil, err
			}
			return nil, errors.New(msg.(string))
		}

		output := runtime.Output{}
		for key, value := range action.Output {
			expanded, err := expand(d.Action+".output."+key, value, data)
			if err != nil {
				return nil, err
			}
			output[key] = expanded
		}

		if len(action.Assign) > 0 || len(action.Unset) > 0 {
			paths := make([]string, 0, len(action.Assign))
			for path := range action.Assign {
				paths = append(paths, path)
			}
			sort.Strings(paths)

			values := make(map[string]any, len(paths))
			for _, path := range paths {
				expanded, err := expand(d.Action+".assign."+path, action.Assign[path], data)
				if err != nil {
					return nil, err
				}
				values[path] = expanded
			}

			err := d.Context.Apply(func(tx *domain.Tx) error {
				for _, path := range paths {
					if err := tx.Set(path, values[path]); err != nil {
						return err
					}
				}
				for _, path := range action.Unset {
					tx.Delete(path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		}

		return runtime.NewOmega(action.Next, output, nil, nil), nil
	}
}
