package runtime_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/automata/internal/runtime"
	"github.com/stretchr/testify/require"
)

// goTo returns a handler that moves to next.
func goTo(next string) runtime.Handler {
	return func(ctx context.Context, s *runtime.State, d *runtime.Delta) (*runtime.Omega, error) {
		return runtime.NewOmega(next, nil, nil, nil), nil
	}
}

func mustState(t *testing.T, f *runtime.Factory, name string, actions map[string]runtime.Handler, views ...*runtime.View) *runtime.State {
	t.Helper()
	s, err := f.CreateState(runtime.StateConfig{Name: name, Actions: actions, Views: views})
	require.NoError(t, err)
	return s
}

func mustView(t *testing.T, f *runtime.Factory, name string) *runtime.View {
	t.Helper()
	v, err := f.CreateView(runtime.ViewConfig{
		Name: name,
		Render: func(ctx context.Context, rc runtime.RenderContext) (any, error) {
			return name + "@" + rc.Automaton.Current, nil
		},
	})
	require.NoError(t, err)
	return v
}

// recorder collects events of every type in emission order.
type recorder struct {
	mu     sync.Mutex
	events []runtime.Event
}

func (r *recorder) listen(a *runtime.Automaton) {
	for _, t := range runtime.EventTypes {
		a.On(t, func(ctx context.Context, e runtime.Event) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, e)
		})
	}
}

func (r *recorder) types() []runtime.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]runtime.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
