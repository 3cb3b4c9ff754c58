package runtime_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aretw0/automata/internal/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestView_RenderKeepsCacheOnError(t *testing.T) {
	f := runtime.NewFactory()
	fail := false
	v, err := f.CreateView(runtime.ViewConfig{
		Name: "counter",
		Render: func(ctx context.Context, rc runtime.RenderContext) (any, error) {
			if fail {
				return nil, errors.New("render failed")
			}
			n, _ := rc.CachedOutput.(int)
			return n + 1, nil
		},
	})
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := v.Render(ctx, runtime.RenderInput{})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, v.CachedOutput())

	fail = true
	_, err = v.Render(ctx, runtime.RenderInput{})
	assert.ErrorContains(t, err, "counter")
	assert.Equal(t, 2, v.CachedOutput())
}

func TestView_SharedRenderFunc(t *testing.T) {
	f := runtime.NewFactory()
	render := func(ctx context.Context, rc runtime.RenderContext) (any, error) {
		return rc.Automaton.Name + ":" + rc.Automaton.Current, nil
	}
	a, err := f.CreateView(runtime.ViewConfig{Name: "a", Render: render})
	require.NoError(t, err)
	b, err := f.CreateView(runtime.ViewConfig{Name: "b", Render: render})
	require.NoError(t, err)

	s1 := mustState(t, f, "one", nil, a, b)
	m, err := f.CreateAutomaton(runtime.AutomatonConfig{Name: "m", States: []*runtime.State{s1}, Initial: "one"})
	require.NoError(t, err)

	out, err := a.Render(context.Background(), runtime.RenderInput{Automaton: m})
	require.NoError(t, err)
	assert.Equal(t, "m:one", out)
	assert.Equal(t, []string{"m"}, b.Automata())
}

func TestOmega_MarshalJSON(t *testing.T) {
	f := runtime.NewFactory()
	v := mustView(t, f, "header")
	omega := runtime.NewOmega("home", runtime.Output{"n": 1}, []*runtime.View{v}, nil)

	data, err := json.Marshal(omega)
	require.NoError(t, err)
	assert.JSONEq(t, `{"next":"home","output":{"n":1},"views":["header"]}`, string(data))
}
