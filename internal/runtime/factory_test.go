package runtime_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/automata/internal/runtime"
	"github.com/aretw0/automata/pkg/adapters/memory"
	"github.com/aretw0/automata/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory_CreateView(t *testing.T) {
	f := runtime.NewFactory()
	render := func(ctx context.Context, rc runtime.RenderContext) (any, error) { return "x", nil }

	_, err := f.CreateView(runtime.ViewConfig{Name: "header", Render: render})
	require.NoError(t, err)

	t.Run("Duplicate Name", func(t *testing.T) {
		_, err := f.CreateView(runtime.ViewConfig{Name: "header", Render: render})
		assert.ErrorIs(t, err, domain.ErrDuplicateRegistration)
	})

	t.Run("Missing Render", func(t *testing.T) {
		_, err := f.CreateView(runtime.ViewConfig{Name: "footer"})
		assert.ErrorIs(t, err, domain.ErrMissingRender)
	})

	t.Run("Missing Name", func(t *testing.T) {
		_, err := f.CreateView(runtime.ViewConfig{Render: render})
		assert.ErrorIs(t, err, domain.ErrInvalidName)
	})

	t.Run("Registries Are Per Factory", func(t *testing.T) {
		other := runtime.NewFactory()
		_, err := other.CreateView(runtime.ViewConfig{Name: "header", Render: render})
		assert.NoError(t, err)
	})
}

func TestFactory_CreateAutomatonDuplicate(t *testing.T) {
	f := runtime.NewFactory()
	_, err := f.CreateAutomaton(runtime.AutomatonConfig{Name: "login"})
	require.NoError(t, err)

	_, err = f.CreateAutomaton(runtime.AutomatonConfig{Name: "login"})
	assert.ErrorIs(t, err, domain.ErrDuplicateRegistration)

	_, err = f.CreateAutomaton(runtime.AutomatonConfig{Name: "other", Initial: "nowhere"})
	assert.ErrorIs(t, err, domain.ErrUnknownState)
}

func TestFactory_ViewsInAttachmentOrder(t *testing.T) {
	ctx := context.Background()
	f := runtime.NewFactory()
	header := mustView(t, f, "header")
	footer := mustView(t, f, "footer")

	authenticated := mustState(t, f, "authenticated", nil, header)
	authenticated.AddView(footer)
	authenticated.AddView(header)
	idle := mustState(t, f, "idle", map[string]runtime.Handler{"login": goTo("authenticated")})

	a, err := f.CreateAutomaton(runtime.AutomatonConfig{
		Name:    "login",
		States:  []*runtime.State{idle, authenticated},
		Initial: "idle",
	})
	require.NoError(t, err)

	omega, err := a.Transit(ctx, runtime.NewDelta("login", nil, ""))
	require.NoError(t, err)

	require.Equal(t, "authenticated", omega.Next)
	assert.Equal(t, []string{"header", "footer"}, omega.ViewNames())
	assert.Equal(t, []string{"authenticated"}, header.States())
	assert.Equal(t, []string{"login"}, footer.Automata())

	outputs, err := runtime.RenderAll(ctx, a, nil, omega)
	require.NoError(t, err)
	assert.Equal(t, []any{"header@authenticated", "footer@authenticated"}, outputs)
	assert.Equal(t, "footer@authenticated", footer.CachedOutput())
}

func TestFactory_ViewTransitRouting(t *testing.T) {
	ctx := context.Background()

	build := func(t *testing.T, withLogout bool) (*runtime.Factory, *runtime.View) {
		f := runtime.NewFactory()
		nav := mustView(t, f, "nav")

		home := mustState(t, f, "home", nil, nav)
		_, err := f.CreateAutomaton(runtime.AutomatonConfig{Name: "menu", States: []*runtime.State{home}, Initial: "home"})
		require.NoError(t, err)

		actions := map[string]runtime.Handler{"refresh": goTo("")}
		if withLogout {
			actions["logout"] = goTo("out")
		}
		in := mustState(t, f, "in", actions)
		out := mustState(t, f, "out", nil)
		_, err = f.CreateAutomaton(runtime.AutomatonConfig{Name: "session", States: []*runtime.State{in, out}, Initial: "in"})
		require.NoError(t, err)
		return f, nav
	}

	t.Run("Broadcast Finds The Accepting Automaton", func(t *testing.T) {
		f, nav := build(t, true)
		omega, err := nav.Transit(ctx, runtime.TransitRequest{Action: "logout"})
		require.NoError(t, err)
		assert.Equal(t, "out", omega.Next)

		session, _ := f.Automaton("session")
		menu, _ := f.Automaton("menu")
		assert.Equal(t, "out", session.Current().Name())
		assert.Equal(t, "home", menu.Current().Name(), "non-accepting automata are untouched")
	})

	t.Run("Nobody Accepts", func(t *testing.T) {
		f, nav := build(t, false)
		_, err := nav.Transit(ctx, runtime.TransitRequest{Action: "logout"})
		assert.ErrorIs(t, err, domain.ErrNoMatchingTransition)

		session, _ := f.Automaton("session")
		assert.Equal(t, "in", session.Current().Name())
	})

	t.Run("Explicit Target", func(t *testing.T) {
		f, _ := build(t, true)
		_, err := f.Transit(ctx, runtime.TransitRequest{Action: "logout", Automaton: "menu"})
		assert.ErrorIs(t, err, domain.ErrNoMatchingTransition)

		_, err = f.Transit(ctx, runtime.TransitRequest{Action: "logout", Automaton: "ghost"})
		assert.ErrorIs(t, err, domain.ErrUnknownAutomaton)
	})

	t.Run("Bound View", func(t *testing.T) {
		f, _ := build(t, true)
		bound, err := f.CreateView(runtime.ViewConfig{
			Name:      "session-only",
			Automaton: "menu",
			Render:    func(ctx context.Context, rc runtime.RenderContext) (any, error) { return nil, nil },
		})
		require.NoError(t, err)

		_, err = bound.Transit(ctx, runtime.TransitRequest{Action: "logout"})
		assert.ErrorIs(t, err, domain.ErrNoMatchingTransition, "a bound view never broadcasts")
	})

	t.Run("Render Context Transit", func(t *testing.T) {
		f, _ := build(t, true)
		var omega *runtime.Omega
		v, err := f.CreateView(runtime.ViewConfig{
			Name: "button",
			Render: func(ctx context.Context, rc runtime.RenderContext) (any, error) {
				var err error
				omega, err = rc.Transit(ctx, runtime.TransitRequest{Action: "logout"})
				return "clicked", err
			},
		})
		require.NoError(t, err)

		out, err := v.Render(ctx, runtime.RenderInput{})
		require.NoError(t, err)
		assert.Equal(t, "clicked", out)
		assert.Equal(t, "out", omega.Next)
	})
}

type countingApp struct {
	runtime.BaseApp
	mu     sync.Mutex
	events []runtime.Event
}

func (a *countingApp) OnTransition(ctx context.Context, e runtime.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *countingApp) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

func TestFactory_ConnectApps(t *testing.T) {
	ctx := context.Background()
	f := runtime.NewFactory()
	a := newLogin(t, f, goTo("authenticated"))
	require.NoError(t, a.Init("idle"))

	app := &countingApp{}
	assert.ErrorIs(t, f.Connect(app, "ghost"), domain.ErrUnknownAutomaton)

	require.NoError(t, f.Connect(app, "login"))
	require.NoError(t, f.Connect(app, "login"))

	bound, ok := app.Automaton("login")
	require.True(t, ok)
	assert.Same(t, a, bound)

	omega, err := app.Transit(ctx, "login", "submit", map[string]any{"user": "a"})
	require.NoError(t, err)
	assert.Equal(t, "authenticating", omega.Next)
	require.Equal(t, 1, app.count(), "connecting twice delivers once")
	assert.Equal(t, runtime.EventAfterTransition, app.events[0].Type)
	assert.Equal(t, "authenticating", app.events[0].Omega.Next)

	_, err = app.Transit(ctx, "ghost", "submit", nil)
	assert.ErrorIs(t, err, domain.ErrUnknownAutomaton)

	f.Disconnect(app, "login")
	_, err = a.Transit(ctx, runtime.NewDelta("verify", nil, ""))
	require.NoError(t, err)
	assert.Equal(t, 1, app.count())
}

func TestFactory_LifecycleHooks(t *testing.T) {
	var before, after, failed int
	hooks := runtime.LifecycleHooks{
		OnBeforeTransition: func(ctx context.Context, e runtime.Event) { before++ },
		OnAfterTransition:  func(ctx context.Context, e runtime.Event) { after++ },
		OnFailedTransition: func(ctx context.Context, e runtime.Event) { failed++ },
	}

	ids := 0
	f := runtime.NewFactory(
		runtime.WithLifecycleHooks(hooks),
		runtime.WithIDGenerator(func() string { ids++; return "evt" }),
	)
	a := newLogin(t, f, func(ctx context.Context, s *runtime.State, d *runtime.Delta) (*runtime.Omega, error) {
		return nil, assert.AnError
	})
	require.NoError(t, a.Init("idle"))

	ctx := context.Background()
	_, err := a.Transit(ctx, runtime.NewDelta("submit", nil, ""))
	require.NoError(t, err)
	_, err = a.Transit(ctx, runtime.NewDelta("verify", nil, ""))
	require.NoError(t, err)

	assert.Equal(t, 2, before)
	assert.Equal(t, 2, after)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 8, ids, "one ID per emitted event, stateChanged included")
}

func TestFactory_PublishesToEventBus(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := memory.NewBus()
	msgs, err := bus.Subscribe(ctx, runtime.EventTopic("login"))
	require.NoError(t, err)

	f := runtime.NewFactory(runtime.WithEventBus(bus))
	a := newLogin(t, f, goTo("authenticated"))
	require.NoError(t, a.Init("idle"))

	_, err = a.Transit(ctx, runtime.NewDelta("submit", map[string]any{"user": "a"}, ""))
	require.NoError(t, err)

	var types []string
	for len(types) < 4 {
		select {
		case msg := <-msgs:
			var e map[string]any
			require.NoError(t, json.Unmarshal(msg.Payload, &e))
			types = append(types, e["type"].(string))
		case <-time.After(time.Second):
			t.Fatalf("timed out, got %v", types)
		}
	}
	assert.Equal(t, []string{"beforeTransition", "stateChanged", "dataTransition", "afterTransition"}, types)
}

func TestFactory_Lookups(t *testing.T) {
	f := runtime.NewFactory()
	mustView(t, f, "b")
	mustView(t, f, "a")
	_, err := f.CreateAutomaton(runtime.AutomatonConfig{Name: "z"})
	require.NoError(t, err)
	_, err = f.CreateAutomaton(runtime.AutomatonConfig{Name: "y"})
	require.NoError(t, err)

	var views, automata []string
	for _, v := range f.Views() {
		views = append(views, v.Name())
	}
	for _, a := range f.Automata() {
		automata = append(automata, a.Name())
	}
	assert.Equal(t, []string{"b", "a"}, views)
	assert.Equal(t, []string{"z", "y"}, automata)

	_, ok := f.View("a")
	assert.True(t, ok)
	_, ok = f.Automaton("x")
	assert.False(t, ok)
}
