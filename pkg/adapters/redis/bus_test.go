package redis_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/automata/internal/runtime"
	"github.com/aretw0/automata/pkg/adapters/redis"
	"github.com/aretw0/automata/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T, opts ...redis.Option) (*redis.Bus, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	bus := redis.NewFromClient(client, opts...)
	t.Cleanup(func() { _ = bus.Close() })
	return bus, mr
}

func TestRedisBus_Contract(t *testing.T) {
	bus, _ := newBus(t)
	ports.RunEventBusContract(t, bus)
}

func TestRedisBus_Prefix(t *testing.T) {
	bus, mr := newBus(t, redis.WithPrefix("app:"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := bus.Subscribe(ctx, "login")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(mr.PubSubChannels("app:*")) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"app:login"}, mr.PubSubChannels("app:*"))
}

func TestRedisBus_FactoryEvents(t *testing.T) {
	bus, _ := newBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bus.Subscribe(ctx, runtime.EventTopic("door"))
	require.NoError(t, err)

	f := runtime.NewFactory(runtime.WithEventBus(bus))
	closed, err := f.CreateState(runtime.StateConfig{
		Name: "closed",
		Actions: map[string]runtime.Handler{
			"open": func(ctx context.Context, s *runtime.State, d *runtime.Delta) (*runtime.Omega, error) {
				return runtime.NewOmega("open", nil, nil, nil), nil
			},
		},
	})
	require.NoError(t, err)
	open, err := f.CreateState(runtime.StateConfig{Name: "open"})
	require.NoError(t, err)

	door, err := f.CreateAutomaton(runtime.AutomatonConfig{
		Name:    "door",
		States:  []*runtime.State{closed, open},
		Initial: "closed",
	})
	require.NoError(t, err)

	_, err = door.Transit(ctx, runtime.NewDelta("open", nil, ""))
	require.NoError(t, err)

	var types []runtime.EventType
	timeout := time.After(2 * time.Second)
	for len(types) < 3 {
		select {
		case msg := <-msgs:
			var e struct {
				Type      runtime.EventType `json:"type"`
				Automaton string            `json:"automaton"`
			}
			require.NoError(t, json.Unmarshal(msg.Payload, &e))
			assert.Equal(t, "door", e.Automaton)
			types = append(types, e.Type)
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %v", types)
		}
	}
	assert.Equal(t, []runtime.EventType{
		runtime.EventBeforeTransition,
		runtime.EventDataTransition,
		runtime.EventAfterTransition,
	}, types)
}
