package memory_test

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/aretw0/automata/pkg/adapters/memory"
	"github.com/aretw0/automata/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_Contract(t *testing.T) {
	ports.RunEventBusContract(t, memory.NewBus())
}

func TestBus_DropsWhenSubscriberIsFull(t *testing.T) {
	bus := memory.NewBus(memory.WithBufferSize(1))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, "t")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "t", []byte("1")))
	require.NoError(t, bus.Publish(ctx, "t", []byte("2")))

	msg := <-ch
	assert.Equal(t, "1", string(msg.Payload))
	select {
	case extra := <-ch:
		t.Fatalf("expected second message to be dropped, got %q", extra.Payload)
	default:
	}
}

func TestBus_Close(t *testing.T) {
	bus := memory.NewBus()
	ch, err := bus.Subscribe(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, 1, bus.Subscribers("t"))

	require.NoError(t, bus.Close())
	_, ok := <-ch
	assert.False(t, ok)

	assert.ErrorIs(t, bus.Publish(context.Background(), "t", nil), ports.ErrBusClosed)
	_, err = bus.Subscribe(context.Background(), "t")
	assert.ErrorIs(t, err, ports.ErrBusClosed)
}

func TestBus_CloseStopsWatchers(t *testing.T) {
	before := runtime.NumGoroutine()

	bus := memory.NewBus()
	for i := 0; i < 10; i++ {
		_, err := bus.Subscribe(context.Background(), "t")
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, runtime.NumGoroutine(), before+10)

	require.NoError(t, bus.Close())
	assert.Eventually(t, func() bool { return runtime.NumGoroutine() <= before }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, bus.Subscribers("t"))
}
