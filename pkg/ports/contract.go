package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunEventBusContract runs a suite of tests to verify that an EventBus implementation
// adheres to the defined interface contract.
func RunEventBusContract(t *testing.T, bus EventBus) {
	t.Helper()
	topic := "contract." + time.Now().Format("20060102150405.000000")

	t.Run("Publish and Receive", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ch, err := bus.Subscribe(ctx, topic)
		require.NoError(t, err, "Subscribe should not return error")

		// Publish until the subscription is live; some transports attach asynchronously.
		require.Eventually(t, func() bool {
			if err := bus.Publish(ctx, topic, []byte(`{"n":1}`)); err != nil {
				return false
			}
			select {
			case msg := <-ch:
				assert.Equal(t, topic, msg.Topic)
				assert.JSONEq(t, `{"n":1}`, string(msg.Payload))
				return true
			case <-time.After(50 * time.Millisecond):
				return false
			}
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("Topics Are Isolated", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		other, err := bus.Subscribe(ctx, topic+".other")
		require.NoError(t, err)

		require.NoError(t, bus.Publish(ctx, topic, []byte(`{}`)))
		select {
		case msg := <-other:
			t.Fatalf("unexpected message on isolated topic: %s", msg.Payload)
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("Cancel Closes Subscription", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		ch, err := bus.Subscribe(ctx, topic)
		require.NoError(t, err)

		cancel()
		assert.Eventually(t, func() bool {
			select {
			case _, ok := <-ch:
				return !ok
			default:
				return false
			}
		}, 2*time.Second, 10*time.Millisecond)
	})
}
