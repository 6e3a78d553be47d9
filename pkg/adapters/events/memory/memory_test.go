package memory

import (
	"context"
	"testing"
	"time"

	"github.com/aescanero/anomalysim/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	bus := NewInMemoryEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan ports.Event, 2)
	handler := func(ctx context.Context, event ports.Event) error {
		received <- event
		return nil
	}
	require.NoError(t, bus.Subscribe(ctx, "prediction.events", handler))
	require.NoError(t, bus.Subscribe(ctx, "prediction.events", handler))
	assert.Equal(t, 2, bus.SubscriberCount("prediction.events"))

	event := ports.Event{ID: "evt-1", Type: ports.EventTypePredictionCompleted, Timestamp: time.Now()}
	require.NoError(t, bus.Publish(ctx, "prediction.events", event))

	for i := 0; i < 2; i++ {
		select {
		case got := <-received:
			assert.Equal(t, "evt-1", got.ID)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	bus := NewInMemoryEventBus()
	assert.NoError(t, bus.Publish(context.Background(), "nobody", ports.Event{ID: "x"}))
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	bus := NewInMemoryEventBus()
	ctx, cancel := context.WithCancel(context.Background())

	other, otherCancel := context.WithCancel(context.Background())
	defer otherCancel()

	noop := func(ctx context.Context, event ports.Event) error { return nil }
	require.NoError(t, bus.Subscribe(ctx, "topic", noop))
	require.NoError(t, bus.Subscribe(other, "topic", noop))
	require.Equal(t, 2, bus.SubscriberCount("topic"))

	cancel()

	assert.Eventually(t, func() bool {
		return bus.SubscriberCount("topic") == 1
	}, time.Second, 10*time.Millisecond)
}

func TestUnsubscribeAndClose(t *testing.T) {
	bus := NewInMemoryEventBus()
	ctx := context.Background()
	noop := func(ctx context.Context, event ports.Event) error { return nil }

	require.NoError(t, bus.Subscribe(ctx, "a", noop))
	require.NoError(t, bus.Subscribe(ctx, "b", noop))

	require.NoError(t, bus.Unsubscribe(ctx, "a"))
	assert.Equal(t, 0, bus.SubscriberCount("a"))
	assert.Equal(t, 1, bus.SubscriberCount("b"))

	require.NoError(t, bus.Close())
	assert.Equal(t, 0, bus.SubscriberCount("b"))
}
