package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aescanero/anomalysim/pkg/adapters/events/memory"
	"github.com/aescanero/anomalysim/pkg/ports"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const topic = "prediction.events"

func newStreamServer(t *testing.T) (*memory.InMemoryEventBus, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bus := memory.NewInMemoryEventBus()
	router := gin.New()
	router.GET("/predict/stream", NewHandler(bus, topic, zap.NewNop()).HandlePredictionStream)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return bus, "ws" + strings.TrimPrefix(srv.URL, "http") + "/predict/stream"
}

func TestStreamForwardsPredictions(t *testing.T) {
	bus, url := newStreamServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return bus.SubscriberCount(topic) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), topic, ports.Event{
		ID:   "evt-1",
		Type: ports.EventTypePredictionCompleted,
		Data: map[string]interface{}{"anomaly_score": 0.42, "inference_ms": 123.0},
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got ports.Event
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "evt-1", got.ID)
	assert.Equal(t, ports.EventTypePredictionCompleted, got.Type)
	assert.Equal(t, 0.42, got.Data["anomaly_score"])
}

func TestStreamUnsubscribesOnDisconnect(t *testing.T) {
	bus, url := newStreamServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return bus.SubscriberCount(topic) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return bus.SubscriberCount(topic) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestForwardToDropsWhenFull(t *testing.T) {
	h := NewHandler(memory.NewInMemoryEventBus(), topic, zap.NewNop())
	ch := make(chan ports.Event, 1)
	forward := h.forwardTo(ch)

	require.NoError(t, forward(context.Background(), ports.Event{ID: "first"}))
	require.NoError(t, forward(context.Background(), ports.Event{ID: "second"}))

	assert.Len(t, ch, 1)
	assert.Equal(t, "first", (<-ch).ID)
}
