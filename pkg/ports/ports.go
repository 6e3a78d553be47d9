// Package ports declares the interfaces the application layer depends on.
package ports

import (
	"context"
	"net/http"
	"time"
)

// EventType identifies the kind of an event
type EventType string

const (
	// EventTypePredictionCompleted is published once per simulated prediction
	EventTypePredictionCompleted EventType = "prediction.completed"
)

// Event is a message carried by the event bus
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EventHandler processes a delivered event
type EventHandler func(ctx context.Context, event Event) error

// EventBus publishes events to topics and delivers them to subscribers
type EventBus interface {
	Publish(ctx context.Context, topic string, event Event) error
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Unsubscribe(ctx context.Context, topic string) error
	Close() error
}

// MetricsCollector records request and inference metrics
type MetricsCollector interface {
	ObserveRequest(endpoint string, duration time.Duration)
	SetAnomalyScore(score float64)
	SetInferenceLatency(ms float64)
	Handler() http.Handler
}
