package inference

import (
	"context"
	"time"

	"github.com/aescanero/anomalysim/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Result is the outcome of one simulated prediction
type Result struct {
	AnomalyScore float64 `json:"anomaly_score"`
	InferenceMS  float64 `json:"inference_ms"`
}

// Config holds simulator configuration
type Config struct {
	MinLatencyMS float64
	MaxLatencyMS float64
	Source       Source
	Metrics      ports.MetricsCollector
	EventBus     ports.EventBus
	Topic        string
	Logger       *zap.Logger

	// Sleep suspends the calling goroutine; defaults to time.Sleep
	Sleep func(time.Duration)
}

// Simulator produces random predictions with random latency
type Simulator struct {
	minLatencyMS float64
	spanMS       float64
	source       Source
	metrics      ports.MetricsCollector
	eventBus     ports.EventBus
	topic        string
	logger       *zap.Logger
	sleep        func(time.Duration)
}

// NewSimulator creates a new prediction simulator
func NewSimulator(cfg *Config) *Simulator {
	s := &Simulator{
		minLatencyMS: cfg.MinLatencyMS,
		spanMS:       cfg.MaxLatencyMS - cfg.MinLatencyMS,
		source:       cfg.Source,
		metrics:      cfg.Metrics,
		eventBus:     cfg.EventBus,
		topic:        cfg.Topic,
		logger:       cfg.Logger,
		sleep:        cfg.Sleep,
	}
	if s.source == nil {
		s.source = NewSource(0)
	}
	if s.sleep == nil {
		s.sleep = time.Sleep
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Predict runs one simulated inference. It blocks only the calling goroutine
// for the drawn latency and always succeeds.
func (s *Simulator) Predict(ctx context.Context, requestID string) Result {
	latencyMS := s.minLatencyMS + s.spanMS*s.source.Float64()
	s.sleep(time.Duration(latencyMS * float64(time.Millisecond)))

	result := Result{
		AnomalyScore: s.source.Float64(),
		InferenceMS:  latencyMS,
	}

	s.metrics.SetAnomalyScore(result.AnomalyScore)
	s.metrics.SetInferenceLatency(result.InferenceMS)

	s.publish(ctx, requestID, result)

	s.logger.Debug("prediction simulated",
		zap.String("request_id", requestID),
		zap.Float64("anomaly_score", result.AnomalyScore),
		zap.Float64("inference_ms", result.InferenceMS))

	return result
}

// publish emits a prediction.completed event; failures are logged only
func (s *Simulator) publish(ctx context.Context, requestID string, result Result) {
	if s.eventBus == nil {
		return
	}

	event := ports.Event{
		ID:        uuid.New().String(),
		Type:      ports.EventTypePredictionCompleted,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"request_id":    requestID,
			"anomaly_score": result.AnomalyScore,
			"inference_ms":  result.InferenceMS,
		},
	}

	if err := s.eventBus.Publish(ctx, s.topic, event); err != nil {
		s.logger.Error("failed to publish prediction event",
			zap.String("request_id", requestID),
			zap.String("topic", s.topic),
			zap.Error(err))
	}
}
