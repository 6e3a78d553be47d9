package prometheus

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// EndpointPredict is the endpoint label of the simulated prediction route
const EndpointPredict = "/predict"

// LatencyBuckets are the request latency histogram boundaries in seconds
var LatencyBuckets = []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5}

// Collector implements MetricsCollector on an explicitly owned Prometheus registry
type Collector struct {
	registry *prometheus.Registry

	requests         *prometheus.CounterVec
	requestLatency   *prometheus.HistogramVec
	anomalyScore     prometheus.Gauge
	inferenceLatency prometheus.Gauge
}

// Snapshot is a point-in-time view of the metrics for one endpoint
type Snapshot struct {
	Endpoint     string
	Requests     float64
	Observations uint64
	LatencySum   float64
	AnomalyScore float64
	InferenceMS  float64
}

// NewCollector creates a new Prometheus metrics collector registered on reg.
// The counter and histogram children for EndpointPredict are created up front
// so both series are exposed before the first request.
func NewCollector(reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "app_requests_total",
				Help: "Total requests",
			},
			[]string{"endpoint"},
		),
		requestLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "app_request_latency_seconds",
				Help:    "Request latency",
				Buckets: LatencyBuckets,
			},
			[]string{"endpoint"},
		),
		anomalyScore: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ai_anomaly_score",
				Help: "Simulated anomaly score (0-1)",
			},
		),
		inferenceLatency: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ai_inference_latency_ms",
				Help: "Simulated inference latency in ms",
			},
		),
	}

	c.requests.WithLabelValues(EndpointPredict)
	c.requestLatency.WithLabelValues(EndpointPredict)

	return c
}

// RegisterRuntimeCollectors adds the Go runtime and process collectors to reg
func RegisterRuntimeCollectors(reg *prometheus.Registry) error {
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return err
	}
	return reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Registry returns the registry the collector's metrics live on
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveRequest counts a handled request and records its duration.
// Both updates happen together so the histogram count tracks the counter.
func (c *Collector) ObserveRequest(endpoint string, duration time.Duration) {
	c.requests.WithLabelValues(endpoint).Inc()
	c.requestLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// SetAnomalyScore records the most recent anomaly score
func (c *Collector) SetAnomalyScore(score float64) {
	c.anomalyScore.Set(score)
}

// SetInferenceLatency records the most recent simulated inference latency
func (c *Collector) SetInferenceLatency(ms float64) {
	c.inferenceLatency.Set(ms)
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Snapshot reads the current metric values for endpoint
func (c *Collector) Snapshot(endpoint string) (*Snapshot, error) {
	snap := &Snapshot{Endpoint: endpoint}

	var m dto.Metric
	if err := c.requests.WithLabelValues(endpoint).Write(&m); err != nil {
		return nil, err
	}
	snap.Requests = m.GetCounter().GetValue()

	m.Reset()
	hist, ok := c.requestLatency.WithLabelValues(endpoint).(prometheus.Metric)
	if ok {
		if err := hist.Write(&m); err != nil {
			return nil, err
		}
		snap.Observations = m.GetHistogram().GetSampleCount()
		snap.LatencySum = m.GetHistogram().GetSampleSum()
	}

	m.Reset()
	if err := c.anomalyScore.Write(&m); err != nil {
		return nil, err
	}
	snap.AnomalyScore = m.GetGauge().GetValue()

	m.Reset()
	if err := c.inferenceLatency.Write(&m); err != nil {
		return nil, err
	}
	snap.InferenceMS = m.GetGauge().GetValue()

	return snap, nil
}
