package monitor

import (
	"sync"
	"time"

	metrics "github.com/aescanero/anomalysim/pkg/adapters/metrics/prometheus"
	"go.uber.org/zap"
)

// SnapshotSource exposes the metric state for an endpoint
type SnapshotSource interface {
	Snapshot(endpoint string) (*metrics.Snapshot, error)
}

// Reporter logs metric snapshots on a fixed interval
type Reporter struct {
	source   SnapshotSource
	endpoint string
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewReporter creates a new status reporter for endpoint
func NewReporter(source SnapshotSource, endpoint string, interval time.Duration, logger *zap.Logger) *Reporter {
	return &Reporter{
		source:   source,
		endpoint: endpoint,
		interval: interval,
		logger:   logger,
	}
}

// Start starts the reporter; a non-positive interval disables it
func (r *Reporter) Start() {
	if r.interval <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})

	go r.run(r.stopCh, r.doneCh)
}

// Stop stops the reporter and waits for the loop to exit
func (r *Reporter) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	close(stopCh)
	<-doneCh
}

// run is the main reporting loop
func (r *Reporter) run(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			r.Report()
		}
	}
}

// Report logs the current snapshot once
func (r *Reporter) Report() {
	snap, err := r.source.Snapshot(r.endpoint)
	if err != nil {
		r.logger.Error("failed to read metrics snapshot",
			zap.String("endpoint", r.endpoint),
			zap.Error(err))
		return
	}

	var meanLatency time.Duration
	if snap.Observations > 0 {
		meanLatency = time.Duration(snap.LatencySum / float64(snap.Observations) * float64(time.Second))
	}

	r.logger.Info("prediction status",
		zap.String("endpoint", snap.Endpoint),
		zap.Float64("requests", snap.Requests),
		zap.Uint64("observations", snap.Observations),
		zap.Duration("mean_latency", meanLatency),
		zap.Float64("anomaly_score", snap.AnomalyScore),
		zap.Float64("inference_ms", snap.InferenceMS))

	// ObserveRequest updates both together; a gap means a lost observation.
	if float64(snap.Observations) != snap.Requests {
		r.logger.Warn("request counter and latency histogram disagree",
			zap.Float64("requests", snap.Requests),
			zap.Uint64("observations", snap.Observations))
	}
}
