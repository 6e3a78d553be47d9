package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/anomalysim/internal/application/inference"
	metrics "github.com/aescanero/anomalysim/pkg/adapters/metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fixedSource replays draws in order, then repeats the last one
type fixedSource struct {
	mu    sync.Mutex
	draws []float64
}

func (s *fixedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.draws[0]
	if len(s.draws) > 1 {
		s.draws = s.draws[1:]
	}
	return v
}

func newTestServer(t *testing.T, source inference.Source, sleep func(time.Duration)) (*Server, *metrics.Collector) {
	t.Helper()

	collector := metrics.NewCollector(prometheus.NewRegistry())
	sim := inference.NewSimulator(&inference.Config{
		MinLatencyMS: 50,
		MaxLatencyMS: 300,
		Source:       source,
		Metrics:      collector,
		Logger:       zap.NewNop(),
		Sleep:        sleep,
	})

	return NewServer(&Config{
		Host:      "127.0.0.1",
		Port:      8080,
		Predictor: sim,
		Metrics:   collector,
		Logger:    zap.NewNop(),
	}), collector
}

func noSleep(time.Duration) {}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func scrape(t *testing.T, s *Server) map[string]*dto.MetricFamily {
	t.Helper()
	w := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(w.Body)
	require.NoError(t, err)
	return families
}

func predictCount(t *testing.T, families map[string]*dto.MetricFamily) float64 {
	t.Helper()
	mf, ok := families["app_requests_total"]
	require.True(t, ok)
	for _, m := range mf.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "endpoint" && l.GetValue() == "/predict" {
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatal("no /predict series")
	return 0
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, inference.NewSource(1), noSleep)

	w := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	get(t, s, "/predict")
	get(t, s, "/metrics")

	w = get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestMetricsBeforeAnyPrediction(t *testing.T) {
	s, _ := newTestServer(t, inference.NewSource(1), noSleep)

	w := get(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))

	families := scrape(t, s)
	for _, name := range []string{
		"app_requests_total",
		"app_request_latency_seconds",
		"ai_anomaly_score",
		"ai_inference_latency_ms",
	} {
		assert.Contains(t, families, name)
	}
	assert.Equal(t, 0.0, predictCount(t, families))
	assert.Equal(t, uint64(0),
		families["app_request_latency_seconds"].GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestPredictScenario(t *testing.T) {
	s, _ := newTestServer(t, &fixedSource{draws: []float64{0.292, 0.42}}, noSleep)

	w := get(t, s, "/predict")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	var body map[string]float64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body, 2)
	assert.Equal(t, 0.42, body["anomaly_score"])
	assert.InDelta(t, 123.0, body["inference_ms"], 1e-9)

	families := scrape(t, s)
	assert.Equal(t, 0.42, families["ai_anomaly_score"].GetMetric()[0].GetGauge().GetValue())
	assert.InDelta(t, 123.0, families["ai_inference_latency_ms"].GetMetric()[0].GetGauge().GetValue(), 1e-9)
	assert.Equal(t, 1.0, predictCount(t, families))
}

func TestPredictSequentialCalls(t *testing.T) {
	s, collector := newTestServer(t, inference.NewSource(3), noSleep)

	for i := 0; i < 10; i++ {
		w := get(t, s, "/predict")
		require.Equal(t, http.StatusOK, w.Code)

		var result inference.Result
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.GreaterOrEqual(t, result.AnomalyScore, 0.0)
		assert.Less(t, result.AnomalyScore, 1.0)
		assert.GreaterOrEqual(t, result.InferenceMS, 50.0)
		assert.Less(t, result.InferenceMS, 300.0)
	}

	assert.Equal(t, 10.0, predictCount(t, scrape(t, s)))

	snap, err := collector.Snapshot(metrics.EndpointPredict)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), snap.Observations)
}

func TestPredictConcurrentCallsDoNotBlockEachOther(t *testing.T) {
	s, collector := newTestServer(t, inference.NewSource(5), time.Sleep)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)

	start := time.Now()
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Get(srv.URL + "/predict")
			if err != nil {
				errs <- err
				return
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	// Serialized handling would need at least n*50ms.
	assert.Less(t, elapsed, time.Duration(n)*50*time.Millisecond)

	snap, err := collector.Snapshot(metrics.EndpointPredict)
	require.NoError(t, err)
	assert.Equal(t, float64(n), snap.Requests)
	assert.Equal(t, uint64(n), snap.Observations)
	assert.GreaterOrEqual(t, snap.LatencySum, float64(n)*0.05)
}

func TestRequestIDHeader(t *testing.T) {
	s, _ := newTestServer(t, inference.NewSource(1), noSleep)

	w := get(t, s, "/healthz")
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "caller-id")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "caller-id", w.Header().Get("X-Request-ID"))
}

func TestOnlyGetRoutesAreServed(t *testing.T) {
	s, collector := newTestServer(t, inference.NewSource(1), noSleep)

	req := httptest.NewRequest(http.MethodPost, "/predict", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/unknown").Code)

	snap, err := collector.Snapshot(metrics.EndpointPredict)
	require.NoError(t, err)
	assert.Equal(t, 0.0, snap.Requests)
}

func TestServerAddr(t *testing.T) {
	s, _ := newTestServer(t, inference.NewSource(1), noSleep)
	assert.Equal(t, "127.0.0.1:8080", s.Addr())
}
