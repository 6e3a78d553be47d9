// Package http provides the HTTP API implementation.
//
// The HTTP server exposes:
//   - GET /healthz: liveness, always "ok"
//   - GET /predict: one simulated prediction
//   - GET /metrics: Prometheus exposition of the service registry
//   - GET /predict/stream: WebSocket feed of completed predictions (optional)
package http
