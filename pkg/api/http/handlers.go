package http

import (
	"net/http"
	"time"

	metrics "github.com/aescanero/anomalysim/pkg/adapters/metrics/prometheus"
	"github.com/gin-gonic/gin"
)

// handleHealth handles liveness checks
func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// handlePredict runs one simulated prediction and records it
func (s *Server) handlePredict(c *gin.Context) {
	start := time.Now()

	result := s.predictor.Predict(c.Request.Context(), c.GetString(requestIDKey))

	s.metrics.ObserveRequest(metrics.EndpointPredict, time.Since(start))

	c.JSON(http.StatusOK, result)
}
