package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/aescanero/anomalysim/internal/application/inference"
	"github.com/aescanero/anomalysim/pkg/ports"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Predictor runs simulated predictions
type Predictor interface {
	Predict(ctx context.Context, requestID string) inference.Result
}

// StreamHandler serves the live prediction stream
type StreamHandler interface {
	HandlePredictionStream(c *gin.Context)
}

// Server represents the HTTP API server
type Server struct {
	router    *gin.Engine
	server    *http.Server
	predictor Predictor
	metrics   ports.MetricsCollector
	logger    *zap.Logger
}

// Config holds HTTP server configuration
type Config struct {
	Host      string
	Port      int
	Predictor Predictor
	Metrics   ports.MetricsCollector
	Logger    *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(requestLogger(cfg.Logger))

	s := &Server{
		router:    router,
		predictor: cfg.Predictor,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// setupRoutes configures API routes
func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/predict", s.handlePredict)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
}

// SetupStream adds the WebSocket prediction stream to the server
func (s *Server) SetupStream(handler StreamHandler) {
	s.router.GET("/predict/stream", handler.HandlePredictionStream)
}

// Handler returns the HTTP handler serving all routes
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start starts the HTTP server; it returns when the server stops
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server shut down complete")
	return nil
}
