package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aescanero/anomalysim/internal/application/inference"
	"github.com/aescanero/anomalysim/internal/application/monitor"
	"github.com/aescanero/anomalysim/internal/config"
	"github.com/aescanero/anomalysim/pkg/adapters/events/memory"
	"github.com/aescanero/anomalysim/pkg/adapters/events/redis"
	"github.com/aescanero/anomalysim/pkg/adapters/metrics/prometheus"
	"github.com/aescanero/anomalysim/pkg/api/grpc"
	"github.com/aescanero/anomalysim/pkg/api/http"
	"github.com/aescanero/anomalysim/pkg/api/websocket"
	"github.com/aescanero/anomalysim/pkg/ports"

	promclient "github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting anomaly simulator",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	// Metrics registry owned by this process
	registry := promclient.NewRegistry()
	if cfg.Metrics.RuntimeCollectors {
		if err := prometheus.RegisterRuntimeCollectors(registry); err != nil {
			logger.Fatal("failed to register runtime collectors", zap.Error(err))
		}
	}
	metricsCollector := prometheus.NewCollector(registry)

	// Event bus
	var redisClient *goredis.Client
	var eventBus ports.EventBus
	switch cfg.Events.Backend {
	case config.EventsBackendRedis:
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})

		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

		eventBus = redis.NewStreamsEventBus(redisClient, redis.Options{
			KeyPrefix:     cfg.Events.KeyPrefix,
			MaxLen:        cfg.Events.MaxLen,
			ConsumerGroup: cfg.Events.ConsumerGroup,
			ConsumerName:  fmt.Sprintf("anomalysim-%d", os.Getpid()),
		}, logger)
	default:
		eventBus = memory.NewInMemoryEventBus()
	}

	simulator := inference.NewSimulator(&inference.Config{
		MinLatencyMS: cfg.Predict.MinLatencyMS,
		MaxLatencyMS: cfg.Predict.MaxLatencyMS,
		Source:       inference.NewSource(cfg.Predict.Seed),
		Metrics:      metricsCollector,
		EventBus:     eventBus,
		Topic:        cfg.Events.Topic,
		Logger:       logger,
	})

	// Initialize API servers
	httpServer := http.NewServer(&http.Config{
		Host:      cfg.HTTPHost,
		Port:      cfg.HTTPPort,
		Predictor: simulator,
		Metrics:   metricsCollector,
		Logger:    logger,
	})

	if cfg.Events.StreamEnabled {
		httpServer.SetupStream(websocket.NewHandler(eventBus, cfg.Events.Topic, logger))
	}

	var grpcServer *grpc.Server
	if cfg.GRPC.Enabled {
		grpcServer, err = grpc.NewServer(&grpc.Config{
			Addr:   cfg.GetGRPCAddr(),
			Logger: logger,
		})
		if err != nil {
			logger.Fatal("failed to create gRPC server", zap.Error(err))
		}
	}

	reporter := monitor.NewReporter(metricsCollector, prometheus.EndpointPredict, cfg.Metrics.ReportInterval, logger)
	reporter.Start()

	// Start servers
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	if grpcServer != nil {
		go func() {
			if err := grpcServer.Start(); err != nil {
				logger.Fatal("gRPC server failed", zap.Error(err))
			}
		}()
	}

	logger.Info("anomaly simulator started",
		zap.String("http_addr", cfg.GetHTTPAddr()),
		zap.Bool("grpc_enabled", cfg.GRPC.Enabled),
		zap.String("events_backend", cfg.Events.Backend))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if grpcServer != nil {
		if err := grpcServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("gRPC server shutdown error", zap.Error(err))
		}
	}

	reporter.Stop()

	if err := eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}

	logger.Info("anomaly simulator shut down complete")
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
