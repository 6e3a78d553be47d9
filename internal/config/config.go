package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the anomaly simulator service
type Config struct {
	// Server configuration
	HTTPHost string `env:"APP_HTTP_HOST" envDefault:"0.0.0.0"`
	HTTPPort int    `env:"APP_HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Prediction simulation
	Predict PredictConfig

	// Metrics exposition
	Metrics MetricsConfig

	// Prediction event fan-out
	Events EventsConfig

	// Redis configuration, used by the redis events backend
	Redis RedisConfig

	// gRPC health server
	GRPC GRPCConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// PredictConfig holds the simulated inference parameters
type PredictConfig struct {
	MinLatencyMS float64 `env:"PREDICT_MIN_LATENCY_MS" envDefault:"50"`
	MaxLatencyMS float64 `env:"PREDICT_MAX_LATENCY_MS" envDefault:"300"`

	// Seed for the random source; 0 seeds from the clock
	Seed int64 `env:"PREDICT_SEED" envDefault:"0"`
}

// MetricsConfig holds metrics registry configuration
type MetricsConfig struct {
	RuntimeCollectors bool          `env:"METRICS_RUNTIME_COLLECTORS" envDefault:"true"`
	ReportInterval    time.Duration `env:"METRICS_REPORT_INTERVAL" envDefault:"60s"`
}

// EventsConfig holds event bus configuration
type EventsConfig struct {
	Backend       string `env:"EVENTS_BACKEND" envDefault:"memory"`
	Topic         string `env:"EVENTS_TOPIC" envDefault:"prediction.events"`
	StreamEnabled bool   `env:"EVENTS_STREAM_ENABLED" envDefault:"true"`

	// Redis Streams settings
	KeyPrefix     string `env:"EVENTS_KEY_PREFIX" envDefault:"anomalysim"`
	MaxLen        int64  `env:"EVENTS_MAX_LEN" envDefault:"10000"`
	ConsumerGroup string `env:"EVENTS_CONSUMER_GROUP" envDefault:"anomalysim-stream"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// GRPCConfig holds gRPC health server configuration
type GRPCConfig struct {
	Enabled bool `env:"GRPC_ENABLED" envDefault:"false"`
	Port    int  `env:"GRPC_PORT" envDefault:"9090"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Event backends
const (
	EventsBackendMemory = "memory"
	EventsBackendRedis  = "redis"
)

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPC.Enabled && (c.GRPC.Port < 1 || c.GRPC.Port > 65535) {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPC.Port)
	}

	// Validate latency window
	if c.Predict.MinLatencyMS < 0 {
		return fmt.Errorf("minimum latency must not be negative: %v", c.Predict.MinLatencyMS)
	}
	if c.Predict.MaxLatencyMS <= c.Predict.MinLatencyMS {
		return fmt.Errorf("maximum latency %v must exceed minimum latency %v",
			c.Predict.MaxLatencyMS, c.Predict.MinLatencyMS)
	}

	if c.Metrics.ReportInterval < 0 {
		return fmt.Errorf("metrics report interval must not be negative")
	}

	// Validate events config
	switch c.Events.Backend {
	case EventsBackendMemory:
	case EventsBackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required for the redis events backend")
		}
		if c.Events.MaxLen < 1 {
			return fmt.Errorf("events max length must be at least 1")
		}
	default:
		return fmt.Errorf("unsupported events backend: %s (must be memory or redis)", c.Events.Backend)
	}
	if c.Events.Topic == "" {
		return fmt.Errorf("events topic is required")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return net.JoinHostPort(c.HTTPHost, strconv.Itoa(c.HTTPPort))
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPC.Port)
}
