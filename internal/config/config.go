// Package config provides centralized configuration for the conformance
// console. It loads settings from environment variables with defaults and
// validates them on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Storage  StorageConfig
	Notify   NotifyConfig
	Session  SessionConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 0 for websockets)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for API requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
// Only used when STORAGE_DRIVER is postgres.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Storage drivers.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// StorageConfig selects where datasets, schemas and mapping tables live.
type StorageConfig struct {
	// Driver is memory or postgres (default: memory)
	Driver string `env:"STORAGE_DRIVER" default:"memory"`

	// Seed loads the demo fixture on startup (default: true)
	Seed bool `env:"STORAGE_SEED" default:"true"`
}

// NotifyConfig holds settings for conformance update delivery.
type NotifyConfig struct {
	// Driver is local, redis or kafka (default: local)
	Driver string `env:"NOTIFY_DRIVER" default:"local"`

	// RedisURL is the redis server for the redis driver
	RedisURL string `env:"REDIS_URL"`

	// KafkaBrokers is a comma-separated list of seed brokers for the kafka driver
	KafkaBrokers []string `env:"KAFKA_BROKERS"`

	// Topic is the redis channel prefix or kafka topic (default: menas)
	Topic string `env:"NOTIFY_TOPIC" default:"menas"`

	// MaxAttempts is how often a subscriber is tried per event (default: 3)
	MaxAttempts int `env:"NOTIFY_MAX_ATTEMPTS" default:"3"`

	// Buffer is the in-process event buffer size (default: 256)
	Buffer int `env:"NOTIFY_BUFFER" default:"256"`
}

// SessionConfig holds rule editor settings.
type SessionConfig struct {
	// ResolveTimeout bounds a mapping table resolution (default: 10s)
	ResolveTimeout time.Duration `env:"SESSION_RESOLVE_TIMEOUT" default:"10s"`

	// CommitTimeout bounds the dataset update of a submit (default: 15s)
	CommitTimeout time.Duration `env:"SESSION_COMMIT_TIMEOUT" default:"15s"`

	// IdleTimeout expires editors nobody touched (default: 30m, 0 disables)
	IdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" default:"30m"`

	// MaxAge expires editors regardless of activity (default: 8h, 0 disables)
	MaxAge time.Duration `env:"SESSION_MAX_AGE" default:"8h"`

	// MaxConcurrentCommits bounds dataset commits in flight (default: 5)
	MaxConcurrentCommits int `env:"SESSION_MAX_COMMITS" default:"5"`

	// CleanupInterval is how often expired editors are swept (default: 1m)
	CleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" default:"1m"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey enables API key authentication on /api (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`

	// WebSocketOrigins lists origin host patterns allowed to open the live
	// update stream. Empty allows same-origin clients only.
	WebSocketOrigins []string `env:"WS_ALLOWED_ORIGINS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig holds prometheus exposition settings.
type MetricsConfig struct {
	// Enabled serves metrics on Path (default: true)
	Enabled bool `env:"METRICS_ENABLED" default:"true"`

	// Path is where metrics are served (default: /metrics)
	Path string `env:"METRICS_PATH" default:"/metrics"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
