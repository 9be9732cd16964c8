// Package config provides centralized configuration management for the import
// engine. It loads configuration from environment variables with sensible
// defaults and validates all settings on startup to fail fast on
// misconfiguration.
package config

import (
	"strconv"
	"time"

	"github.com/JonMunkholm/ledgerimport/internal/core"
)

// Ingest modes.
const (
	IngestHTTP     = "http"
	IngestPostgres = "postgres"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Import   ImportConfig
	Ingest   IngestConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Sessions SessionConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-streaming requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
// Without a URL, presets and run history are disabled.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// Migrate applies embedded schema migrations on startup (default: true)
	Migrate bool `env:"DB_MIGRATE" default:"true"`
}

// UploadConfig holds file upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum accepted file size; accepts suffixes KB, MB, GB (default: 10MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"10MB" unit:"bytes"`
}

// ImportConfig holds batch import settings.
type ImportConfig struct {
	// BatchSize is the number of records per ingestion request (default: 10)
	BatchSize int `env:"IMPORT_BATCH_SIZE" default:"10"`

	// BatchTimeout bounds a single batch submission (default: 30s)
	BatchTimeout time.Duration `env:"IMPORT_BATCH_TIMEOUT" default:"30s"`

	// RunTimeout bounds a whole import run (default: 30m)
	RunTimeout time.Duration `env:"IMPORT_RUN_TIMEOUT" default:"30m"`

	// MaxConcurrent is the maximum number of imports running at once (default: 5)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"5"`

	// MaxWait is how long a start request waits for a free slot (default: 10s)
	MaxWait time.Duration `env:"IMPORT_MAX_WAIT" default:"10s"`

	// ProductName prefixes template file names (default: ledger)
	ProductName string `env:"IMPORT_PRODUCT_NAME" default:"ledger"`
}

// IngestConfig selects where batches are delivered.
type IngestConfig struct {
	// Mode is "http" (per-kind endpoint) or "postgres" (staging table) (default: http)
	Mode string `env:"INGEST_MODE" default:"http"`

	// BaseURL is prefixed to each kind's endpoint path in http mode
	BaseURL string `env:"INGEST_BASE_URL"`

	// Token is sent as a bearer token in http mode
	Token string `env:"INGEST_TOKEN"`

	// Timeout caps one HTTP exchange (default: 30s)
	Timeout time.Duration `env:"INGEST_TIMEOUT" default:"30s"`

	// PostgresKinds are staged in Postgres even in http mode (comma-separated)
	PostgresKinds []string `env:"INGEST_POSTGRES_KINDS"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for upload endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey rejects requests without a valid X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`

	// DefaultTenant is used when a request carries no X-Tenant-ID (default: default)
	DefaultTenant string `env:"DEFAULT_TENANT" default:"default"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// SessionConfig holds import session housekeeping settings.
type SessionConfig struct {
	// IdleTTL discards sessions not touched for this long (default: 30m)
	IdleTTL time.Duration `env:"SESSION_IDLE_TTL" default:"30m"`

	// ReapInterval is how often idle sessions are checked (default: 1m)
	ReapInterval time.Duration `env:"SESSION_REAP_INTERVAL" default:"1m"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// ServiceConfig converts the import settings for core.NewService.
func (c *Config) ServiceConfig() core.ServiceConfig {
	return core.ServiceConfig{
		BatchSize:      c.Import.BatchSize,
		BatchTimeout:   c.Import.BatchTimeout,
		RunTimeout:     c.Import.RunTimeout,
		MaxFileSize:    c.Upload.MaxFileSize,
		MaxConcurrent:  c.Import.MaxConcurrent,
		MaxWait:        c.Import.MaxWait,
		SessionIdleTTL: c.Sessions.IdleTTL,
		ProductName:    c.Import.ProductName,
	}
}

// HasDatabase reports whether a database is configured.
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}
