// Package config provides centralized configuration management for the results
// service. It loads configuration from environment variables with defaults and
// validates every setting on startup so misconfiguration fails fast.
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
	Upload   UploadConfig
	Cache    CacheConfig
	Results  ResultsConfig
	Rate     RateLimitConfig
	Metrics  MetricsConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including draining ingestion tasks (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// TrustedProxies lists CIDRs whose X-Real-IP / X-Forwarded-For headers are believed
	TrustedProxies []string `env:"SERVER_TRUSTED_PROXIES"`
}

// DatabaseConfig holds result store settings.
type DatabaseConfig struct {
	// Driver selects the store backend: postgres, sqlite or memory (default: postgres)
	Driver string `env:"DB_DRIVER" default:"postgres"`

	// URL is the connection string. A pgx URL for postgres, a DSN such as
	// "file:natijti.db" for sqlite. Unused by the memory driver.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// Migrate applies the embedded schema on startup (default: false)
	Migrate bool `env:"DB_MIGRATE" default:"false"`
}

// UploadConfig holds bulk ingestion settings.
type UploadConfig struct {
	// MaxFileSize is the maximum accepted file size. Accepts suffixes KB, MB, GB (default: 50MB)
	MaxFileSize ByteSize `env:"UPLOAD_MAX_FILE_SIZE" default:"50MB"`

	// AllowedExtensions lists accepted file extensions (default: .csv,.xlsx,.xlsm)
	AllowedExtensions []string `env:"UPLOAD_ALLOWED_EXTENSIONS" default:".csv,.xlsx,.xlsm"`

	// BatchSize is the number of rows persisted per commit (default: 100)
	BatchSize int `env:"UPLOAD_BATCH_SIZE" default:"100"`

	// MaxConcurrent is the number of ingestion tasks allowed to run at once (default: 4)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a submission waits for a task slot (default: 5s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"5s"`

	// MaxTaskErrors caps the stored error messages per task (default: 1000)
	MaxTaskErrors int `env:"UPLOAD_MAX_TASK_ERRORS" default:"1000"`

	// MaxRetainedTasks caps the in-memory task registry (default: 500)
	MaxRetainedTasks int `env:"UPLOAD_MAX_RETAINED_TASKS" default:"500"`

	// TaskRetention is how long finished tasks stay pollable (default: 1h)
	TaskRetention time.Duration `env:"UPLOAD_TASK_RETENTION" default:"1h"`

	// JanitorInterval is how often expired tasks are swept (default: 5m)
	JanitorInterval time.Duration `env:"UPLOAD_JANITOR_INTERVAL" default:"5m"`
}

// CacheConfig holds read-path cache settings.
type CacheConfig struct {
	// RedisURL selects the redis backend; empty uses the in-process cache
	RedisURL string `env:"REDIS_URL"`

	// ResultsTTL is the lifetime of cached search pages (default: 1h)
	ResultsTTL time.Duration `env:"CACHE_TTL_RESULTS" default:"1h"`

	// StatsTTL is the lifetime of cached session statistics (default: 2h)
	StatsTTL time.Duration `env:"CACHE_TTL_STATS" default:"2h"`
}

// ResultsConfig holds public search settings.
type ResultsConfig struct {
	// DefaultPageSize is used when a search omits size (default: 50)
	DefaultPageSize int `env:"RESULTS_DEFAULT_PAGE_SIZE" default:"50"`

	// MaxPageSize caps the search page size (default: 1000)
	MaxPageSize int `env:"RESULTS_MAX_PAGE_SIZE" default:"1000"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 300)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"300"`

	// UploadLimit is requests per minute for upload endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	// Enabled mounts the scrape endpoint (default: true)
	Enabled bool `env:"METRICS_ENABLED" default:"true"`

	// Path is the scrape endpoint path (default: /metrics)
	Path string `env:"METRICS_PATH" default:"/metrics"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// ByteSize is a size in bytes that accepts KB/MB/GB suffixes when loaded.
type ByteSize int64

// Int64 returns the size as a plain int64.
func (b ByteSize) Int64() int64 { return int64(b) }

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
