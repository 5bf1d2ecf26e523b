// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Assistant  AssistantConfig
	Upload     UploadConfig
	Validation ValidationConfig
	Security   SecurityConfig
	Logging    LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing a response. Bulk
	// auto-fix calls the assistant once per exception, so keep it generous.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds ordinary API requests (default: 60s).
	// File processing and auto-fix use OperationTimeout instead.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// OperationTimeout bounds one pipeline operation (default: 30m)
	OperationTimeout time.Duration `env:"SERVER_OPERATION_TIMEOUT" default:"30m"`
}

// DatabaseConfig holds the optional fix-history database settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Empty disables fix-history
	// persistence. Supports both DATABASE_URL and DB_URL.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 5)
	MaxConns int `env:"DB_MAX_CONNS" default:"5"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// RedisConfig holds the optional header mapping cache settings.
type RedisConfig struct {
	// URL is the Redis connection string. Empty disables the cache.
	URL string `env:"REDIS_URL"`

	// MappingTTL is how long a cached header mapping lives (default: 168h)
	MappingTTL time.Duration `env:"REDIS_MAPPING_TTL" default:"168h"`

	PoolSize     int           `env:"REDIS_POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

// AssistantConfig holds the completion service settings.
type AssistantConfig struct {
	// Provider selects a preset base URL and model: openai or custom (default: custom)
	Provider string `env:"ASSISTANT_PROVIDER" default:"custom"`

	// BaseURL overrides the provider's base URL.
	BaseURL string `env:"ASSISTANT_BASE_URL"`

	// APIKey is the bearer token. OPENAI_API_KEY is accepted as well.
	APIKey string `env:"ASSISTANT_API_KEY" envAlt:"OPENAI_API_KEY"`

	// Model overrides the provider's model.
	Model string `env:"ASSISTANT_MODEL"`

	// Temperature is the sampling temperature (default: 0.1)
	Temperature float64 `env:"ASSISTANT_TEMPERATURE" default:"0.1"`

	// Timeout bounds a single completion request (default: 60s)
	Timeout time.Duration `env:"ASSISTANT_TIMEOUT" default:"60s"`

	// ProvidersFile is an optional YAML file that adds or overrides presets.
	ProvidersFile string `env:"ASSISTANT_PROVIDERS_FILE"`
}

// UploadConfig holds spreadsheet upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed size of one file in bytes (default: 25MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"26214400"`

	// MaxFiles is the maximum number of files per request (default: 20)
	MaxFiles int `env:"UPLOAD_MAX_FILES" default:"20"`

	// MaxRows caps data rows read per file, 0 for no cap (default: 0)
	MaxRows int `env:"UPLOAD_MAX_ROWS" default:"0"`

	// MaxWaitTime is how long to wait while another operation runs (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`
}

// ValidationConfig holds record validation settings.
type ValidationConfig struct {
	// RequiredFields are the fields a record needs to be consolidated.
	RequiredFields []string `env:"VALIDATION_REQUIRED_FIELDS" default:"date,product_name,quantity,unit_price,total_amount"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey protects /api routes with X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys.
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
