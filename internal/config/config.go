// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables (optionally seeded from a
// .env file) with sensible defaults and validates all settings on startup to
// fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	CardDAV   CardDAVConfig
	Phonebook PhonebookConfig
	Export    ExportConfig
	History   HistoryConfig
	Server    ServerConfig
	Security  SecurityConfig
	Logging   LoggingConfig
}

// CardDAVConfig holds contact directory connection settings.
type CardDAVConfig struct {
	// URL is the CardDAV server address (required)
	URL string `env:"CARDDAV_URL" validate:"required,url"`

	// User is the account name used for basic auth (required)
	User string `env:"CARDDAV_USER" validate:"required"`

	// Password is the account password (required)
	Password string `env:"CARDDAV_PASS" validate:"required"`

	// AddressBooks limits the export to books whose name or path matches.
	// Empty exports every address book.
	AddressBooks []string `env:"CARDDAV_ADDRESS_BOOKS"`

	// Timeout is the per-request HTTP timeout (default: 30s)
	Timeout time.Duration `env:"CARDDAV_TIMEOUT" default:"30s" validate:"gt=0s"`

	// RateLimit is the maximum requests per second to the server (default: 10)
	RateLimit float64 `env:"CARDDAV_RATE_LIMIT" default:"10" validate:"gt=0"`

	// RateBurst is the token bucket burst size (default: 5)
	RateBurst int `env:"CARDDAV_RATE_BURST" default:"5" validate:"gte=1"`

	// MaxRetries is how often a failed request is retried (default: 3)
	MaxRetries int `env:"CARDDAV_MAX_RETRIES" default:"3" validate:"gte=0"`

	// FetchConcurrency is the number of parallel object downloads (default: 8)
	FetchConcurrency int `env:"CARDDAV_FETCH_CONCURRENCY" default:"8" validate:"gte=1"`
}

// PhonebookConfig holds destination file settings.
type PhonebookConfig struct {
	// Path is the phonebook file to write (required).
	// PHONER_DIR is accepted for compatibility with older setups.
	Path string `env:"PHONEBOOK_LOC" envAlt:"PHONER_DIR" validate:"required"`

	// LineEnding is native, crlf or lf (default: native)
	LineEnding string `env:"PHONEBOOK_LINE_ENDING" default:"native" validate:"oneof=native crlf lf"`
}

// ExportConfig holds export run settings.
type ExportConfig struct {
	// Interval is how often serve mode re-exports (default: 1h)
	Interval time.Duration `env:"EXPORT_INTERVAL" default:"1h" validate:"gt=0s"`

	// MaxWait is how long a trigger waits for a running export (default: 5s)
	MaxWait time.Duration `env:"EXPORT_MAX_WAIT" default:"5s" validate:"gte=0s"`

	// ParseConcurrency bounds parallel vCard parsing; 0 uses GOMAXPROCS
	ParseConcurrency int `env:"PARSE_CONCURRENCY" default:"0" validate:"gte=0"`
}

// HistoryConfig holds export run history settings.
type HistoryConfig struct {
	// DatabaseURL enables the PostgreSQL history store when set
	DatabaseURL string `env:"HISTORY_DATABASE_URL"`

	// Limit is the number of runs kept in memory and listed by default (default: 50)
	Limit int `env:"HISTORY_LIMIT" default:"50" validate:"gte=1"`
}

// ServerConfig holds HTTP server settings for serve mode.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080" validate:"min=1,max=65535"`

	// RequestTimeout is the middleware timeout for requests (default: 2m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"2m" validate:"gt=0s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 15s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"15s" validate:"gt=0s"`

	// RateLimit is the number of requests per minute allowed per client IP (default: 100)
	RateLimit int `env:"SERVER_RATE_LIMIT" default:"100" validate:"gte=1"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// APIKeys is a comma-separated list of keys accepted for POST /api/export.
	// Empty disables the check.
	APIKeys []string `env:"SERVER_API_KEYS"`

	// TrustedProxies lists CIDRs whose X-Real-IP / X-Forwarded-For headers
	// are believed. Empty trusts no proxy.
	TrustedProxies []string `env:"SERVER_TRUSTED_PROXIES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text" validate:"oneof=text json"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RequireAPIKey reports whether export triggers must present an API key.
func (c *SecurityConfig) RequireAPIKey() bool {
	return len(c.APIKeys) > 0
}
