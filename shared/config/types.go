package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Core settings
	Environment string
	ServiceName string
	Version     string
	LogLevel    string

	// Component configurations
	HTTP        HTTPConfig
	Handler     HandlerConfig
	RateLimit   RateLimitConfig
	Extractor   ExtractorConfig
	Relay       RelayConfig
	Credentials CredentialsConfig
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Host              string
	Port              int
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Addr returns the listen address in host:port form.
func (c HTTPConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// HandlerConfig holds handler configuration
type HandlerConfig struct {
	// Timeout bounds non-streaming request processing. Zero disables it.
	Timeout        time.Duration
	MaxRequestSize int64
	EnableHealth   bool
	EnableMetrics  bool
	EnableTracing  bool
	Platform       string
}

// RateLimitConfig configures the token bucket shared by all API requests.
type RateLimitConfig struct {
	// RequestsPerSecond is the refill rate; zero disables limiting
	RequestsPerSecond float64

	// BurstSize is the token bucket size
	BurstSize int
}

// Enabled reports whether rate limiting is switched on.
func (c RateLimitConfig) Enabled() bool {
	return c.RequestsPerSecond > 0
}

// ExtractorConfig configures the metadata probe.
type ExtractorConfig struct {
	Binary  string
	Timeout time.Duration
}

// RelayConfig configures the download relay child processes.
type RelayConfig struct {
	Binary        string
	DefaultFormat string
	ChunkSize     int
	// Timeout bounds a child's total runtime. Zero means no bound.
	Timeout       time.Duration
	WaitDelay     time.Duration
	MaxConcurrent int
}

// CredentialsConfig configures where cookie artifacts are written.
type CredentialsConfig struct {
	// Dir is the artifact directory; empty means os.TempDir()
	Dir string
}

// Validate validates the entire configuration
func (c *Config) Validate() error {
	var errors []string

	if c.ServiceName == "" {
		errors = append(errors, "SERVICE_NAME is required")
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errors = append(errors, "PORT must be between 1 and 65535")
	}
	if c.HTTP.ShutdownTimeout < 0 {
		errors = append(errors, "HTTP_SHUTDOWN_TIMEOUT cannot be negative")
	}
	if c.Handler.Timeout < 0 {
		errors = append(errors, "HANDLER_TIMEOUT cannot be negative")
	}
	if c.Handler.MaxRequestSize <= 0 {
		errors = append(errors, "HANDLER_MAX_REQUEST_SIZE must be positive")
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		errors = append(errors, "RATE_LIMIT_RPS cannot be negative")
	}
	if c.RateLimit.BurstSize < 0 {
		errors = append(errors, "RATE_LIMIT_BURST cannot be negative")
	}
	if c.Extractor.Binary == "" {
		errors = append(errors, "YTDLP_PATH is required")
	}
	if c.Extractor.Timeout < 0 {
		errors = append(errors, "EXTRACTOR_TIMEOUT cannot be negative")
	}
	if c.Relay.ChunkSize <= 0 {
		errors = append(errors, "RELAY_CHUNK_SIZE must be positive")
	}
	if c.Relay.Timeout < 0 {
		errors = append(errors, "RELAY_TIMEOUT cannot be negative")
	}
	if c.Relay.WaitDelay < 0 {
		errors = append(errors, "RELAY_WAIT_DELAY cannot be negative")
	}
	if c.Relay.MaxConcurrent < 0 {
		errors = append(errors, "RELAY_MAX_CONCURRENT cannot be negative")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// applyDefaults fills values that depend on other settings
func (c *Config) applyDefaults() {
	if c.Relay.Binary == "" {
		c.Relay.Binary = c.Extractor.Binary
	}
	if c.Relay.DefaultFormat == "" {
		c.Relay.DefaultFormat = DefaultFormatSelector
	}
	if c.RateLimit.Enabled() && c.RateLimit.BurstSize == 0 {
		c.RateLimit.BurstSize = int(c.RateLimit.RequestsPerSecond) + 1
	}

	if c.IsLocal() {
		c.Handler.EnableTracing = false
	}
}

// Environment detection methods

// IsLocal returns true if running in local/development environment
func (c *Config) IsLocal() bool {
	env := strings.ToLower(c.Environment)
	return env == "local" || env == "development" || env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Environment)
	return env == "production" || env == "prod"
}

// IsTest returns true if running in test environment
func (c *Config) IsTest() bool {
	env := strings.ToLower(c.Environment)
	return env == "test" || env == "testing"
}
