package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"mediarelay/shared/utils"

	"github.com/joho/godotenv"
)

// Provider manages configuration lifecycle and ensures singleton behavior
type Provider struct {
	config *Config
	envDir string
	mu     sync.RWMutex
	loaded bool
}

var (
	instance *Provider
	once     sync.Once
)

// GetProvider returns the singleton configuration provider instance.
// It reads .env files from the working directory.
func GetProvider() *Provider {
	once.Do(func() {
		instance = NewProvider("")
	})
	return instance
}

// NewProvider creates a standalone provider that looks for .env files in envDir.
// An empty envDir means the working directory.
func NewProvider(envDir string) *Provider {
	return &Provider{envDir: envDir}
}

// Load loads configuration from environment variables and .env files
// This should be called once at application startup
func (p *Provider) Load() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.loaded {
		return nil
	}

	if err := p.loadEnvFiles(); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}

	cfg := p.parseConfig()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	p.config = cfg
	p.loaded = true
	return nil
}

// MustLoad loads configuration and panics on error
// Use this for application initialization where errors are fatal
func (p *Provider) MustLoad() {
	if err := p.Load(); err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
}

// Get returns the current configuration
// Returns error if configuration hasn't been loaded
func (p *Provider) Get() (*Config, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.loaded || p.config == nil {
		return nil, fmt.Errorf("configuration not loaded; call Load() first")
	}

	return p.config, nil
}

// MustGet returns the configuration or panics if not loaded
func (p *Provider) MustGet() *Config {
	cfg, err := p.Get()
	if err != nil {
		panic(fmt.Sprintf("failed to get configuration: %v", err))
	}
	return cfg
}

// Reload re-parses configuration from the current environment.
// .env files are not re-read.
func (p *Provider) Reload() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cfg := p.parseConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	p.config = cfg
	p.loaded = true
	return nil
}

// IsLoaded returns whether configuration has been loaded
func (p *Provider) IsLoaded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loaded
}

// Reset clears the configuration (useful for testing)
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.config = nil
	p.loaded = false
}

// loadEnvFiles loads .env files in order of precedence
func (p *Provider) loadEnvFiles() error {
	base := filepath.Join(p.envDir, ".env")
	if err := loadIfExists(base, godotenv.Load); err != nil {
		return err
	}

	// Environment-specific values take precedence over the base file
	if env := utils.FirstEnv("", "ENVIRONMENT", "ENV"); env != "" {
		envFile := filepath.Join(p.envDir, fmt.Sprintf(".env.%s", env))
		if err := loadIfExists(envFile, godotenv.Overload); err != nil {
			return err
		}
	}

	// .env.local for local overrides (highest precedence)
	return loadIfExists(filepath.Join(p.envDir, ".env.local"), godotenv.Overload)
}

func loadIfExists(path string, load func(...string) error) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// parseConfig parses configuration from environment variables
func (p *Provider) parseConfig() *Config {
	defaults := DefaultConfig()

	cfg := &Config{
		// Core
		Environment: utils.FirstEnv(defaults.Environment, "ENVIRONMENT", "ENV"),
		ServiceName: utils.GetEnv("SERVICE_NAME", defaults.ServiceName),
		Version:     utils.GetEnv("SERVICE_VERSION", defaults.Version),
		LogLevel:    utils.GetEnv("LOG_LEVEL", defaults.LogLevel),

		// HTTP server
		HTTP: HTTPConfig{
			Host:              utils.GetEnv("HOST", defaults.HTTP.Host),
			Port:              utils.GetEnvInt("PORT", defaults.HTTP.Port),
			ReadHeaderTimeout: utils.GetEnvDuration("HTTP_READ_HEADER_TIMEOUT", defaults.HTTP.ReadHeaderTimeout),
			ShutdownTimeout:   utils.GetEnvDuration("HTTP_SHUTDOWN_TIMEOUT", defaults.HTTP.ShutdownTimeout),
		},

		// Handler
		Handler: HandlerConfig{
			Timeout:        utils.GetEnvDuration("HANDLER_TIMEOUT", defaults.Handler.Timeout),
			MaxRequestSize: utils.GetEnvInt64("HANDLER_MAX_REQUEST_SIZE", defaults.Handler.MaxRequestSize),
			EnableHealth:   utils.GetEnvBool("HANDLER_ENABLE_HEALTH", defaults.Handler.EnableHealth),
			EnableMetrics:  utils.GetEnvBool("HANDLER_ENABLE_METRICS", defaults.Handler.EnableMetrics),
			EnableTracing:  utils.GetEnvBool("HANDLER_ENABLE_TRACING", defaults.Handler.EnableTracing),
			Platform:       utils.GetEnv("HANDLER_PLATFORM", defaults.Handler.Platform),
		},

		RateLimit: RateLimitConfig{
			RequestsPerSecond: utils.GetEnvFloat64("RATE_LIMIT_RPS", 0),
			BurstSize:         utils.GetEnvInt("RATE_LIMIT_BURST", 0),
		},

		Extractor: ExtractorConfig{
			Binary:  utils.GetEnv("YTDLP_PATH", defaults.Extractor.Binary),
			Timeout: utils.GetEnvDuration("EXTRACTOR_TIMEOUT", defaults.Extractor.Timeout),
		},

		Relay: RelayConfig{
			Binary:        utils.GetEnv("RELAY_YTDLP_PATH", ""),
			DefaultFormat: utils.GetEnv("RELAY_DEFAULT_FORMAT", defaults.Relay.DefaultFormat),
			ChunkSize:     utils.GetEnvInt("RELAY_CHUNK_SIZE", defaults.Relay.ChunkSize),
			Timeout:       utils.GetEnvDuration("RELAY_TIMEOUT", defaults.Relay.Timeout),
			WaitDelay:     utils.GetEnvDuration("RELAY_WAIT_DELAY", defaults.Relay.WaitDelay),
			MaxConcurrent: utils.GetEnvInt("RELAY_MAX_CONCURRENT", defaults.Relay.MaxConcurrent),
		},

		Credentials: CredentialsConfig{
			Dir: utils.GetEnv("CREDENTIALS_DIR", ""),
		},
	}

	cfg.applyDefaults()

	return cfg
}
