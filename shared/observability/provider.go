package observability

import (
	"fmt"
	"io"
	"os"
	"sync"

	"mediarelay/shared/observability/logger"
	"mediarelay/shared/observability/metrics"
	"mediarelay/shared/observability/types"

	"github.com/prometheus/client_golang/prometheus"
)

// Type aliases so callers only need to import this package.
type (
	Logger   = types.Logger
	Metrics  = types.Metrics
	Fields   = types.Fields
	Config   = types.Config
	Provider = types.Provider
)

// DefaultProvider implements Provider.
// Loggers and recorders are created lazily on first request and cached per
// component name.
type DefaultProvider struct {
	config  *Config
	loggers map[string]Logger
	metrics map[string]Metrics
	mu      sync.RWMutex
}

// NewProvider creates a provider from config.
// A nil LogOutput becomes os.Stdout.
//
// Example:
//
//	provider := NewProvider(&Config{
//		ServiceName: "YouTube Downloader Backend",
//		Environment: "production",
//		LogLevel:    "info",
//	})
//	log := provider.Logger("relay")
func NewProvider(config *Config) Provider {
	if config.LogOutput == nil {
		config.LogOutput = os.Stdout
	}

	return &DefaultProvider{
		config:  config,
		loggers: make(map[string]Logger),
		metrics: make(map[string]Metrics),
	}
}

// Logger returns the logger for component. Entries carry the provider's
// AdditionalFields, a "component" field, and the service name
// "{ServiceName}.{component}".
func (p *DefaultProvider) Logger(component string) Logger {
	p.mu.RLock()
	if l, exists := p.loggers[component]; exists {
		p.mu.RUnlock()
		return l
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if l, exists := p.loggers[component]; exists {
		return l
	}

	fields := make(Fields, len(p.config.AdditionalFields)+1)
	for k, v := range p.config.AdditionalFields {
		fields[k] = v
	}
	fields["component"] = component

	l := logger.New(
		fmt.Sprintf("%s.%s", p.config.ServiceName, component),
		p.config.Environment,
		p.config.LogLevel,
		p.config.LogOutput,
		fields,
	)
	p.loggers[component] = l

	return l
}

// Metrics returns the metrics recorder for component, namespaced by the
// service name.
func (p *DefaultProvider) Metrics(component string) Metrics {
	p.mu.RLock()
	if m, exists := p.metrics[component]; exists {
		p.mu.RUnlock()
		return m
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if m, exists := p.metrics[component]; exists {
		return m
	}

	m := metrics.New(p.config.ServiceName, component, p.registerer())
	p.metrics[component] = m

	return m
}

// Gatherer returns the registry backing Metrics.
func (p *DefaultProvider) Gatherer() prometheus.Gatherer {
	if p.config.Registry != nil {
		return p.config.Registry
	}
	return prometheus.DefaultGatherer
}

func (p *DefaultProvider) registerer() prometheus.Registerer {
	if p.config.Registry != nil {
		return p.config.Registry
	}
	return prometheus.DefaultRegisterer
}

// Close closes LogOutput when it is an io.Closer other than os.Stdout or os.Stderr.
func (p *DefaultProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if closer, ok := p.config.LogOutput.(io.Closer); ok {
		if closer != os.Stdout && closer != os.Stderr {
			return closer.Close()
		}
	}

	return nil
}
