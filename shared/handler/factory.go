package handler

import (
	"mediarelay/shared/config"
	"mediarelay/shared/observability"

	"golang.org/x/time/rate"
)

// Factory builds handlers with the standard middleware stack.
type Factory struct {
	worker     Worker
	provider   observability.Provider
	handlerCfg config.HandlerConfig
	limiter    *rate.Limiter
}

// NewFactory creates a new handler factory with default handler settings.
func NewFactory(worker Worker, provider observability.Provider) *Factory {
	return &Factory{
		worker:     worker,
		provider:   provider,
		handlerCfg: config.DefaultHandlerConfig(),
	}
}

// WithHandlerConfig sets custom handler configuration.
func (f *Factory) WithHandlerConfig(cfg config.HandlerConfig) *Factory {
	f.handlerCfg = cfg
	return f
}

// WithRateLimiter makes handlers draw from limiter. Pass the same limiter to
// several factories to share one budget.
func (f *Factory) WithRateLimiter(limiter *rate.Limiter) *Factory {
	f.limiter = limiter
	return f
}

// Create creates a handler for request/response workers.
func (f *Factory) Create() *Handler {
	cfg := f.handlerCfg
	if cfg.Platform == "" {
		cfg.Platform = "http"
	}

	handler := NewHandler(f.worker, f.provider, &cfg)
	f.applyDefaultMiddleware(handler)

	return handler
}

// CreateStreaming creates a handler for workers that return a Stream.
// The processing timeout is never applied: the stream outlives the chain.
func (f *Factory) CreateStreaming() *Handler {
	cfg := f.handlerCfg
	cfg.Timeout = 0
	if cfg.Platform == "" {
		cfg.Platform = "http"
	}

	handler := NewHandler(f.worker, f.provider, &cfg)
	f.applyDefaultMiddleware(handler)

	return handler
}

// applyDefaultMiddleware adds the standard middleware stack, outermost first:
// recovery, rate limit, timeout, tracing, metrics, logging, validation.
func (f *Factory) applyDefaultMiddleware(handler *Handler) {
	cfg := handler.Config()

	handler.Use(RecoveryMiddleware(f.provider))

	if f.limiter != nil {
		handler.Use(RateLimitMiddleware(f.limiter))
	}

	if cfg.Timeout > 0 {
		handler.Use(TimeoutMiddleware(cfg.Timeout))
	}

	if cfg.EnableTracing {
		handler.Use(TracingMiddleware())
	}

	if cfg.EnableMetrics {
		handler.Use(MetricsMiddleware(f.provider))
	}

	handler.Use(LoggingMiddleware(f.provider))
	handler.Use(ValidationMiddleware())
}
