package handler

import (
	"context"

	"mediarelay/shared/config"
	"mediarelay/shared/observability"
	"mediarelay/shared/observability/types"
)

// Handler is the main handler that wraps a Worker with a middleware chain.
// Transport adapters call Handle; they never talk to the worker directly.
type Handler struct {
	worker      Worker
	obs         observability.Provider
	middlewares []Middleware
	config      *config.HandlerConfig
}

// Middleware defines the interface for handler middleware.
// Middlewares wrap the handler function to add cross-cutting concerns.
type Middleware func(next HandlerFunc) HandlerFunc

// HandlerFunc is the function signature for handling requests.
type HandlerFunc func(ctx context.Context, req Request) (Response, error)

// NewHandler creates a new handler with the given worker and configuration.
// This is the low-level constructor; most callers should use the Factory.
func NewHandler(worker Worker, provider observability.Provider, cfg *config.HandlerConfig) *Handler {
	if cfg == nil {
		defaults := config.DefaultHandlerConfig()
		cfg = &defaults
	}
	return &Handler{
		worker:      worker,
		obs:         provider,
		config:      cfg,
		middlewares: []Middleware{},
	}
}

// Use adds middleware to the handler chain. Register all middleware before
// the first Handle call; the first middleware added is the outermost layer.
func (h *Handler) Use(middleware Middleware) {
	h.middlewares = append(h.middlewares, middleware)
}

// Handle processes a request through the middleware chain and worker.
// The worker name and request ID are stored in ctx for every layer below.
func (h *Handler) Handle(ctx context.Context, req Request) (Response, error) {
	handler := h.buildHandlerChain()

	ctx = types.WithRequestID(ctx, req.ID)
	ctx = types.WithWorker(ctx, h.worker.Name())

	return handler(ctx, req)
}

// buildHandlerChain applies middleware in reverse order so that the first
// middleware added is the outermost layer.
func (h *Handler) buildHandlerChain() HandlerFunc {
	handler := h.workerHandler

	for i := len(h.middlewares) - 1; i >= 0; i-- {
		handler = h.middlewares[i](handler)
	}

	return handler
}

// workerHandler is the innermost layer of the chain.
func (h *Handler) workerHandler(ctx context.Context, req Request) (Response, error) {
	return h.worker.Process(ctx, req)
}

// Health checks the health of the worker.
func (h *Handler) Health(ctx context.Context) error {
	return h.worker.Health(ctx)
}

// Config returns the handler configuration.
func (h *Handler) Config() *config.HandlerConfig {
	return h.config
}

// Worker returns the underlying worker.
func (h *Handler) Worker() Worker {
	return h.worker
}

// Provider returns the observability provider the handler logs through.
func (h *Handler) Provider() observability.Provider {
	return h.obs
}
