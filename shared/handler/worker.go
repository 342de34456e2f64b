package handler

import (
	"context"
)

// Worker defines the interface that each worker must implement.
// Workers hold the business logic and stay transport-agnostic: they decode
// the request payload, do the work, and return a Response.
type Worker interface {
	// Name returns the worker name used in logs, metrics and health output.
	Name() string

	// Process handles one request. Domain failures are returned as error
	// responses with a nil error; a non-nil error means the worker itself
	// broke. A worker returning a streaming Response hands ownership of the
	// stream to the caller.
	Process(ctx context.Context, request Request) (Response, error)

	// Health verifies the worker's dependencies are usable.
	Health(ctx context.Context) error
}
