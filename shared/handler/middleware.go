package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"mediarelay/shared/config"
	"mediarelay/shared/observability"
	"mediarelay/shared/observability/types"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// LoggingMiddleware adds structured logging to request processing
func LoggingMiddleware(provider observability.Provider) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) (Response, error) {
			requestLogger := provider.Logger("handler").WithFields(types.Fields{
				"request_id": req.ID,
				"type":       req.Type,
				"source":     req.Source,
				"worker":     types.WorkerFrom(ctx),
			})

			requestLogger.Info(ctx, "Processing request", types.Fields{
				"payload_size": len(req.Payload),
			})

			start := time.Now()
			resp, err := next(ctx, req)
			duration := time.Since(start)

			switch {
			case err != nil:
				requestLogger.Error(ctx, "Request failed with error", err, types.Fields{
					"duration_ms": duration.Milliseconds(),
				})
			case !resp.Success && resp.Error != nil:
				requestLogger.Warn(ctx, "Request completed with failure", types.Fields{
					"error_code":  resp.Error.Code,
					"error_msg":   resp.Error.Message,
					"details":     resp.Error.Details,
					"duration_ms": duration.Milliseconds(),
				})
			case resp.IsStream():
				requestLogger.Info(ctx, "Request streaming started", types.Fields{
					"duration_ms": duration.Milliseconds(),
				})
			default:
				requestLogger.Info(ctx, "Request completed successfully", types.Fields{
					"duration_ms": duration.Milliseconds(),
				})
			}

			resp.Duration = duration

			return resp, err
		}
	}
}

// MetricsMiddleware records metrics for request processing
func MetricsMiddleware(provider observability.Provider) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) (Response, error) {
			metrics := provider.Metrics("handler")

			workerName := types.WorkerFrom(ctx)
			if workerName == "" {
				workerName = "unknown"
			}

			metrics.StartOperation(workerName)
			defer metrics.EndOperation(workerName)

			start := time.Now()
			resp, err := next(ctx, req)
			metrics.RecordDuration(workerName, time.Since(start).Seconds())

			if err != nil {
				metrics.RecordError(workerName, "processing_error")
			} else if !resp.Success {
				errorType := "unknown_error"
				if resp.Error != nil {
					errorType = resp.Error.Code
				}
				metrics.RecordError(workerName, errorType)
			} else {
				metrics.RecordSuccess(workerName)
			}

			return resp, err
		}
	}
}

// RecoveryMiddleware recovers from panics and returns an error response.
// It should be the outermost layer so it catches panics from every other one.
func RecoveryMiddleware(provider observability.Provider) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) (resp Response, err error) {
			defer func() {
				if r := recover(); r != nil {
					provider.Logger("handler").Error(ctx, "Panic recovered", fmt.Errorf("%v", r), types.Fields{
						"request_id": req.ID,
						"stack":      string(debug.Stack()),
					})
					provider.Metrics("handler").RecordError("panic", "panic_recovered")

					// Panic details stay in the logs
					resp = NewErrorResponse(req.ID, CodeInternal, "An internal error occurred", "")
					err = fmt.Errorf("panic recovered: %v", r)
				}
			}()

			return next(ctx, req)
		}
	}
}

// TracingMiddleware ensures each request has a trace ID for correlation.
// An incoming trace or request ID is reused; otherwise a new one is generated.
func TracingMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) (Response, error) {
			traceID := extractTraceID(req)
			if traceID == "" {
				traceID = uuid.New().String()
			}
			spanID := uuid.New().String()

			ctx = types.WithTraceID(ctx, traceID)

			req.SetMetadata("trace_id", traceID)
			req.SetMetadata("span_id", spanID)

			resp, err := next(ctx, req)

			if resp.Metadata == nil {
				resp.Metadata = make(map[string]string)
			}
			resp.Metadata["trace_id"] = traceID
			resp.Metadata["span_id"] = spanID

			return resp, err
		}
	}
}

// TimeoutMiddleware enforces a timeout on request processing.
// It must not wrap streaming workers: the context it derives is cancelled
// as soon as the chain returns, which would end the stream.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) (Response, error) {
			timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			type result struct {
				resp Response
				err  error
			}
			resultChan := make(chan result, 1)

			go func() {
				resp, err := next(timeoutCtx, req)
				resultChan <- result{resp, err}
			}()

			select {
			case res := <-resultChan:
				return res.resp, res.err

			case <-timeoutCtx.Done():
				// A late stream has no reader left; release it.
				go func() {
					if res := <-resultChan; res.resp.Stream != nil {
						_ = res.resp.Stream.Close()
					}
				}()
				return NewErrorResponse(
					req.ID,
					CodeTimeout,
					"Request processing timed out",
					fmt.Sprintf("Exceeded timeout of %v", timeout),
				), timeoutCtx.Err()
			}
		}
	}
}

// NewRateLimiter builds the token bucket shared by every handler that
// should count against the same budget. It returns nil when rate limiting
// is disabled.
func NewRateLimiter(cfg config.RateLimitConfig) *rate.Limiter {
	if !cfg.Enabled() {
		return nil
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
}

// RateLimitMiddleware rejects requests once limiter runs out of tokens.
// A nil limiter lets everything through.
func RateLimitMiddleware(limiter *rate.Limiter) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		if limiter == nil {
			return next
		}
		return func(ctx context.Context, req Request) (Response, error) {
			if !limiter.Allow() {
				return NewErrorResponse(
					req.ID,
					CodeRateLimited,
					"Too many requests",
					fmt.Sprintf("limit %.2f req/s, burst %d", float64(limiter.Limit()), limiter.Burst()),
				), nil
			}
			return next(ctx, req)
		}
	}
}

// ValidationMiddleware validates and enriches incoming requests.
func ValidationMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) (Response, error) {
			if req.ID == "" {
				req.ID = uuid.New().String()
			}

			if req.Timestamp.IsZero() {
				req.Timestamp = time.Now().UTC()
			}

			if req.Type == "" {
				return NewErrorResponse(
					req.ID,
					CodeValidation,
					"Request type is required",
					"Missing 'type' field in request",
				), nil
			}

			if len(req.Payload) == 0 {
				return NewErrorResponse(
					req.ID,
					CodeInvalidPayload,
					"Request body is required",
					"Empty payload",
				), nil
			}

			if !json.Valid(req.Payload) {
				return NewErrorResponse(
					req.ID,
					CodeInvalidPayload,
					"Invalid JSON payload",
					"Payload must be valid JSON",
				), nil
			}

			req.SetMetadata("validated_at", time.Now().UTC().Format(time.RFC3339))

			return next(ctx, req)
		}
	}
}

// extractTraceID attempts to extract trace ID from request metadata
func extractTraceID(req Request) string {
	traceKeys := []string{
		"trace_id",
		"x-trace-id",
		"x-b3-traceid",
		"x-request-id",
		"correlation-id",
	}

	for _, key := range traceKeys {
		if val, ok := req.Metadata[key]; ok && val != "" {
			return val
		}
	}

	return ""
}
