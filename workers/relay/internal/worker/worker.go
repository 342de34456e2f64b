// Package worker adapts the relay services to handler.Worker.
package worker

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"mediarelay/shared/handler"
	"mediarelay/shared/observability/types"
	"mediarelay/workers/relay/internal/domain"
)

// ResponseHeaders are set on every /download response. The container is
// not probed, so type and filename are fixed.
var ResponseHeaders = map[string]string{
	"Content-Type":           "video/mp4",
	"Content-Disposition":    `attachment; filename="video.mp4"`,
	"Cache-Control":          "no-store",
	"X-Content-Type-Options": "nosniff",
}

// InfoExecutor runs a metadata request.
type InfoExecutor interface {
	Execute(ctx context.Context, requestID string, req domain.InfoRequest) (*domain.MediaMetadata, error)
}

// DownloadExecutor starts a download stream.
type DownloadExecutor interface {
	Execute(ctx context.Context, requestID string, req domain.DownloadRequest) (domain.MediaStream, error)
}

// InfoWorker serves POST /info.
type InfoWorker struct {
	service InfoExecutor
	binary  string
	logger  types.Logger
	metrics types.Metrics
}

// NewInfoWorker creates an InfoWorker. binary is checked by Health.
func NewInfoWorker(service InfoExecutor, binary string, logger types.Logger, metrics types.Metrics) *InfoWorker {
	return &InfoWorker{
		service: service,
		binary:  binary,
		logger:  logger,
		metrics: metrics,
	}
}

// Name returns the worker name
func (w *InfoWorker) Name() string {
	return "info"
}

// Process handles metadata requests
func (w *InfoWorker) Process(ctx context.Context, request handler.Request) (handler.Response, error) {
	w.metrics.StartOperation("worker_process")
	defer w.metrics.EndOperation("worker_process")

	startTime := time.Now()
	defer func() {
		w.metrics.RecordDuration("worker_process", time.Since(startTime).Seconds())
	}()

	var req domain.InfoRequest
	if err := request.Unmarshal(&req); err != nil {
		w.metrics.RecordError("worker_process", "invalid_payload")
		return invalidPayload(request.ID, err), nil
	}

	metadata, err := w.service.Execute(ctx, request.ID, req)
	if err != nil {
		w.metrics.RecordError("worker_process", categorize(err))
		w.logger.Warn(ctx, "Info request failed", types.Fields{
			"request_id": request.ID,
			"url":        req.URL,
			"error":      err.Error(),
		})
		return errorResponse(request.ID, err, "Failed to fetch video info"), nil
	}

	response, err := handler.NewSuccessResponse(request.ID, metadata)
	if err != nil {
		w.metrics.RecordError("worker_process", "response_creation")
		return handler.NewErrorResponse(
			request.ID,
			handler.CodeInternal,
			"Failed to create response",
			err.Error(),
		), nil
	}

	w.metrics.RecordSuccess("worker_process")
	return response, nil
}

// Health reports whether the extractor binary can be found.
func (w *InfoWorker) Health(ctx context.Context) error {
	return checkBinary(w.binary)
}

// DownloadWorker serves /download.
type DownloadWorker struct {
	service DownloadExecutor
	binary  string
	logger  types.Logger
	metrics types.Metrics
}

// NewDownloadWorker creates a DownloadWorker. binary is checked by Health.
func NewDownloadWorker(service DownloadExecutor, binary string, logger types.Logger, metrics types.Metrics) *DownloadWorker {
	return &DownloadWorker{
		service: service,
		binary:  binary,
		logger:  logger,
		metrics: metrics,
	}
}

// Name returns the worker name
func (w *DownloadWorker) Name() string {
	return "download"
}

// Process starts the relay and hands its stream to the transport. The
// format_id query parameter takes precedence over the body field.
func (w *DownloadWorker) Process(ctx context.Context, request handler.Request) (handler.Response, error) {
	var req domain.DownloadRequest
	if err := request.Unmarshal(&req); err != nil {
		w.metrics.RecordError("worker_process", "invalid_payload")
		return invalidPayload(request.ID, err), nil
	}

	if formatID, ok := request.GetMetadata("query_format_id"); ok && strings.TrimSpace(formatID) != "" {
		req.FormatID = formatID
	}

	stream, err := w.service.Execute(ctx, request.ID, req)
	if err != nil {
		w.metrics.RecordError("worker_process", categorize(err))
		w.logger.Warn(ctx, "Download could not start", types.Fields{
			"request_id": request.ID,
			"url":        req.URL,
			"error":      err.Error(),
		})
		return errorResponse(request.ID, err, domain.DownloadFailedMessage), nil
	}

	w.metrics.RecordSuccess("worker_process")
	return handler.NewStreamResponse(request.ID, stream, copyHeaders(ResponseHeaders)), nil
}

// Health reports whether the downloader binary can be found.
func (w *DownloadWorker) Health(ctx context.Context) error {
	return checkBinary(w.binary)
}

func checkBinary(binary string) error {
	if _, err := exec.LookPath(binary); err != nil {
		return fmt.Errorf("yt-dlp binary %q not available: %w", binary, err)
	}
	return nil
}

func invalidPayload(requestID string, err error) handler.Response {
	return handler.NewErrorResponse(
		requestID,
		domain.CodeInvalidPayload,
		"Invalid request body",
		err.Error(),
	)
}

// errorResponse converts a service error. Domain errors keep their code and
// message; anything else becomes an internal error with fallback as message.
func errorResponse(requestID string, err error, fallback string) handler.Response {
	if de, ok := domain.AsDomainError(err); ok {
		resp := handler.NewErrorResponse(requestID, de.Code, de.Message, de.Error())
		resp.Error.Retryable = de.Retryable
		return resp
	}
	return handler.NewErrorResponse(requestID, handler.CodeInternal, fallback, err.Error())
}

// categorize categorizes errors for metrics tracking
func categorize(err error) string {
	if de, ok := domain.AsDomainError(err); ok {
		switch de.Code {
		case domain.CodeInvalidURL:
			return "invalid_url"
		case domain.CodeAuthRequired:
			return "auth_required"
		case domain.CodeExtractionFailed:
			return "extraction_failed"
		case domain.CodeSpawnFailed:
			return "spawn_failed"
		case domain.CodeBusy:
			return "busy"
		default:
			return "domain_error"
		}
	}
	return "processing_error"
}

func copyHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
