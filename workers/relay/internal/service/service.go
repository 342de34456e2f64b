// Package service orchestrates one /info or /download request: credentials
// first, then the extractor or the relay, with cleanup tied to completion.
package service

import (
	"context"
	"strings"
	"time"

	"mediarelay/shared/observability/types"
	"mediarelay/workers/relay/internal/credentials"
	"mediarelay/workers/relay/internal/domain"
	"mediarelay/workers/relay/internal/relay"
)

// CredentialStore materializes optional cookie blobs.
type CredentialStore interface {
	Materialize(ctx context.Context, requestID string, blob *string) *credentials.Artifact
}

// MetadataExtractor probes a URL. cookiePath may be empty.
type MetadataExtractor interface {
	Extract(ctx context.Context, url, cookiePath string) (*domain.MediaMetadata, error)
}

// MediaRelay starts a download stream.
type MediaRelay interface {
	Start(ctx context.Context, job relay.Job) (domain.MediaStream, error)
}

// InfoService answers metadata requests.
type InfoService struct {
	credentials CredentialStore
	extractor   MetadataExtractor
	logger      types.Logger
	metrics     types.Metrics
}

// NewInfoService creates an InfoService.
func NewInfoService(store CredentialStore, extractor MetadataExtractor, logger types.Logger, metrics types.Metrics) *InfoService {
	return &InfoService{
		credentials: store,
		extractor:   extractor,
		logger:      logger,
		metrics:     metrics,
	}
}

// Execute probes req.URL. The cookie file, if any, is gone when Execute returns.
func (s *InfoService) Execute(ctx context.Context, requestID string, req domain.InfoRequest) (*domain.MediaMetadata, error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordDuration("info", time.Since(start).Seconds())
	}()

	if err := req.Validate(); err != nil {
		s.metrics.RecordError("info", "validation_error")
		return nil, err
	}

	artifact := s.credentials.Materialize(ctx, requestID, req.Cookies)
	defer artifact.Release()

	metadata, err := s.extractor.Extract(ctx, strings.TrimSpace(req.URL), artifact.Path())
	if err != nil {
		s.metrics.RecordError("info", errorType(err))
		return nil, err
	}

	s.metrics.RecordSuccess("info")
	return metadata, nil
}

// DownloadService starts download relays.
type DownloadService struct {
	credentials   CredentialStore
	relay         MediaRelay
	defaultFormat string
	logger        types.Logger
	metrics       types.Metrics
}

// NewDownloadService creates a DownloadService. defaultFormat is used when
// a request names no format.
func NewDownloadService(store CredentialStore, r MediaRelay, defaultFormat string, logger types.Logger, metrics types.Metrics) *DownloadService {
	return &DownloadService{
		credentials:   store,
		relay:         r,
		defaultFormat: defaultFormat,
		logger:        logger,
		metrics:       metrics,
	}
}

// Execute starts the relay for req. On success the returned stream owns the
// cookie file and deletes it on Close; on failure it has already been deleted.
func (s *DownloadService) Execute(ctx context.Context, requestID string, req domain.DownloadRequest) (domain.MediaStream, error) {
	if err := req.Validate(); err != nil {
		s.metrics.RecordError("download", "validation_error")
		return nil, err
	}

	artifact := s.credentials.Materialize(ctx, requestID, req.Cookies)

	job := relay.Job{
		RequestID:  requestID,
		URL:        strings.TrimSpace(req.URL),
		Format:     req.Selector(s.defaultFormat),
		CookiePath: artifact.Path(),
		Release:    artifact.Release,
	}

	stream, err := s.relay.Start(ctx, job)
	if err != nil {
		artifact.Release()
		s.metrics.RecordError("download", errorType(err))
		return nil, err
	}

	s.metrics.RecordSuccess("download")
	s.logger.Debug(ctx, "Download stream ready", types.Fields{
		"request_id": requestID,
		"format":     job.Format,
	})
	return stream, nil
}

func errorType(err error) string {
	if de, ok := domain.AsDomainError(err); ok {
		return strings.ToLower(de.Code)
	}
	return "unknown"
}
