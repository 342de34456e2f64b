// Package mocks provides testify mocks for the relay's components.
package mocks

import (
	"context"

	"mediarelay/workers/relay/internal/domain"
	"mediarelay/workers/relay/internal/relay"

	"github.com/stretchr/testify/mock"
)

// MockInfoService is a mock implementation of the info service
type MockInfoService struct {
	mock.Mock
}

func (m *MockInfoService) Execute(ctx context.Context, requestID string, req domain.InfoRequest) (*domain.MediaMetadata, error) {
	args := m.Called(ctx, requestID, req)

	var metadata *domain.MediaMetadata
	if args.Get(0) != nil {
		metadata = args.Get(0).(*domain.MediaMetadata)
	}
	return metadata, args.Error(1)
}

// MockDownloadService is a mock implementation of the download service
type MockDownloadService struct {
	mock.Mock
}

func (m *MockDownloadService) Execute(ctx context.Context, requestID string, req domain.DownloadRequest) (domain.MediaStream, error) {
	args := m.Called(ctx, requestID, req)

	var stream domain.MediaStream
	if args.Get(0) != nil {
		stream = args.Get(0).(domain.MediaStream)
	}
	return stream, args.Error(1)
}

// MockExtractor is a mock implementation of the metadata extractor
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, url, cookiePath string) (*domain.MediaMetadata, error) {
	args := m.Called(ctx, url, cookiePath)

	var metadata *domain.MediaMetadata
	if args.Get(0) != nil {
		metadata = args.Get(0).(*domain.MediaMetadata)
	}
	return metadata, args.Error(1)
}

// MockRelay is a mock implementation of the download relay
type MockRelay struct {
	mock.Mock
}

func (m *MockRelay) Start(ctx context.Context, job relay.Job) (domain.MediaStream, error) {
	args := m.Called(ctx, job)

	var stream domain.MediaStream
	if args.Get(0) != nil {
		stream = args.Get(0).(domain.MediaStream)
	}
	return stream, args.Error(1)
}
