package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mediarelay/shared/handler"
	hmocks "mediarelay/shared/handler/mocks"
	obmocks "mediarelay/shared/observability/mocks"
	"mediarelay/workers/relay/internal/domain"
	"mediarelay/workers/relay/internal/stubbin"
	"mediarelay/workers/relay/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func request(reqType, payload string) handler.Request {
	return handler.Request{
		ID:       "req-1",
		Type:     reqType,
		Payload:  []byte(payload),
		Metadata: map[string]string{},
	}
}

func TestInfoWorker_Name(t *testing.T) {
	w := NewInfoWorker(&mocks.MockInfoService{}, "yt-dlp", obmocks.NewNopLogger(), obmocks.NewNopMetrics())

	assert.Equal(t, "info", w.Name())
}

func TestInfoWorker_Process(t *testing.T) {
	ctx := context.Background()

	t.Run("successful probe", func(t *testing.T) {
		title := "Stub Clip"
		svc := &mocks.MockInfoService{}
		svc.On("Execute", mock.Anything, "req-1", domain.InfoRequest{URL: "https://video.example/abc"}).
			Return(&domain.MediaMetadata{
				Title: &title,
				Formats: []domain.FormatDescriptor{
					{FormatID: "22", Ext: "mp4", Resolution: "1280x720"},
				},
			}, nil)

		metrics := obmocks.NewNopMetrics()
		w := NewInfoWorker(svc, "yt-dlp", obmocks.NewNopLogger(), metrics)

		resp, err := w.Process(ctx, request("info", `{"url":"https://video.example/abc","cookies":null}`))

		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.JSONEq(t, `{
			"title": "Stub Clip",
			"thumbnail": null,
			"duration": null,
			"formats": [{"format_id":"22","ext":"mp4","resolution":"1280x720","filesize":null,"note":null}]
		}`, string(resp.Data))
		metrics.AssertCalled(t, "RecordSuccess", "worker_process")
		svc.AssertExpectations(t)
	})

	t.Run("invalid payload", func(t *testing.T) {
		svc := &mocks.MockInfoService{}
		w := NewInfoWorker(svc, "yt-dlp", obmocks.NewNopLogger(), obmocks.NewNopMetrics())

		resp, err := w.Process(ctx, request("info", `{"url": 42}`))

		require.NoError(t, err)
		require.NotNil(t, resp.Error)
		assert.Equal(t, domain.CodeInvalidPayload, resp.Error.Code)
		svc.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("auth required keeps the fixed message", func(t *testing.T) {
		svc := &mocks.MockInfoService{}
		svc.On("Execute", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, domain.AuthRequired(errors.New("Sign in to confirm you're not a bot")))
		w := NewInfoWorker(svc, "yt-dlp", obmocks.NewNopLogger(), obmocks.NewNopMetrics())

		resp, err := w.Process(ctx, request("info", `{"url":"u"}`))

		require.NoError(t, err)
		require.NotNil(t, resp.Error)
		assert.Equal(t, domain.CodeAuthRequired, resp.Error.Code)
		assert.Equal(t, domain.AuthRequiredMessage, resp.Error.Message)
	})

	t.Run("unexpected error", func(t *testing.T) {
		svc := &mocks.MockInfoService{}
		svc.On("Execute", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("boom"))
		w := NewInfoWorker(svc, "yt-dlp", obmocks.NewNopLogger(), obmocks.NewNopMetrics())

		resp, err := w.Process(ctx, request("info", `{"url":"u"}`))

		require.NoError(t, err)
		require.NotNil(t, resp.Error)
		assert.Equal(t, handler.CodeInternal, resp.Error.Code)
		assert.Equal(t, "Failed to fetch video info", resp.Error.Message)
	})
}

func TestDownloadWorker_Process(t *testing.T) {
	ctx := context.Background()

	t.Run("stream response with fixed headers", func(t *testing.T) {
		stream := &hmocks.ChunkStream{}
		svc := &mocks.MockDownloadService{}
		svc.On("Execute", mock.Anything, "req-1", domain.DownloadRequest{URL: "https://video.example/abc"}).
			Return(stream, nil)
		w := NewDownloadWorker(svc, "yt-dlp", obmocks.NewNopLogger(), obmocks.NewNopMetrics())

		resp, err := w.Process(ctx, request("download", `{"url":"https://video.example/abc","cookies":null}`))

		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.True(t, resp.IsStream())
		assert.Same(t, stream, resp.Stream)
		assert.Equal(t, "video/mp4", resp.Headers["Content-Type"])
		assert.Equal(t, `attachment; filename="video.mp4"`, resp.Headers["Content-Disposition"])

		resp.Headers["Content-Type"] = "changed"
		assert.Equal(t, "video/mp4", ResponseHeaders["Content-Type"])
	})

	t.Run("query format_id wins over body", func(t *testing.T) {
		svc := &mocks.MockDownloadService{}
		svc.On("Execute", mock.Anything, mock.Anything, mock.MatchedBy(func(r domain.DownloadRequest) bool {
			return r.FormatID == "22"
		})).Return(&hmocks.ChunkStream{}, nil)
		w := NewDownloadWorker(svc, "yt-dlp", obmocks.NewNopLogger(), obmocks.NewNopMetrics())

		req := request("download", `{"url":"u","format_id":"18"}`)
		req.SetMetadata("query_format_id", "22")
		_, err := w.Process(ctx, req)

		require.NoError(t, err)
		svc.AssertExpectations(t)
	})

	t.Run("spawn failure", func(t *testing.T) {
		svc := &mocks.MockDownloadService{}
		svc.On("Execute", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, domain.SpawnFailed(errors.New("fork/exec /usr/bin/yt-dlp: permission denied")))
		w := NewDownloadWorker(svc, "yt-dlp", obmocks.NewNopLogger(), obmocks.NewNopMetrics())

		resp, err := w.Process(ctx, request("download", `{"url":"u"}`))

		require.NoError(t, err)
		assert.False(t, resp.IsStream())
		require.NotNil(t, resp.Error)
		assert.Equal(t, domain.CodeSpawnFailed, resp.Error.Code)
		assert.Equal(t, "Download failed", resp.Error.Message)
	})

	t.Run("busy is retryable", func(t *testing.T) {
		svc := &mocks.MockDownloadService{}
		svc.On("Execute", mock.Anything, mock.Anything, mock.Anything).Return(nil, domain.ErrBusy)
		w := NewDownloadWorker(svc, "yt-dlp", obmocks.NewNopLogger(), obmocks.NewNopMetrics())

		resp, err := w.Process(ctx, request("download", `{"url":"u"}`))

		require.NoError(t, err)
		require.NotNil(t, resp.Error)
		assert.Equal(t, domain.CodeBusy, resp.Error.Code)
		assert.True(t, resp.Error.Retryable)
	})
}

func TestWorkers_Health(t *testing.T) {
	bin := stubbin.Write(t, "exit 0")

	info := NewInfoWorker(&mocks.MockInfoService{}, bin, obmocks.NewNopLogger(), obmocks.NewNopMetrics())
	download := NewDownloadWorker(&mocks.MockDownloadService{}, bin, obmocks.NewNopLogger(), obmocks.NewNopMetrics())

	assert.NoError(t, info.Health(context.Background()))
	assert.NoError(t, download.Health(context.Background()))

	missing := filepath.Join(t.TempDir(), "yt-dlp")
	broken := NewDownloadWorker(&mocks.MockDownloadService{}, missing, obmocks.NewNopLogger(), obmocks.NewNopMetrics())
	err := broken.Health(context.Background())
	assert.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCategorize(t *testing.T) {
	tests := map[string]error{
		"invalid_url":       domain.ErrInvalidURL,
		"auth_required":     domain.AuthRequired(nil),
		"extraction_failed": domain.ExtractionFailed("x", nil),
		"spawn_failed":      domain.SpawnFailed(nil),
		"busy":              domain.ErrBusy,
		"domain_error":      domain.NewDomainError("OTHER", "x", nil, false),
		"processing_error":  errors.New("plain"),
	}

	for want, err := range tests {
		assert.Equal(t, want, categorize(err))
	}
}
