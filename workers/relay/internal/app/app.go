// Package app assembles the relay's HTTP surface from configuration.
package app

import (
	"net/http"

	"mediarelay/shared/config"
	"mediarelay/shared/handler"
	"mediarelay/shared/handler/platforms"
	"mediarelay/shared/observability"
	"mediarelay/workers/relay/internal/credentials"
	"mediarelay/workers/relay/internal/domain"
	"mediarelay/workers/relay/internal/extractor"
	"mediarelay/workers/relay/internal/relay"
	"mediarelay/workers/relay/internal/service"
	"mediarelay/workers/relay/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusCodes maps the relay's error codes to HTTP statuses.
var StatusCodes = map[string]int{
	domain.CodeInvalidURL:       http.StatusBadRequest,
	domain.CodeExtractionFailed: http.StatusBadRequest,
	domain.CodeAuthRequired:     http.StatusBadRequest,
	domain.CodeInvalidPayload:   http.StatusUnprocessableEntity,
	domain.CodeSpawnFailed:      http.StatusInternalServerError,
	domain.CodeBusy:             http.StatusServiceUnavailable,
}

// App is the assembled service.
type App struct {
	Adapter *platforms.HTTPAdapter
	Relay   *relay.Relay
}

// New wires credentials, extractor and relay into the /info and /download
// routes. Both routes draw from one rate limiter.
func New(cfg *config.Config, provider observability.Provider) *App {
	store := credentials.NewMaterializer(
		cfg.Credentials.Dir,
		provider.Logger("credentials"),
		provider.Metrics("credentials"),
	)

	probe := extractor.New(cfg.Extractor, provider.Logger("extractor"), provider.Metrics("extractor"))
	downloader := relay.New(cfg.Relay, provider.Logger("relay"), provider.Metrics("relay"))

	infoService := service.NewInfoService(store, probe, provider.Logger("service.info"), provider.Metrics("service"))
	downloadService := service.NewDownloadService(
		store,
		downloader,
		cfg.Relay.DefaultFormat,
		provider.Logger("service.download"),
		provider.Metrics("service"),
	)

	infoWorker := worker.NewInfoWorker(infoService, cfg.Extractor.Binary, provider.Logger("worker.info"), provider.Metrics("worker"))
	downloadWorker := worker.NewDownloadWorker(downloadService, cfg.Relay.Binary, provider.Logger("worker.download"), provider.Metrics("worker"))

	limiter := handler.NewRateLimiter(cfg.RateLimit)

	infoHandler := handler.NewFactory(infoWorker, provider).
		WithHandlerConfig(cfg.Handler).
		WithRateLimiter(limiter).
		Create()

	downloadHandler := handler.NewFactory(downloadWorker, provider).
		WithHandlerConfig(cfg.Handler).
		WithRateLimiter(limiter).
		CreateStreaming()

	adapter := platforms.NewHTTPAdapter(cfg.ServiceName, provider).
		WithStatusCodes(StatusCodes).
		Route("/info", infoHandler, http.MethodPost).
		Route("/download", downloadHandler, http.MethodPost, http.MethodGet)

	if cfg.Handler.EnableMetrics {
		adapter.Mount("/metrics", promhttp.HandlerFor(provider.Gatherer(), promhttp.HandlerOpts{}))
	}

	return &App{
		Adapter: adapter,
		Relay:   downloader,
	}
}
