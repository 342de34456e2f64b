package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"mediarelay/shared/config"
	"mediarelay/shared/observability"
	"mediarelay/workers/relay/internal/app"
)

func main() {
	cfg := loadConfiguration()

	provider := initializeObservability(cfg)
	defer provider.Close()

	logStartup(cfg, provider)

	server := buildApplication(cfg, provider)

	startApplication(cfg, server, provider)
}

// loadConfiguration loads and validates the application configuration
func loadConfiguration() *config.Config {
	cfgProvider := config.GetProvider()
	cfgProvider.MustLoad()
	return cfgProvider.MustGet()
}

// initializeObservability sets up logging and metrics
func initializeObservability(cfg *config.Config) observability.Provider {
	return observability.NewProvider(&observability.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		LogLevel:    cfg.LogLevel,
		LogOutput:   os.Stdout,
		AdditionalFields: observability.Fields{
			"version": cfg.Version,
		},
	})
}

// logStartup logs application startup information
func logStartup(cfg *config.Config, provider observability.Provider) {
	provider.Logger("main").Info(context.Background(), "Starting application", observability.Fields{
		"service":        cfg.ServiceName,
		"version":        cfg.Version,
		"environment":    cfg.Environment,
		"addr":           cfg.HTTP.Addr(),
		"ytdlp":          cfg.Extractor.Binary,
		"default_format": cfg.Relay.DefaultFormat,
		"max_concurrent": cfg.Relay.MaxConcurrent,
	})
}

// buildApplication assembles the HTTP server around the relay routes
func buildApplication(cfg *config.Config, provider observability.Provider) *http.Server {
	application := app.New(cfg, provider)

	return &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           application.Adapter,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}
}

// startApplication serves until SIGINT or SIGTERM, then drains in-flight
// requests for at most the configured shutdown timeout.
func startApplication(cfg *config.Config, server *http.Server, provider observability.Provider) {
	logger := provider.Logger("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info(ctx, "Listening", observability.Fields{"addr": server.Addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error(context.Background(), "Server failed", err, nil)
			log.Fatalf("Failed to start: %v", err)
		}
		return
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "Shutting down", observability.Fields{
		"timeout": cfg.HTTP.ShutdownTimeout.String(),
	})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "Graceful shutdown failed", err, nil)
		_ = server.Close()
	}
}
