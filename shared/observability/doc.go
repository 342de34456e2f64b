/*
Package observability provides structured logging and metrics collection
for the media relay.

Logs are JSON lines shaped for Loki; metrics are Prometheus series exposed
on /metrics.

# Architecture

	Provider (one per process)
	    ├── Logger(component)   JSON logger, cached per component
	    ├── Metrics(component)  Prometheus recorder, cached per component
	    └── Gatherer()          registry served by promhttp

Each component of the relay (http, extractor, credentials, relay) asks the
provider for its own logger and recorder. Loggers are labelled with the
component name; recorders put it in the metric subsystem, so the relay's
series appear as youtube_downloader_backend_relay_*.

# Correlation

Request identifiers travel in the context under typed keys from the types
package. The HTTP adapter stores them with types.WithRequestID and the
tracing middleware adds a trace identifier; every logger call made with
that context emits both without the caller adding fields.

# Usage

	provider := observability.NewProvider(&observability.Config{
	    ServiceName: cfg.ServiceName,
	    Environment: cfg.Environment,
	    LogLevel:    cfg.LogLevel,
	})
	defer provider.Close()

	log := provider.Logger("relay")
	m := provider.Metrics("relay")

	m.StartOperation("relay_stream")
	defer m.EndOperation("relay_stream")
	log.Info(ctx, "child spawned", observability.Fields{"pid": pid})

# Testing

The mocks package has testify mocks of Logger, Metrics and Provider. Tests
that want real collectors pass a fresh prometheus.NewRegistry() as
Config.Registry so series never collide across tests.
*/
package observability
