package config

import "time"

// DefaultFormatSelector asks the downloader for its best single-file rendition
// carrying both audio and video.
const DefaultFormatSelector = "best"

// DefaultHTTPConfig returns sensible defaults for the HTTP server
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Host:              "0.0.0.0",
		Port:              8000,
		ReadHeaderTimeout: 10 * time.Second,
		ShutdownTimeout:   30 * time.Second,
	}
}

// DefaultHandlerConfig returns sensible defaults for handler configuration
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		Timeout:        120 * time.Second,
		MaxRequestSize: 1 << 20, // 1MB, cookie jars included
		EnableHealth:   true,
		EnableMetrics:  true,
		EnableTracing:  true,
		Platform:       "http",
	}
}

// DefaultExtractorConfig returns sensible defaults for the metadata probe
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		Binary:  "yt-dlp",
		Timeout: 90 * time.Second,
	}
}

// DefaultRelayConfig returns sensible defaults for the download relay
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		Binary:        "yt-dlp",
		DefaultFormat: DefaultFormatSelector,
		ChunkSize:     64 * 1024,
		Timeout:       0,
		WaitDelay:     5 * time.Second,
		MaxConcurrent: 0,
	}
}

// DefaultConfig returns a complete configuration with sensible defaults
// This is useful for testing or when you want to start with defaults and override specific parts
func DefaultConfig() *Config {
	return &Config{
		Environment: "local",
		ServiceName: "YouTube Downloader Backend",
		Version:     "1.0.0",
		LogLevel:    "info",

		HTTP:      DefaultHTTPConfig(),
		Handler:   DefaultHandlerConfig(),
		Extractor: DefaultExtractorConfig(),
		Relay:     DefaultRelayConfig(),
	}
}
