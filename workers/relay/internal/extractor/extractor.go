// Package extractor probes media metadata through the yt-dlp CLI.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"mediarelay/shared/config"
	"mediarelay/shared/observability/types"
	"mediarelay/workers/relay/internal/domain"
	"mediarelay/workers/relay/internal/process"
)

const (
	stderrTail = 64 * 1024
	waitDelay  = 2 * time.Second
)

// Extractor runs one probe-only yt-dlp invocation per call.
type Extractor struct {
	binary  string
	timeout time.Duration
	logger  types.Logger
	metrics types.Metrics
}

// New creates an Extractor from cfg.
func New(cfg config.ExtractorConfig, logger types.Logger, metrics types.Metrics) *Extractor {
	return &Extractor{
		binary:  cfg.Binary,
		timeout: cfg.Timeout,
		logger:  logger,
		metrics: metrics,
	}
}

// Args builds the probe argument vector. The URL always follows "--".
func Args(url, cookiePath string) []string {
	args := []string{"--dump-single-json", "--no-playlist", "--no-warnings", "--skip-download"}
	if cookiePath != "" {
		args = append(args, "--cookies", cookiePath)
	}
	return append(args, "--", url)
}

// Extract probes url and returns its combined formats. cookiePath may be empty.
func (e *Extractor) Extract(ctx context.Context, url, cookiePath string) (*domain.MediaMetadata, error) {
	e.metrics.StartOperation("extract")
	defer e.metrics.EndOperation("extract")

	start := time.Now()
	defer func() {
		e.metrics.RecordDuration("extract", time.Since(start).Seconds())
	}()

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var stdout bytes.Buffer
	stderr := process.NewTailBuffer(stderrTail)

	cmd := exec.CommandContext(runCtx, e.binary, Args(url, cookiePath)...)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr
	process.Configure(cmd, waitDelay)

	e.logger.Debug(ctx, "Running metadata probe", types.Fields{
		"url":         url,
		"has_cookies": cookiePath != "",
	})

	if err := cmd.Start(); err != nil {
		e.metrics.RecordError("extract", "spawn_failed")
		e.logger.Error(ctx, "Extractor could not be started", err, types.Fields{
			"binary": e.binary,
		})
		return nil, domain.ExtractionFailed("Metadata extraction is unavailable", err)
	}

	if err := cmd.Wait(); err != nil {
		return nil, e.failure(ctx, runCtx, url, err, stderr.String())
	}

	metadata, err := Parse(stdout.Bytes())
	if err != nil {
		e.metrics.RecordError("extract", "parse_error")
		e.logger.Error(ctx, "Failed to parse probe output", err, types.Fields{
			"url":         url,
			"output_size": stdout.Len(),
		})
		return nil, domain.ExtractionFailed("Failed to read video information", err)
	}

	e.metrics.RecordSuccess("extract")
	e.logger.Info(ctx, "Metadata extracted", types.Fields{
		"url":     url,
		"formats": len(metadata.Formats),
	})

	return metadata, nil
}

// failure turns a failed run into the matching domain error.
func (e *Extractor) failure(ctx, runCtx context.Context, url string, runErr error, stderr string) error {
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		e.metrics.RecordError("extract", "timeout")
		e.logger.Warn(ctx, "Metadata probe timed out", types.Fields{
			"url":     url,
			"timeout": e.timeout.String(),
		})
		return domain.ExtractionFailed("Metadata extraction timed out", runCtx.Err())

	case ctx.Err() != nil:
		e.metrics.RecordError("extract", "cancelled")
		return domain.ExtractionFailed("Request cancelled", ctx.Err())
	}

	raw := FailureText(stderr, runErr)
	fields := types.Fields{
		"url":       url,
		"exit_code": process.ExitCode(runErr),
		"stderr":    stderr,
	}

	if IsAuthRequired(raw) {
		e.metrics.RecordError("extract", "auth_required")
		e.logger.Warn(ctx, "Extractor requires sign-in", fields)
		return domain.AuthRequired(errors.New(raw))
	}

	e.metrics.RecordError("extract", "extractor_error")
	e.logger.Error(ctx, "Metadata extraction failed", runErr, fields)
	return domain.ExtractionFailed(raw, runErr)
}

// FailureText picks the message to report for a failed run: the ERROR lines
// yt-dlp printed (prefix stripped), else all of stderr, else runErr.
func FailureText(stderr string, runErr error) string {
	var lines []string
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "ERROR:"); ok {
			lines = append(lines, strings.TrimSpace(rest))
		}
	}
	if len(lines) > 0 {
		return strings.Join(lines, "\n")
	}
	if trimmed := strings.TrimSpace(stderr); trimmed != "" {
		return trimmed
	}
	if runErr != nil {
		return runErr.Error()
	}
	return "unknown extractor error"
}

// IsAuthRequired reports whether the extractor is asking for a signed-in session.
func IsAuthRequired(message string) bool {
	return strings.Contains(strings.ToLower(message), "sign in")
}
