// Package relay runs the downloader as a child process and exposes its
// stdout as a stream that is copied to the client chunk by chunk.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"mediarelay/shared/config"
	"mediarelay/shared/observability/types"
	"mediarelay/workers/relay/internal/domain"
	"mediarelay/workers/relay/internal/process"
)

const stderrTail = 8 * 1024

// Job describes one download.
type Job struct {
	RequestID  string
	URL        string
	Format     string
	CookiePath string

	// Release runs once the child is gone, on every path that returns a
	// stream. When Start fails the caller still owns the cleanup.
	Release func()
}

// Relay spawns downloader processes.
type Relay struct {
	cfg     config.RelayConfig
	slots   chan struct{}
	logger  types.Logger
	metrics types.Metrics
}

// New creates a Relay. cfg.MaxConcurrent <= 0 means no cap.
func New(cfg config.RelayConfig, logger types.Logger, metrics types.Metrics) *Relay {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = config.DefaultRelayConfig().ChunkSize
	}
	if cfg.DefaultFormat == "" {
		cfg.DefaultFormat = config.DefaultFormatSelector
	}

	r := &Relay{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
	if cfg.MaxConcurrent > 0 {
		r.slots = make(chan struct{}, cfg.MaxConcurrent)
	}
	return r
}

// Args builds the download argument vector. Media goes to stdout.
func (r *Relay) Args(job Job) []string {
	args := []string{"--no-playlist", "--no-progress", "--quiet", "-f", r.format(job), "-o", "-"}
	if job.CookiePath != "" {
		args = append(args, "--cookies", job.CookiePath)
	}
	return append(args, "--", job.URL)
}

// Start spawns the downloader and blocks until it has produced its first
// chunk, so that a child that dies straight away is still reported as an
// error rather than as an empty 200.
//
// Cancelling ctx kills the child's process tree at any point, including
// while the returned stream is being copied.
func (r *Relay) Start(ctx context.Context, job Job) (domain.MediaStream, error) {
	if !r.acquire() {
		r.metrics.RecordError("relay_stream", "busy")
		r.logger.Warn(ctx, "Download refused, all relay slots in use", types.Fields{
			"request_id":     job.RequestID,
			"max_concurrent": r.cfg.MaxConcurrent,
		})
		return nil, domain.ErrBusy
	}

	s := &Stream{
		relay:   r,
		job:     job,
		logCtx:  context.WithoutCancel(ctx),
		stderr:  process.NewTailBuffer(stderrTail),
		buf:     make([]byte, r.cfg.ChunkSize),
		started: time.Now(),
	}
	if job.CookiePath != "" {
		s.setState(StateCredentialPrepared)
	}

	if r.cfg.Timeout > 0 {
		s.runCtx, s.cancel = context.WithTimeout(ctx, r.cfg.Timeout)
	} else {
		s.runCtx, s.cancel = context.WithCancel(ctx)
	}

	cmd := exec.CommandContext(s.runCtx, r.cfg.Binary, r.Args(job)...)
	cmd.Stderr = s.stderr
	process.Configure(cmd, r.cfg.WaitDelay)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.cancel()
		r.release()
		return nil, r.spawnFailed(ctx, job, err)
	}

	if err := cmd.Start(); err != nil {
		s.cancel()
		r.release()
		return nil, r.spawnFailed(ctx, job, err)
	}

	s.cmd = cmd
	s.stdout = stdout
	s.setState(StateSpawned)
	r.metrics.StartOperation("relay_stream")

	r.logger.Info(ctx, "Downloader started", types.Fields{
		"request_id":  job.RequestID,
		"pid":         cmd.Process.Pid,
		"format":      r.format(job),
		"has_cookies": job.CookiePath != "",
	})

	if err := s.probe(); err != nil {
		s.outcome = outcomeSpawnFailed
		s.cancel()
		exitErr := s.wait()
		s.setState(StateKilled)

		r.logger.Error(ctx, "Downloader produced no output", err, types.Fields{
			"request_id": job.RequestID,
			"exit_code":  process.ExitCode(exitErr),
			"stderr":     s.stderr.String(),
		})

		s.job.Release = nil
		s.finish()
		return nil, domain.SpawnFailed(errors.Join(err, exitErr))
	}

	s.setState(StateStreaming)
	return s, nil
}

func (r *Relay) format(job Job) string {
	if job.Format != "" {
		return job.Format
	}
	return r.cfg.DefaultFormat
}

func (r *Relay) spawnFailed(ctx context.Context, job Job, err error) error {
	r.metrics.RecordError("relay_stream", "spawn_failed")
	r.logger.Error(ctx, "Failed to start downloader", err, types.Fields{
		"request_id": job.RequestID,
		"binary":     r.cfg.Binary,
	})
	return domain.SpawnFailed(err)
}

func (r *Relay) acquire() bool {
	if r.slots == nil {
		return true
	}
	select {
	case r.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

func (r *Relay) release() {
	if r.slots != nil {
		<-r.slots
	}
}

// InFlight returns the number of children currently holding a slot, or -1
// when concurrency is not capped.
func (r *Relay) InFlight() int {
	if r.slots == nil {
		return -1
	}
	return len(r.slots)
}

// errNoOutput reports a child that exited without writing a byte.
var errNoOutput = errors.New("downloader exited without output")

// probe reads until the first non-empty chunk or the end of output.
func (s *Stream) probe() error {
	for {
		n, err := s.stdout.Read(s.buf)
		if n > 0 {
			s.pending = s.buf[:n]
			return nil
		}
		if err == io.EOF {
			if ctxErr := s.runCtx.Err(); ctxErr != nil {
				return ctxErr
			}
			return errNoOutput
		}
		if err != nil {
			return fmt.Errorf("read downloader output: %w", err)
		}
	}
}
