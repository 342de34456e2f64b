package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"mediarelay/shared/observability/types"
	"mediarelay/workers/relay/internal/process"
)

// State is the lifecycle position of one relay invocation.
type State int32

const (
	StateIdle State = iota
	StateCredentialPrepared
	StateSpawned
	StateStreaming
	StateCompleted
	StateKilled
	StateArtifactCleanedUp
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCredentialPrepared:
		return "credential_prepared"
	case StateSpawned:
		return "spawned"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateKilled:
		return "killed"
	case StateArtifactCleanedUp:
		return "artifact_cleaned_up"
	case StateTerminal:
		return "terminal"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Outcomes double as the error_type label of relay_stream errors.
const (
	outcomeCompleted        = "completed"
	outcomeChildExit        = "child_exit"
	outcomeClientDisconnect = "client_disconnect"
	outcomeTimeout          = "timeout"
	outcomeStreamFault      = "stream_fault"
	outcomeSpawnFailed      = "spawn_failed"
	outcomeAbandoned        = "abandoned"
)

// ErrClosed is returned by WriteTo on a stream that was already closed.
var ErrClosed = errors.New("relay: stream closed")

// Stream is the stdout of one downloader child. It is single-use: WriteTo
// may be called once, Close must be called exactly when the consumer is
// done, and the two must not run concurrently.
type Stream struct {
	relay *Relay
	job   Job

	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *process.TailBuffer

	runCtx context.Context
	cancel context.CancelFunc
	logCtx context.Context

	buf     []byte
	pending []byte
	written int64
	started time.Time
	outcome string

	state     atomic.Int32
	waitOnce  sync.Once
	waitErr   error
	closeOnce sync.Once
}

// State returns the current lifecycle state.
func (s *Stream) State() State {
	return State(s.state.Load())
}

func (s *Stream) setState(st State) {
	s.state.Store(int32(st))
}

// PID returns the child's process ID.
func (s *Stream) PID() int {
	return s.cmd.Process.Pid
}

// Written returns the number of bytes delivered to the consumer so far.
func (s *Stream) Written() int64 {
	return s.written
}

// WriteTo copies the child's output to w in the order produced, one bounded
// chunk at a time. A failed write kills the child. Once the child's output
// ends, WriteTo reaps it and reports a non-zero exit or a kill as an error.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	if s.State() != StateStreaming {
		return 0, ErrClosed
	}

	var total int64

	if len(s.pending) > 0 {
		n, err := w.Write(s.pending)
		total += int64(n)
		s.written += int64(n)
		s.pending = nil
		if err != nil {
			s.abort(outcomeClientDisconnect)
			return total, fmt.Errorf("write to client: %w", err)
		}
	}

	for {
		n, rerr := s.stdout.Read(s.buf)
		if n > 0 {
			wn, werr := w.Write(s.buf[:n])
			total += int64(wn)
			s.written += int64(wn)
			if werr != nil {
				s.abort(outcomeClientDisconnect)
				return total, fmt.Errorf("write to client: %w", werr)
			}
		}

		if rerr == io.EOF {
			return total, s.complete()
		}
		if rerr != nil {
			if s.runCtx.Err() != nil {
				return total, s.complete()
			}
			s.abort(outcomeStreamFault)
			return total, fmt.Errorf("read downloader output: %w", rerr)
		}
	}
}

// complete reaps a child whose output has ended and classifies the end.
func (s *Stream) complete() error {
	exitErr := s.wait()

	if ctxErr := s.runCtx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			s.outcome = outcomeTimeout
		} else {
			s.outcome = outcomeClientDisconnect
		}
		s.setState(StateKilled)
		return fmt.Errorf("download aborted: %w", ctxErr)
	}

	s.setState(StateCompleted)
	if exitErr != nil {
		s.outcome = outcomeChildExit
		return fmt.Errorf("downloader exited with code %d: %w", process.ExitCode(exitErr), exitErr)
	}

	s.outcome = outcomeCompleted
	return nil
}

// abort kills the child's tree. Reaping happens in Close.
func (s *Stream) abort(outcome string) {
	if s.outcome == "" {
		s.outcome = outcome
	}
	s.cancel()
	s.setState(StateKilled)
}

// Close kills the child if it is still alive, reaps it, deletes the
// credential artifact and frees the concurrency slot. It is idempotent
// and always returns nil.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		switch s.State() {
		case StateCompleted, StateKilled:
		default:
			s.abort(outcomeAbandoned)
		}

		_ = s.wait()
		s.cancel()
		s.finish()
	})
	return nil
}

func (s *Stream) wait() error {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
	})
	return s.waitErr
}

// finish runs the bookkeeping every started child gets exactly once.
func (s *Stream) finish() {
	r := s.relay

	if s.job.Release != nil {
		s.job.Release()
	}
	s.setState(StateArtifactCleanedUp)

	r.release()

	duration := time.Since(s.started)
	r.metrics.EndOperation("relay_stream")
	r.metrics.RecordDuration("relay_stream", duration.Seconds())
	r.metrics.RecordFileSize("media", s.written)

	fields := types.Fields{
		"request_id":    s.job.RequestID,
		"pid":           s.cmd.Process.Pid,
		"outcome":       s.outcome,
		"bytes_written": s.written,
		"duration_ms":   duration.Milliseconds(),
		"exit_code":     process.ExitCode(s.waitErr),
	}

	if s.outcome == outcomeCompleted {
		r.metrics.RecordSuccess("relay_stream")
		r.logger.Info(s.logCtx, "Relay finished", fields)
	} else {
		r.metrics.RecordError("relay_stream", s.outcome)
		fields["stderr"] = s.stderr.String()
		r.logger.Warn(s.logCtx, "Relay ended early", fields)
	}

	s.setState(StateTerminal)
}
