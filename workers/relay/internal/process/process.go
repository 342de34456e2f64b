// Package process holds the child-process plumbing shared by the extractor
// and the relay: process-tree termination and bounded stderr capture.
package process

import (
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	gops "github.com/shirou/gopsutil/v3/process"
)

// KillTree kills every descendant of pid, then pid itself. yt-dlp may fork an
// ffmpeg muxer that would otherwise keep writing into an orphaned pipe.
func KillTree(pid int) error {
	root, err := gops.NewProcess(int32(pid))
	if err != nil {
		return err
	}

	var descendants []*gops.Process
	collectDescendants(root, &descendants)

	var errs []error
	for i := len(descendants) - 1; i >= 0; i-- {
		if err := descendants[i].Kill(); err != nil && !isGone(err) {
			errs = append(errs, err)
		}
	}
	if err := root.Kill(); err != nil && !isGone(err) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func collectDescendants(p *gops.Process, out *[]*gops.Process) {
	children, err := p.Children()
	if err != nil {
		return
	}
	for _, c := range children {
		*out = append(*out, c)
		collectDescendants(c, out)
	}
}

func isGone(err error) bool {
	return errors.Is(err, os.ErrProcessDone) ||
		errors.Is(err, syscall.ESRCH) ||
		errors.Is(err, gops.ErrorProcessNotRunning)
}

// Alive reports whether pid still names a live process.
func Alive(pid int) bool {
	ok, err := gops.PidExists(int32(pid))
	return err == nil && ok
}

// Configure makes context cancellation kill cmd's whole tree and bounds how
// long Wait may block on pipes held open by leaked grandchildren.
func Configure(cmd *exec.Cmd, waitDelay time.Duration) {
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		if err := KillTree(cmd.Process.Pid); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
	cmd.WaitDelay = waitDelay
}

// ExitCode returns the child's exit status, or -1 when err carries none.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// TailBuffer is an io.Writer that keeps only the last Max bytes written.
type TailBuffer struct {
	Max int

	mu        sync.Mutex
	buf       []byte
	truncated bool
}

// NewTailBuffer creates a TailBuffer keeping max bytes.
func NewTailBuffer(max int) *TailBuffer {
	return &TailBuffer{Max: max}
}

func (t *TailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.Max; t.Max > 0 && over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
		t.truncated = true
	}
	return len(p), nil
}

// String returns the retained tail.
func (t *TailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

// Truncated reports whether earlier output was dropped.
func (t *TailBuffer) Truncated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.truncated
}
