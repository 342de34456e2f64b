package process

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requirePOSIX(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestTailBuffer(t *testing.T) {
	t.Run("keeps everything under the limit", func(t *testing.T) {
		tb := NewTailBuffer(16)
		_, _ = tb.Write([]byte("ERROR: "))
		_, _ = tb.Write([]byte("boom"))

		assert.Equal(t, "ERROR: boom", tb.String())
		assert.False(t, tb.Truncated())
	})

	t.Run("keeps the last bytes", func(t *testing.T) {
		tb := NewTailBuffer(4)
		n, err := tb.Write([]byte("abcdef"))

		require.NoError(t, err)
		assert.Equal(t, 6, n)
		assert.Equal(t, "cdef", tb.String())
		assert.True(t, tb.Truncated())

		_, _ = tb.Write([]byte("gh"))
		assert.Equal(t, "efgh", tb.String())
	})

	t.Run("zero max is unbounded", func(t *testing.T) {
		tb := NewTailBuffer(0)
		_, _ = tb.Write([]byte(strings.Repeat("x", 1000)))

		assert.Len(t, tb.String(), 1000)
	})
}

func TestExitCode(t *testing.T) {
	requirePOSIX(t)

	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, -1, ExitCode(errors.New("not an exit error")))

	err := exec.Command("sh", "-c", "exit 3").Run()
	assert.Equal(t, 3, ExitCode(err))
}

func TestKillTree(t *testing.T) {
	requirePOSIX(t)

	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid

	assert.True(t, Alive(pid))
	require.NoError(t, KillTree(pid))
	_ = cmd.Wait()

	assert.False(t, Alive(pid))
}

func TestConfigure(t *testing.T) {
	requirePOSIX(t)

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, "sleep", "30")
	Configure(cmd, time.Second)
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid

	cancel()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled child was not killed")
	}
	assert.False(t, Alive(pid))
	assert.Equal(t, time.Second, cmd.WaitDelay)
}
