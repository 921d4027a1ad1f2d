package supervisor

import (
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/wrtd/internal/logging"
)

// chanPoster runs posted callbacks on the test goroutine via a channel.
type chanPoster chan func()

func (c chanPoster) Post(fn func()) bool {
	c <- fn
	return true
}

func requireShell(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not found")
	}
	return sh
}

func TestProcess_StopTerminates(t *testing.T) {
	sh := requireShell(t)
	poster := make(chanPoster, 1)
	p := New("sleeper", sh, []string{"-c", "exec sleep 30"}, poster, logging.Discard())

	called := false
	p.OnExit(func(error) { called = true })

	require.NoError(t, p.Start())
	assert.True(t, p.Running())
	assert.NotZero(t, p.Pid())

	start := time.Now()
	require.NoError(t, p.Stop(5*time.Second))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, p.Running())
	assert.Error(t, p.ExitErr())

	// A requested stop is not reported as an exit.
	select {
	case fn := <-poster:
		fn()
	case <-time.After(100 * time.Millisecond):
	}
	assert.False(t, called)

	require.NoError(t, p.Stop(time.Second))
}

func TestProcess_StopKillsAfterTimeout(t *testing.T) {
	sh := requireShell(t)
	p := New("stubborn", sh, []string{"-c", `trap "" TERM; exec sleep 30`}, nil, logging.Discard())

	require.NoError(t, p.Start())
	// Give the shell time to install the trap before signalling.
	time.Sleep(200 * time.Millisecond)

	start := time.Now()
	require.NoError(t, p.Stop(300*time.Millisecond))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond)
	assert.Less(t, elapsed, 10*time.Second)
	assert.False(t, p.Running())
	assert.Equal(t, "signal killed", exitStatus(p.ExitErr()))
}

func TestProcess_UnexpectedExitIsPosted(t *testing.T) {
	sh := requireShell(t)
	poster := make(chanPoster, 1)
	p := New("crasher", sh, []string{"-c", "echo starting; echo oops >&2; exit 3"}, poster, logging.Discard())

	var got error
	p.OnExit(func(err error) { got = err })
	require.NoError(t, p.Start())

	select {
	case fn := <-poster:
		fn()
	case <-time.After(5 * time.Second):
		t.Fatal("exit was not posted")
	}

	require.Error(t, got)
	var exitErr *exec.ExitError
	require.ErrorAs(t, got, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode())
	assert.False(t, p.Running())
}

func TestProcess_StartErrors(t *testing.T) {
	p := New("missing", "/nonexistent/wrtd-helper", nil, nil, logging.Discard())
	require.Error(t, p.Start())
	assert.False(t, p.Running())
	assert.ErrorIs(t, p.Stop(time.Second), ErrNotStarted)

	sh := requireShell(t)
	q := New("twice", sh, []string{"-c", "exec sleep 30"}, nil, logging.Discard())
	require.NoError(t, q.Start())
	t.Cleanup(func() { q.Stop(time.Second) })
	assert.ErrorIs(t, q.Start(), ErrAlreadyStarted)
}

func TestLineWriter(t *testing.T) {
	w := &lineWriter{logger: logging.Discard(), stream: "stdout"}
	n, err := w.Write([]byte("one\ntw"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, "tw", w.buf.String())

	_, err = w.Write([]byte("o\nthree"))
	require.NoError(t, err)
	assert.Equal(t, "three", w.buf.String())

	w.flush()
	assert.Zero(t, w.buf.Len())
}
