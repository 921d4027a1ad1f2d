// Package supervisor runs external helper programs for the daemon's
// lifetime.
//
// A Process is started once and stopped once. An exit the daemon did not
// ask for is reported through OnExit, on the daemon loop.
package supervisor

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"grimm.is/wrtd/internal/logging"
	"grimm.is/wrtd/internal/loop"
)

// DefaultStopTimeout is how long Stop waits after SIGTERM before killing.
const DefaultStopTimeout = 5 * time.Second

var (
	ErrAlreadyStarted = errors.New("process already started")
	ErrNotStarted     = errors.New("process not started")
)

// Process supervises one child process.
type Process struct {
	name   string
	path   string
	args   []string
	poster loop.Poster
	logger *logging.Logger

	// Env, when set, replaces the inherited environment.
	Env []string
	// Dir is the working directory of the child.
	Dir string

	mu       sync.Mutex
	cmd      *exec.Cmd
	done     chan struct{}
	exitErr  error
	stopping bool
	onExit   func(error)
}

// New creates a supervisor for path with args. Exit notifications are
// posted to poster.
func New(name, path string, args []string, poster loop.Poster, logger *logging.Logger) *Process {
	if logger == nil {
		logger = logging.Default()
	}
	return &Process{
		name:   name,
		path:   path,
		args:   args,
		poster: poster,
		logger: logger.WithComponent("supervisor").WithFields(map[string]any{"process": name}),
	}
}

// OnExit sets the callback for exits that Stop did not cause. It runs on
// the loop with the error from Wait, nil for a clean exit.
func (p *Process) OnExit(fn func(err error)) {
	p.mu.Lock()
	p.onExit = fn
	p.mu.Unlock()
}

// Start launches the child.
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		return ErrAlreadyStarted
	}

	cmd := exec.Command(p.path, p.args...)
	cmd.Env = p.Env
	cmd.Dir = p.Dir
	cmd.Stdout = &lineWriter{logger: p.logger, stream: "stdout"}
	cmd.Stderr = &lineWriter{logger: p.logger, stream: "stderr"}
	cmd.WaitDelay = time.Second

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", p.name, err)
	}
	p.cmd = cmd
	p.done = make(chan struct{})
	p.logger.Info("process started", "pid", cmd.Process.Pid, "path", p.path)

	go p.wait(cmd, p.done)
	return nil
}

func (p *Process) wait(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()
	cmd.Stdout.(*lineWriter).flush()
	cmd.Stderr.(*lineWriter).flush()

	p.mu.Lock()
	p.exitErr = err
	expected := p.stopping
	onExit := p.onExit
	p.mu.Unlock()
	close(done)

	if expected {
		p.logger.Info("process stopped", "status", exitStatus(err))
		return
	}
	p.logger.Warn("process exited unexpectedly", "status", exitStatus(err))
	if onExit != nil && p.poster != nil {
		p.poster.Post(func() { onExit(err) })
	}
}

// Stop sends SIGTERM and waits up to timeout for the child to exit, then
// kills it. Stopping an exited process is a no-op.
func (p *Process) Stop(timeout time.Duration) error {
	p.mu.Lock()
	cmd, done := p.cmd, p.done
	if cmd == nil {
		p.mu.Unlock()
		return ErrNotStarted
	}
	p.stopping = true
	p.mu.Unlock()

	select {
	case <-done:
		return nil
	default:
	}

	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to signal %s: %w", p.name, err)
	}

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
	}

	p.logger.Warn("process ignored SIGTERM, killing", "timeout", timeout)
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill %s: %w", p.name, err)
	}
	<-done
	return nil
}

// Running reports whether the child has been started and not yet exited.
func (p *Process) Running() bool {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Pid returns the child's pid, or 0 before Start.
func (p *Process) Pid() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// ExitErr returns the error from Wait once the child has exited.
func (p *Process) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

func exitStatus(err error) string {
	if err == nil {
		return "exit 0"
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return "signal " + ws.Signal().String()
		}
		return fmt.Sprintf("exit %d", exitErr.ExitCode())
	}
	return err.Error()
}

// lineWriter logs child output one line at a time.
type lineWriter struct {
	logger *logging.Logger
	stream string

	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *lineWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(b)
	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// Partial line: keep it for the next write.
			w.buf.Write(line)
			break
		}
		w.logger.Info(string(bytes.TrimRight(line, "\r\n")), "stream", w.stream)
	}
	return len(b), nil
}

func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.logger.Info(w.buf.String(), "stream", w.stream)
		w.buf.Reset()
	}
}
