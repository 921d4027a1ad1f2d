package daemon

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
	"syscall"

	"grimm.is/wrtd/internal/logging"
	"grimm.is/wrtd/internal/loop"
)

// Loop is the part of the main loop the coordinator drives.
type Loop interface {
	loop.Poster
	Quit()
}

type teardownStep struct {
	name string
	fn   func() error
}

// ShutdownCoordinator turns signals into a loop exit and runs the teardown
// steps afterwards, newest first.
type ShutdownCoordinator struct {
	loop   Loop
	logger *logging.Logger

	restart atomic.Bool

	mu       sync.Mutex
	steps    []teardownStep
	tornDown bool

	// Exec replaces the process image on restart. It only returns on
	// failure.
	Exec func() error
}

// NewShutdownCoordinator creates a coordinator quitting l.
func NewShutdownCoordinator(l Loop, logger *logging.Logger) *ShutdownCoordinator {
	if logger == nil {
		logger = logging.Default()
	}
	return &ShutdownCoordinator{
		loop:   l,
		logger: logger.WithComponent("shutdown"),
		Exec:   Reexec,
	}
}

// HandleSignal maps a signal to a stop request: SIGINT and SIGTERM stop,
// SIGHUP restarts.
func (s *ShutdownCoordinator) HandleSignal(sig os.Signal) {
	s.logger.Info("signal received", "signal", sig)
	switch sig {
	case syscall.SIGHUP:
		s.RequestStop(true)
	case os.Interrupt, syscall.SIGTERM:
		s.RequestStop(false)
	}
}

// RequestStop quits the loop. A restart request sticks even if a plain stop
// follows it.
func (s *ShutdownCoordinator) RequestStop(restart bool) {
	if restart {
		s.restart.Store(true)
	}
	s.loop.Quit()
}

// RestartRequested reports whether a restart was asked for.
func (s *ShutdownCoordinator) RestartRequested() bool {
	return s.restart.Load()
}

// Watch delivers SIGINT, SIGTERM and SIGHUP to HandleSignal on the loop.
// The returned function stops watching.
func (s *ShutdownCoordinator) Watch() (stop func()) {
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case sig := <-ch:
				if !s.loop.Post(func() { s.HandleSignal(sig) }) {
					// The loop is already on its way out; keep the
					// restart request anyway.
					s.HandleSignal(sig)
				}
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(done)
		})
	}
}

// OnTeardown registers a teardown step. Steps run in reverse registration
// order, so register them as the resources they release come up.
func (s *ShutdownCoordinator) OnTeardown(name string, fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, teardownStep{name: name, fn: fn})
}

// Teardown runs every registered step once. A failing or panicking step is
// logged and the rest still run.
func (s *ShutdownCoordinator) Teardown() error {
	s.mu.Lock()
	if s.tornDown {
		s.mu.Unlock()
		return nil
	}
	s.tornDown = true
	steps := s.steps
	s.steps = nil
	s.mu.Unlock()

	var errs []error
	for _, step := range slices.Backward(steps) {
		if err := s.runStep(step); err != nil {
			s.logger.Error("teardown step failed", "step", step.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
			continue
		}
		s.logger.Debug("teardown step done", "step", step.name)
	}
	return errors.Join(errs...)
}

func (s *ShutdownCoordinator) runStep(step teardownStep) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.logger.Debug("teardown panic", "step", step.name, "stack", string(debug.Stack()))
		}
	}()
	return step.fn()
}

// Restart re-executes the daemon.
func (s *ShutdownCoordinator) Restart() error {
	s.logger.Info("restarting")
	if err := s.Exec(); err != nil {
		return fmt.Errorf("restart failed: %w", err)
	}
	return nil
}
