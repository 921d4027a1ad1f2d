// Package loop provides the daemon's single logical thread.
//
// All daemon state (the interface tracking map, the manager registry,
// lifecycle transitions) is touched only from callbacks dispatched by Run.
// Other goroutines hand work to the loop with Post, and timers armed with
// AddTimeout fire their callback on the loop as well.
package loop

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"grimm.is/wrtd/internal/logging"
)

// Poster marshals a callback onto the loop goroutine.
type Poster interface {
	Post(fn func()) bool
}

// Loop is a cooperative, single-threaded callback dispatcher.
type Loop struct {
	logger *logging.Logger

	mu    sync.Mutex
	queue []func()

	wake     chan struct{}
	quit     chan struct{}
	quitOnce sync.Once
	quitting atomic.Bool
}

// New creates an idle loop. Call Run to start dispatching.
func New(logger *logging.Logger) *Loop {
	if logger == nil {
		logger = logging.Default()
	}
	return &Loop{
		logger: logger.WithComponent("loop"),
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
	}
}

// Post queues fn to run on the loop. It is safe to call from any goroutine.
// Post reports false, and drops fn, once Quit has been called.
func (l *Loop) Post(fn func()) bool {
	if fn == nil || l.quitting.Load() {
		return false
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// AddTimeout arms a one-shot timer whose callback runs on the loop after d.
// After Quit the returned timer is inert and never fires.
func (l *Loop) AddTimeout(d time.Duration, fn func()) *Timer {
	t := &Timer{}
	if l.quitting.Load() {
		t.stopped.Store(true)
		return t
	}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.stopped.Swap(true) {
				return
			}
			fn()
		})
	})
	return t
}

// Quit asks Run to return. Safe from any goroutine and idempotent.
// Callbacks still queued are dropped.
func (l *Loop) Quit() {
	l.quitOnce.Do(func() {
		l.quitting.Store(true)
		close(l.quit)
	})
}

// Quitting reports whether Quit has been called.
func (l *Loop) Quitting() bool {
	return l.quitting.Load()
}

// Run dispatches callbacks until Quit is called or ctx is done.
// A panicking callback is logged and does not stop the loop.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if l.quitting.Load() {
			return nil
		}

		if fn := l.next(); fn != nil {
			l.dispatch(fn)
			continue
		}

		select {
		case <-l.wake:
		case <-l.quit:
			return nil
		case <-ctx.Done():
			l.Quit()
			return ctx.Err()
		}
	}
}

func (l *Loop) next() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn
}

func (l *Loop) dispatch(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("callback panicked",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

// Timer is a handle on a callback armed with AddTimeout.
type Timer struct {
	timer   *time.Timer
	stopped atomic.Bool
}

// Stop prevents the callback from running if it has not run yet.
// It reports whether this call stopped it.
func (t *Timer) Stop() bool {
	if t == nil {
		return false
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	return !t.stopped.Swap(true)
}
