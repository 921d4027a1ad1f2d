package network

import (
	"fmt"
	"runtime/debug"
	"slices"
	"time"

	"grimm.is/wrtd/internal/logging"
	"grimm.is/wrtd/internal/loop"
	"grimm.is/wrtd/internal/metrics"
)

// DefaultScanInterval is the period between interface scans.
const DefaultScanInterval = 10 * time.Second

// TimerSource arms one-shot timers whose callbacks run on the loop.
type TimerSource interface {
	AddTimeout(d time.Duration, fn func()) *loop.Timer
}

// Sink receives the result of a scan.
type Sink interface {
	Diff(current []string) (added, removed []string)
	Apply(added, removed []string)
}

// Poller periodically enumerates physical interfaces and feeds the changes
// to a Sink.
type Poller struct {
	links    LinkLister
	timers   TimerSource
	sink     Sink
	interval time.Duration
	metrics  *metrics.Registry
	logger   *logging.Logger

	timer   *loop.Timer
	running bool
}

// NewPoller creates a stopped poller. A non-positive interval selects
// DefaultScanInterval.
func NewPoller(links LinkLister, timers TimerSource, sink Sink, interval time.Duration, m *metrics.Registry, logger *logging.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultScanInterval
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Poller{
		links:    links,
		timers:   timers,
		sink:     sink,
		interval: interval,
		metrics:  m,
		logger:   logger.WithComponent("poller"),
	}
}

// Start arms the first scan with no delay.
func (p *Poller) Start() {
	if p.running {
		return
	}
	p.running = true
	p.logger.Info("interface poller started", "interval", p.interval)
	p.arm(0)
}

// Stop cancels the pending scan. No further scans run.
func (p *Poller) Stop() {
	if !p.running {
		return
	}
	p.running = false
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.logger.Info("interface poller stopped")
}

// Running reports whether the poller is armed.
func (p *Poller) Running() bool {
	return p.running
}

func (p *Poller) arm(d time.Duration) {
	p.timer = p.timers.AddTimeout(d, p.tick)
}

func (p *Poller) tick() {
	if !p.running {
		return
	}
	if err := p.Scan(); err != nil {
		p.logger.Warn("interface scan failed", "error", err)
	}
	if p.running {
		p.arm(p.interval)
	}
}

// Scan runs one enumeration and hands the changes to the sink. A panic
// anywhere in the scan is returned as an error.
func (p *Poller) Scan() (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during scan: %v", r)
			p.logger.Debug("scan panic", "stack", string(debug.Stack()))
		}
		p.metrics.RecordScan(time.Since(start).Seconds(), err)
	}()

	links, err := p.links.LinkList()
	if err != nil {
		return fmt.Errorf("failed to list links: %w", err)
	}

	var current []string
	for _, l := range links {
		name := l.Attrs().Name
		if IsPhysical(name) {
			current = append(current, name)
		}
	}
	slices.Sort(current)

	added, removed := p.sink.Diff(current)
	if len(added) > 0 || len(removed) > 0 {
		p.logger.Debug("interfaces changed", "added", added, "removed", removed)
		p.sink.Apply(added, removed)
	}
	return nil
}
