// Package metrics exposes the daemon's Prometheus metrics.
//
// A nil *Registry is valid and records nothing, so components can be built
// without metrics in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "wrtd"

// Registry holds all daemon metrics.
type Registry struct {
	reg *prometheus.Registry

	// Interface poller
	ScansTotal          prometheus.Counter
	ScanErrors          prometheus.Counter
	ScanDuration        prometheus.Histogram
	InterfacesOwned     *prometheus.GaugeVec
	InterfacesUnmanaged prometheus.Gauge
	Transitions         *prometheus.CounterVec

	// Managers
	ManagersActive prometheus.Gauge
	ManagerErrors  *prometheus.CounterVec

	// Event hub
	EventsTotal *prometheus.CounterVec

	// Daemon
	StartTime prometheus.Gauge
}

// New creates a registry with its own prometheus.Registry, so several can
// coexist in one process.
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	r := &Registry{reg: reg}

	r.ScansTotal = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "interface_scans_total",
		Help:      "Interface scans performed",
	})
	r.ScanErrors = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "interface_scan_errors_total",
		Help:      "Interface scans that failed or panicked",
	})
	r.ScanDuration = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "interface_scan_duration_seconds",
		Help:      "Time spent in one interface scan",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
	})
	r.InterfacesOwned = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "interfaces_tracked",
		Help:      "Tracked interfaces by owner",
	}, []string{"owner"})
	r.InterfacesUnmanaged = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "interfaces_unmanaged",
		Help:      "Tracked interfaces no owner claimed",
	})
	r.Transitions = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "interface_transitions_total",
		Help:      "Interface ownership changes",
	}, []string{"kind"})

	r.ManagersActive = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "managers_active",
		Help:      "Managers currently initialized",
	})
	r.ManagerErrors = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "manager_errors_total",
		Help:      "Manager lifecycle failures",
	}, []string{"manager", "phase"})

	r.EventsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Events published on the hub",
	}, []string{"type"})

	r.StartTime = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "start_time_seconds",
		Help:      "Unix time the daemon started",
	})
	r.StartTime.SetToCurrentTime()

	return r
}

// Gatherer returns the underlying registry for scraping.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// RecordScan records one interface scan.
func (r *Registry) RecordScan(seconds float64, err error) {
	if r == nil {
		return
	}
	r.ScansTotal.Inc()
	r.ScanDuration.Observe(seconds)
	if err != nil {
		r.ScanErrors.Inc()
	}
}

// RecordTransition records an ownership change. kind is "claimed",
// "unmanaged" or "released".
func (r *Registry) RecordTransition(kind string) {
	if r == nil {
		return
	}
	r.Transitions.WithLabelValues(kind).Inc()
}

// SetOwned replaces the per-owner and unmanaged interface counts.
func (r *Registry) SetOwned(owned map[string]int, unmanaged int) {
	if r == nil {
		return
	}
	r.InterfacesOwned.Reset()
	for owner, n := range owned {
		r.InterfacesOwned.WithLabelValues(owner).Set(float64(n))
	}
	r.InterfacesUnmanaged.Set(float64(unmanaged))
}

// ManagerUp and ManagerDown track the number of initialized managers.
func (r *Registry) ManagerUp() {
	if r == nil {
		return
	}
	r.ManagersActive.Inc()
}

func (r *Registry) ManagerDown() {
	if r == nil {
		return
	}
	r.ManagersActive.Dec()
}

// RecordManagerError records a failed init or dispose.
func (r *Registry) RecordManagerError(manager, phase string) {
	if r == nil {
		return
	}
	r.ManagerErrors.WithLabelValues(manager, phase).Inc()
}
