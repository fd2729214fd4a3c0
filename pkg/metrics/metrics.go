// Package metrics implements nimmy's Prometheus instrumentation: step
// counts, call depth, breakpoint hits, and interactive-evaluation
// latency, registered against a private registry so an embedder can
// mount it on whatever path it likes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

// Config configures a Recorder's metric names.
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig names metrics "nimmy_vm_*".
func DefaultConfig() Config {
	return Config{Namespace: "nimmy", Subsystem: "vm"}
}

// Recorder holds every Prometheus collector nimmy exposes. It satisfies
// pkg/vm.Meter and pkg/interactive.Meter.
type Recorder struct {
	stepsTotal        prometheus.Counter
	callDepth         prometheus.Gauge
	breakpointHits    prometheus.Counter
	interactiveEvalMS prometheus.Histogram
	runsTotal         *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers every collector.
func New(cfg Config) *Recorder {
	if cfg.Namespace == "" {
		cfg = DefaultConfig()
	}
	registry := prometheus.NewRegistry()
	r := &Recorder{registry: registry}

	r.stepsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "steps_total", Help: "Total statements executed across all VM instances.",
	})
	r.callDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "call_depth", Help: "Current function-call nesting depth of the most recently stepped VM.",
	})
	r.breakpointHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "breakpoint_hits_total", Help: "Total number of times execution paused on a breakpoint.",
	})
	r.interactiveEvalMS = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name:    "interactive_eval_seconds",
		Help:    "Latency of interactive fragment evaluations.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})
	r.runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "runs_total", Help: "Total VM runs, labeled by outcome.",
	}, []string{"outcome"})

	registry.MustRegister(r.stepsTotal, r.callDepth, r.breakpointHits, r.interactiveEvalMS, r.runsTotal)
	return r
}

// IncStep satisfies pkg/vm.Meter.
func (r *Recorder) IncStep() { r.stepsTotal.Inc() }

// SetCallDepth satisfies pkg/vm.Meter.
func (r *Recorder) SetCallDepth(n int) { r.callDepth.Set(float64(n)) }

// IncBreakpointHit satisfies pkg/vm.Meter.
func (r *Recorder) IncBreakpointHit() { r.breakpointHits.Inc() }

// ObserveInteractiveEval satisfies pkg/vm.Meter and pkg/interactive.Meter.
func (r *Recorder) ObserveInteractiveEval(seconds float64) { r.interactiveEvalMS.Observe(seconds) }

// RecordRunOutcome increments the runs_total counter for outcome
// ("ok" or "error"), called by embedders around vm.Run.
func (r *Recorder) RecordRunOutcome(outcome string) { r.runsTotal.WithLabelValues(outcome).Inc() }

// Handler returns an http.Handler serving this recorder's metrics in the
// Prometheus text exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
