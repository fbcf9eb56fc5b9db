package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type engineMetrics struct {
	offersResolved *prometheus.CounterVec
	sweeps         *prometheus.CounterVec
	cascades       *prometheus.CounterVec
	accountability *prometheus.CounterVec
	dispatch       *prometheus.CounterVec
	sweepDuration  prometheus.Histogram
}

var (
	once     sync.Once
	registry *engineMetrics
)

// Engine returns the lazily-initialised collectors shared by the engines.
func Engine() *engineMetrics {
	once.Do(func() {
		registry = &engineMetrics{
			offersResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "peerlend",
				Subsystem: "matching",
				Name:      "offers_resolved_total",
				Help:      "Offers leaving pending, segmented by resulting status.",
			}, []string{"status"}),
			sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "peerlend",
				Subsystem: "matching",
				Name:      "sweeps_total",
				Help:      "Cascade sweep invocations by outcome.",
			}, []string{"outcome"}),
			cascades: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "peerlend",
				Subsystem: "matching",
				Name:      "cascade_steps_total",
				Help:      "Cascade advance steps by result (presented, auto_accepted, no_match).",
			}, []string{"result"}),
			accountability: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "peerlend",
				Subsystem: "accountability",
				Name:      "backings_processed_total",
				Help:      "Backings processed per loan outcome, by result.",
			}, []string{"outcome", "result"}),
			dispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "peerlend",
				Subsystem: "dispatch",
				Name:      "tasks_total",
				Help:      "Best-effort tasks by kind and result (delivered, failed, dropped).",
			}, []string{"kind", "result"}),
			sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "peerlend",
				Subsystem: "matching",
				Name:      "sweep_duration_seconds",
				Help:      "Wall time of one cascade sweep.",
				Buckets:   prometheus.DefBuckets,
			}),
		}
		prometheus.MustRegister(
			registry.offersResolved,
			registry.sweeps,
			registry.cascades,
			registry.accountability,
			registry.dispatch,
			registry.sweepDuration,
		)
	})
	return registry
}

func (m *engineMetrics) OfferResolved(status string) {
	if m == nil {
		return
	}
	m.offersResolved.WithLabelValues(status).Inc()
}

func (m *engineMetrics) Sweep(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.sweeps.WithLabelValues(outcome).Inc()
	m.sweepDuration.Observe(seconds)
}

func (m *engineMetrics) CascadeStep(result string) {
	if m == nil {
		return
	}
	m.cascades.WithLabelValues(result).Inc()
}

func (m *engineMetrics) Accountability(outcome, result string) {
	if m == nil {
		return
	}
	m.accountability.WithLabelValues(outcome, result).Inc()
}

func (m *engineMetrics) Dispatch(kind, result string) {
	if m == nil {
		return
	}
	m.dispatch.WithLabelValues(kind, result).Inc()
}
