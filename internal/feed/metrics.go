package feed

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricFeedPagesTotal       = "feed_pages_total"
	MetricFeedAssemblyDuration = "feed_assembly_duration_seconds"
	MetricFeedDroppedAuthors   = "feed_dropped_author_sessions_total"
)

// Metrics contains Prometheus metrics for feed assembly.
// All operations are thread-safe.
type Metrics struct {
	pagesTotal       *prometheus.CounterVec
	assemblyDuration *prometheus.HistogramVec
	droppedAuthors   prometheus.Counter
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register them
// with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		pagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricFeedPagesTotal,
				Help: "Total number of feed pages assembled by mode",
			},
			[]string{"mode"},
		),
		assemblyDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricFeedAssemblyDuration,
				Help:    "Histogram of feed assembly duration in seconds by mode",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
			},
			[]string{"mode"},
		),
		droppedAuthors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricFeedDroppedAuthors,
				Help: "Total number of sessions dropped because the author record no longer resolves",
			},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.pagesTotal,
		m.assemblyDuration,
		m.droppedAuthors,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveAssembly records one assembled page and its duration.
func (m *Metrics) ObserveAssembly(mode string, seconds float64) {
	m.pagesTotal.WithLabelValues(mode).Inc()
	m.assemblyDuration.WithLabelValues(mode).Observe(seconds)
}

// IncDroppedAuthor counts a session dropped for an unresolvable author.
func (m *Metrics) IncDroppedAuthor() {
	m.droppedAuthors.Inc()
}
