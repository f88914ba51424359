package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "geothermophone"

// Metrics holds the Prometheus counters and histograms for octant requests.
type Metrics struct {
	Requests            *prometheus.CounterVec // labels: variable, mode, outcome={success,error}
	AggregationDuration prometheus.Histogram
	TimestepsAdmitted   *prometheus.CounterVec // labels: variable
	AggregationCache    *prometheus.CounterVec // labels: result={hit,miss}
	MessagesPublished   prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Requests,
		m.AggregationDuration,
		m.TimestepsAdmitted,
		m.AggregationCache,
		m.MessagesPublished,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Octant series requests by variable, mode and outcome.",
		}, []string{"variable", "mode", "outcome"}),
		AggregationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregation_duration_seconds",
			Help:      "Duration of loading and aggregating one variable.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		TimestepsAdmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timesteps_admitted_total",
			Help:      "Timesteps admitted by the time window, per variable.",
		}, []string{"variable"}),
		AggregationCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregation_cache_total",
			Help:      "Aggregation cache lookups by result.",
		}, []string{"result"}),
		MessagesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Octant series messages written to Kafka.",
		}),
	}
}
