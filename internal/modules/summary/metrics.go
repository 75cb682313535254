package summary

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records summary cache decisions and generation latency.
type Metrics struct {
	registry    *prometheus.Registry
	decisions   *prometheus.CounterVec
	generations *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// NewMetrics registers the summary collectors on registry, or on a fresh one when nil.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "medvault",
				Subsystem: "summary",
				Name:      "decisions_total",
				Help:      "Staleness decisions by reason",
			},
			[]string{"reason"},
		),
		generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "medvault",
				Subsystem: "summary",
				Name:      "generations_total",
				Help:      "Summary generations by outcome",
			},
			[]string{"outcome"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "medvault",
				Subsystem: "summary",
				Name:      "generation_seconds",
				Help:      "Summary generation latency in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"outcome"},
		),
	}
	registry.MustRegister(m.decisions, m.generations, m.latency)
	return m
}

func (m *Metrics) observeDecision(reason Reason) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(string(reason)).Inc()
}

func (m *Metrics) observeGeneration(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(outcome).Inc()
	m.latency.WithLabelValues(outcome).Observe(seconds)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
