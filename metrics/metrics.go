// Package metrics exposes the gateway's Prometheus collectors: request
// counts, witness-generation duration, and oracle size.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the set of collectors the gateway updates as it serves
// requests and runs witness-generation jobs.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal        *prometheus.CounterVec
	WitnessDuration       *prometheus.HistogramVec
	OracleSize            prometheus.Histogram
	ProofRequestsInFlight  prometheus.Gauge
}

// New registers and returns a fresh collector set.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "op_succinct",
			Name:      "requests_total",
			Help:      "Count of gateway requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		WitnessDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "op_succinct",
			Name:      "witness_generation_seconds",
			Help:      "Wall-clock time spent running a witness-generation job, by job kind.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"kind"}),
		OracleSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "op_succinct",
			Name:      "oracle_entries",
			Help:      "Number of preimage entries captured by a completed witness-generation run.",
			Buckets:   prometheus.ExponentialBuckets(64, 2, 14),
		}),
		ProofRequestsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "op_succinct",
			Name:      "proof_requests_in_flight",
			Help:      "Number of span/aggregate proof requests currently being assembled or dispatched.",
		}),
	}
}

// Handler returns the HTTP handler to mount at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
