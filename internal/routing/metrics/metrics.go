package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the routing provider boundary.
type Metrics struct {
	// Requests to the provider by outcome: "ok", "no_route", "upstream_error"
	Requests *prometheus.CounterVec

	// Provider round-trip latency
	Latency prometheus.Histogram

	// Time spent blocked on the rate limiter
	LimiterWait prometheus.Histogram
}

// New registers and returns the routing metrics.
func New() *Metrics {
	return &Metrics{
		Requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "zonasi_routing_requests_total",
			Help: "Routing provider requests by outcome",
		}, []string{"outcome"}),

		Latency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "zonasi_routing_request_duration_seconds",
			Help:    "Routing provider round-trip duration",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		LimiterWait: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "zonasi_routing_limiter_wait_seconds",
			Help:    "Time spent waiting on the routing rate limiter",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60},
		}),
	}
}

// IncRequest records a provider request outcome.
func (m *Metrics) IncRequest(outcome string) {
	if m != nil {
		m.Requests.WithLabelValues(outcome).Inc()
	}
}

// ObserveLatency records a provider round-trip duration.
func (m *Metrics) ObserveLatency(d time.Duration) {
	if m != nil {
		m.Latency.Observe(d.Seconds())
	}
}

// ObserveLimiterWait records time spent blocked on the limiter.
func (m *Metrics) ObserveLimiterWait(d time.Duration) {
	if m != nil {
		m.LimiterWait.Observe(d.Seconds())
	}
}
