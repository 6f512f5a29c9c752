package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registration pipeline.
type Metrics struct {
	// Records created by lifecycle status
	RegistrationsCreated *prometheus.CounterVec

	// Already-registered students reconciled per batch
	ReconciledTotal prometheus.Counter

	// Batch runs by outcome: "ok", "rejected", "error"
	BatchRuns *prometheus.CounterVec

	// Students per batch
	BatchSize prometheus.Histogram

	// End-to-end batch duration
	BatchDuration prometheus.Histogram
}

// New registers and returns the registration metrics.
func New() *Metrics {
	return &Metrics{
		RegistrationsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "zonasi_registrations_created_total",
			Help: "Registration records created by status",
		}, []string{"status"}),

		ReconciledTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "zonasi_registrations_reconciled_total",
			Help: "Existing registrations reconciled to VERIF_SD by batch runs",
		}),

		BatchRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "zonasi_batch_runs_total",
			Help: "Batch registration runs by outcome",
		}, []string{"outcome"}),

		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "zonasi_batch_size_students",
			Help:    "Students submitted per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		BatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "zonasi_batch_duration_seconds",
			Help:    "End-to-end batch registration duration",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
	}
}

// IncCreated records created registrations.
func (m *Metrics) IncCreated(status string, n float64) {
	if m != nil {
		m.RegistrationsCreated.WithLabelValues(status).Add(n)
	}
}

// AddReconciled records reconciled registrations.
func (m *Metrics) AddReconciled(n float64) {
	if m != nil {
		m.ReconciledTotal.Add(n)
	}
}

// ObserveBatch records one batch run.
func (m *Metrics) ObserveBatch(outcome string, size int, d time.Duration) {
	if m != nil {
		m.BatchRuns.WithLabelValues(outcome).Inc()
		m.BatchSize.Observe(float64(size))
		m.BatchDuration.Observe(d.Seconds())
	}
}
