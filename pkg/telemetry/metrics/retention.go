package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RetentionMetrics tracks the expiry sweeper and the reconciler.
//
// Metrics:
//   - wastewatch_sweep_cycles_total: sweep cycles by result
//   - wastewatch_sweep_deleted_total: files and rows removed by sweeps
//   - wastewatch_sweep_duration_seconds: sweep cycle duration histogram
//   - wastewatch_reconcile_removed_total: orphans and dangling rows removed
//   - wastewatch_index_records: records currently in the index
type RetentionMetrics struct {
	cycles       *prometheus.CounterVec
	deleted      *prometheus.CounterVec
	duration     prometheus.Histogram
	reconciled   *prometheus.CounterVec
	indexRecords prometheus.Gauge
}

// NewRetentionMetrics creates and registers retention metrics with the provided registry.
func NewRetentionMetrics(namespace string, registry *prometheus.Registry) *RetentionMetrics {
	rm := &RetentionMetrics{
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_cycles_total",
				Help:      "Total number of expiry sweep cycles by result",
			},
			[]string{"result"},
		),

		deleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_deleted_total",
				Help:      "Total number of items handled by expiry sweeps",
			},
			[]string{"kind"}, // file, file_error, row
		),

		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sweep_duration_seconds",
				Help:      "Duration of expiry sweep cycles in seconds",
				Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
		),

		reconciled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_removed_total",
				Help:      "Total number of orphan files and dangling rows removed by reconciliation",
			},
			[]string{"kind"},
		),

		indexRecords: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "index_records",
				Help:      "Number of artifact records currently in the retention index",
			},
		),
	}

	registry.MustRegister(rm.cycles, rm.deleted, rm.duration, rm.reconciled, rm.indexRecords)

	return rm
}

// RecordSweep records one sweep cycle.
func (rm *RetentionMetrics) RecordSweep(result string, files, fileErrors int, rows int64, duration time.Duration) {
	rm.cycles.WithLabelValues(result).Inc()
	if result == "skipped" {
		return
	}
	rm.deleted.WithLabelValues("file").Add(float64(files))
	rm.deleted.WithLabelValues("file_error").Add(float64(fileErrors))
	rm.deleted.WithLabelValues("row").Add(float64(rows))
	rm.duration.Observe(duration.Seconds())
}

// RecordReconcile records removals made by reconciliation.
func (rm *RetentionMetrics) RecordReconcile(kind string, n int) {
	rm.reconciled.WithLabelValues(kind).Add(float64(n))
}

// SetIndexRecords sets the current index size.
func (rm *RetentionMetrics) SetIndexRecords(n int64) {
	rm.indexRecords.Set(float64(n))
}
