package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics tracks the detect request path.
//
// Metrics:
//   - wastewatch_detect_requests_total: detect requests by response status
//   - wastewatch_detect_duration_seconds: pipeline duration histogram
//   - wastewatch_artifacts_saved_total: artifacts written and registered
type RequestMetrics struct {
	requestsTotal  *prometheus.CounterVec
	duration       prometheus.Histogram
	artifactsSaved prometheus.Counter
}

// NewRequestMetrics creates and registers request metrics with the provided registry.
func NewRequestMetrics(namespace string, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "detect_requests_total",
				Help:      "Total number of detect requests by response status",
			},
			[]string{"status"},
		),

		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "detect_duration_seconds",
				Help:      "Duration of the detection pipeline in seconds",
				// Model inference dominates: 50ms - 30s
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),

		artifactsSaved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "artifacts_saved_total",
				Help:      "Total number of artifacts written and registered in the index",
			},
		),
	}

	registry.MustRegister(rm.requestsTotal, rm.duration, rm.artifactsSaved)

	return rm
}

// RecordDetect records one detect request.
func (rm *RequestMetrics) RecordDetect(status string, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(status).Inc()
	rm.duration.Observe(duration.Seconds())
}

// RecordArtifactSaved counts one saved artifact.
func (rm *RequestMetrics) RecordArtifactSaved() {
	rm.artifactsSaved.Inc()
}
