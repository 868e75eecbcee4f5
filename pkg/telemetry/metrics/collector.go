package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mercator-hq/wastewatch/pkg/config"
)

// Collector owns every Prometheus metric exported by wastewatch. A nil
// *Collector, or one built from a disabled config, records nothing, so
// components can call it unconditionally.
type Collector struct {
	enabled  bool
	registry *prometheus.Registry

	requestMetrics   *RequestMetrics
	retentionMetrics *RetentionMetrics
}

// NewCollector creates a collector and registers its metrics with registry.
// If registry is nil, a fresh registry carrying the Go runtime and process
// collectors is created.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = config.DefaultMetricsNamespace
	}

	return &Collector{
		enabled:          cfg.MetricsEnabled(),
		registry:         registry,
		requestMetrics:   NewRequestMetrics(namespace, registry),
		retentionMetrics: NewRetentionMetrics(namespace, registry),
	}
}

// RecordDetect records a finished detect request.
//
// Parameters:
//   - status: HTTP status code class label, e.g. "200", "415", "500"
//   - duration: time spent in the detection pipeline
func (c *Collector) RecordDetect(status string, duration time.Duration) {
	if c == nil || !c.enabled {
		return
	}
	c.requestMetrics.RecordDetect(status, duration)
}

// RecordArtifactSaved counts one artifact written and registered.
func (c *Collector) RecordArtifactSaved() {
	if c == nil || !c.enabled {
		return
	}
	c.requestMetrics.RecordArtifactSaved()
}

// RecordSweep records the outcome of one sweep cycle.
//
// Parameters:
//   - result: "success", "error" or "skipped"
//   - files: files removed from the store
//   - fileErrors: file deletions that failed
//   - rows: index rows removed
//   - duration: wall time of the cycle
func (c *Collector) RecordSweep(result string, files, fileErrors int, rows int64, duration time.Duration) {
	if c == nil || !c.enabled {
		return
	}
	c.retentionMetrics.RecordSweep(result, files, fileErrors, rows, duration)
}

// RecordReconcile records artifacts removed by a reconciliation pass.
//
// Parameters:
//   - kind: "orphan_file" or "dangling_row"
//   - n: number removed
func (c *Collector) RecordReconcile(kind string, n int) {
	if c == nil || !c.enabled {
		return
	}
	c.retentionMetrics.RecordReconcile(kind, n)
}

// SetIndexRecords updates the gauge of records currently in the index.
func (c *Collector) SetIndexRecords(n int64) {
	if c == nil || !c.enabled {
		return
	}
	c.retentionMetrics.SetIndexRecords(n)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
