// Package metrics provides Prometheus metrics collection for wastewatch.
//
// # Metrics Categories
//
//   - Request metrics: detect request count by status, pipeline duration,
//     artifacts saved
//   - Retention metrics: sweep cycles, files and rows removed, sweep
//     duration, reconciliation removals, current index size
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordDetect("200", 850*time.Millisecond)
//	collector.RecordSweep("success", 3, 0, 3, 12*time.Millisecond)
//
//	mux.Handle("/metrics", collector.Handler())
//
// A nil *Collector is valid and records nothing.
package metrics
