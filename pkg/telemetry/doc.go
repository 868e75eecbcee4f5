// Package telemetry groups the observability packages used by wastewatch.
//
//   - logging: slog setup with request IDs and secret redaction
//   - metrics: Prometheus collectors for requests and retention
//   - tracing: OpenTelemetry spans exported over OTLP
//   - health: liveness and readiness probes
package telemetry
