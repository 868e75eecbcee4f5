// Package tracing provides OpenTelemetry tracing for wastewatch.
//
// Tracing is off by default. When telemetry.tracing.enabled is set, spans
// are batched and exported over OTLP gRPC to telemetry.tracing.endpoint, and
// W3C Trace Context is extracted from incoming requests and injected into
// calls to the detection model.
//
// # Spans
//
//   - detect.pipeline: one detect request end to end
//   - detector.detect: the call to the detection model
//   - artifact.save: writing the annotated image
//   - index.insert: registering the artifact
//   - retention.sweep: one expiry sweep cycle
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "artifact.save")
//	defer span.End()
//
// A nil *Tracer is valid and produces noop spans.
package tracing
