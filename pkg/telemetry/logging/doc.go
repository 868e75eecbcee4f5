// Package logging builds the process-wide slog logger.
//
// New returns a *slog.Logger configured from telemetry.logging. The handler
// it installs adds the request ID carried by a context to every record
// logged through the *Context methods, and masks the values of sensitive
// attributes such as API keys and storage secrets.
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json"})
//	slog.SetDefault(logger)
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	slog.InfoContext(ctx, "artifact saved") // includes request_id=req-123
//
// Components derive their own logger with
// slog.Default().With("component", "<name>").
package logging
