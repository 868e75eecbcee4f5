package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateDetector(&cfg.Detector)...)
	errs = append(errs, validateArtifacts(&cfg.Artifacts)...)
	errs = append(errs, validateIndex(&cfg.Index)...)
	errs = append(errs, validateRetention(&cfg.Retention)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateSecurity(&cfg.Security)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.idle_timeout",
			Message: "idle timeout must be positive",
		})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "shutdown timeout must be positive",
		})
	}

	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}
	if cfg.MaxHeaderBytes > 10*1024*1024 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes exceeds reasonable limit (10MB)",
		})
	}
	if cfg.MaxUploadBytes <= 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_upload_bytes",
			Message: "max upload bytes must be positive",
		})
	}
	if cfg.MaxImagePixels <= 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_image_pixels",
			Message: "max image pixels must be positive",
		})
	}

	if cfg.CORS.MaxAge < 0 {
		errs = append(errs, FieldError{
			Field:   "server.cors.max_age",
			Message: "max age must be non-negative",
		})
	}
	for _, origin := range cfg.CORS.AllowedOrigins {
		if origin == "*" && cfg.CORS.AllowCredentials {
			errs = append(errs, FieldError{
				Field:   "server.cors.allow_credentials",
				Message: "credentials cannot be allowed with a wildcard origin",
			})
			break
		}
	}

	return errs
}

func validateDetector(cfg *DetectorConfig) []FieldError {
	var errs []FieldError

	if cfg.URL == "" {
		errs = append(errs, FieldError{
			Field:   "detector.url",
			Message: "detector URL is required",
		})
	} else if err := validateHTTPURL(cfg.URL); err != nil {
		errs = append(errs, FieldError{
			Field:   "detector.url",
			Message: err.Error(),
		})
	}

	if cfg.HealthURL != "" {
		if err := validateHTTPURL(cfg.HealthURL); err != nil {
			errs = append(errs, FieldError{
				Field:   "detector.health_url",
				Message: err.Error(),
			})
		}
	}

	if cfg.Timeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "detector.timeout",
			Message: "timeout must be positive",
		})
	}

	if cfg.Confidence < 0 || cfg.Confidence > 1.0 {
		errs = append(errs, FieldError{
			Field:   "detector.confidence",
			Message: "confidence must be between 0.0 and 1.0",
		})
	}

	return errs
}

func validateArtifacts(cfg *ArtifactsConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "file":
		if cfg.SavePath == "" {
			errs = append(errs, FieldError{
				Field:   "artifacts.save_path",
				Message: "save path is required for the file backend",
			})
		}
		if !strings.HasPrefix(cfg.AccessPath, "/") {
			errs = append(errs, FieldError{
				Field:   "artifacts.access_path",
				Message: fmt.Sprintf("access path %q must start with '/'", cfg.AccessPath),
			})
		}
	case "s3":
		if cfg.S3.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   "artifacts.s3.endpoint",
				Message: "endpoint is required for the s3 backend",
			})
		}
		if cfg.S3.Bucket == "" {
			errs = append(errs, FieldError{
				Field:   "artifacts.s3.bucket",
				Message: "bucket is required for the s3 backend",
			})
		}
		if cfg.S3.PublicURL != "" {
			if err := validateHTTPURL(cfg.S3.PublicURL); err != nil {
				errs = append(errs, FieldError{
					Field:   "artifacts.s3.public_url",
					Message: err.Error(),
				})
			}
		}
	default:
		errs = append(errs, FieldError{
			Field:   "artifacts.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'file' or 's3'", cfg.Backend),
		})
	}

	return errs
}

func validateIndex(cfg *IndexConfig) []FieldError {
	var errs []FieldError

	validDrivers := map[string]bool{"sqlite3": true, "sqlite": true, "pgx": true, "memory": true}
	if !validDrivers[cfg.Driver] {
		errs = append(errs, FieldError{
			Field:   "index.driver",
			Message: fmt.Sprintf("invalid driver %q: must be 'sqlite3', 'sqlite', 'pgx', or 'memory'", cfg.Driver),
		})
	} else if cfg.Driver != "memory" && cfg.DSN == "" {
		errs = append(errs, FieldError{
			Field:   "index.dsn",
			Message: fmt.Sprintf("dsn is required for driver %q", cfg.Driver),
		})
	}

	if cfg.MaxOpenConns < 0 {
		errs = append(errs, FieldError{
			Field:   "index.max_open_conns",
			Message: "max open connections must be non-negative",
		})
	}
	if cfg.MaxIdleConns < 0 {
		errs = append(errs, FieldError{
			Field:   "index.max_idle_conns",
			Message: "max idle connections must be non-negative",
		})
	}
	if cfg.BusyTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "index.busy_timeout",
			Message: "busy timeout must be non-negative",
		})
	}

	return errs
}

func validateRetention(cfg *RetentionConfig) []FieldError {
	var errs []FieldError

	if cfg.PeriodMinutes != nil && *cfg.PeriodMinutes < 0 {
		errs = append(errs, FieldError{
			Field:   "retention.period_minutes",
			Message: "retention period must be non-negative",
		})
	}
	if cfg.PeriodMinutes != nil && *cfg.PeriodMinutes > MaxRetentionPeriodMinutes {
		errs = append(errs, FieldError{
			Field:   "retention.period_minutes",
			Message: fmt.Sprintf("retention period must be at most %d minutes", MaxRetentionPeriodMinutes),
		})
	}

	if cfg.SweepInterval <= 0 {
		errs = append(errs, FieldError{
			Field:   "retention.sweep_interval",
			Message: "sweep interval must be positive",
		})
	}

	if cfg.Reconcile.Enabled {
		if _, err := cron.ParseStandard(cfg.Reconcile.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "retention.reconcile.schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.Reconcile.Schedule, err),
			})
		}
	}
	if cfg.Reconcile.Grace < 0 {
		errs = append(errs, FieldError{
			Field:   "retention.reconcile.grace",
			Message: "grace period must be non-negative",
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.Logging.Level == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: "logging level is required",
		})
	} else if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if cfg.Logging.Format == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: "logging format is required",
		})
	} else if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.MetricsEnabled() && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with '/' when metrics are enabled",
		})
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	validSamplers := map[string]bool{"always": true, "never": true, "ratio": true}
	if !validSamplers[cfg.Tracing.Sampler] {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	return errs
}

func validateSecurity(cfg *SecurityConfig) []FieldError {
	var errs []FieldError

	for i, key := range cfg.APIKeys {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("security.api_keys[%d]", i),
				Message: "API key must not be blank",
			})
		}
	}

	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" {
			errs = append(errs, FieldError{
				Field:   "security.tls.cert_file",
				Message: "TLS certificate file is required when TLS is enabled",
			})
		}
		if cfg.TLS.KeyFile == "" {
			errs = append(errs, FieldError{
				Field:   "security.tls.key_file",
				Message: "TLS key file is required when TLS is enabled",
			})
		}
		if v := cfg.TLS.MinVersion; v != "1.2" && v != "1.3" {
			errs = append(errs, FieldError{
				Field:   "security.tls.min_version",
				Message: fmt.Sprintf("unsupported TLS version %q (want 1.2 or 1.3)", v),
			})
		}
		if cfg.TLS.ReloadInterval < 0 {
			errs = append(errs, FieldError{
				Field:   "security.tls.reload_interval",
				Message: "reload interval must be non-negative",
			})
		}
	}

	return errs
}

// validateHTTPURL checks that raw is an absolute http or https URL.
func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %v", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL %q: host is required", raw)
	}
	return nil
}
