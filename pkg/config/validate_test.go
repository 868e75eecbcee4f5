package config

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate_Defaults(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("default configuration should be valid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "empty listen address",
			mutate: func(c *Config) { c.Server.ListenAddress = "" },
			field:  "server.listen_address",
		},
		{
			name:   "negative read timeout",
			mutate: func(c *Config) { c.Server.ReadTimeout = -1 },
			field:  "server.read_timeout",
		},
		{
			name:   "zero upload limit",
			mutate: func(c *Config) { c.Server.MaxUploadBytes = 0 },
			field:  "server.max_upload_bytes",
		},
		{
			name:   "negative pixel limit",
			mutate: func(c *Config) { c.Server.MaxImagePixels = -1 },
			field:  "server.max_image_pixels",
		},
		{
			name: "retention period overflows duration",
			mutate: func(c *Config) {
				p := 153722868
				c.Retention.PeriodMinutes = &p
			},
			field: "retention.period_minutes",
		},
		{
			name: "wildcard origin with credentials",
			mutate: func(c *Config) {
				c.Server.CORS.AllowedOrigins = []string{"*"}
				c.Server.CORS.AllowCredentials = true
			},
			field: "server.cors.allow_credentials",
		},
		{
			name:   "detector url without scheme",
			mutate: func(c *Config) { c.Detector.URL = "detector:5000" },
			field:  "detector.url",
		},
		{
			name:   "confidence above one",
			mutate: func(c *Config) { c.Detector.Confidence = 1.5 },
			field:  "detector.confidence",
		},
		{
			name:   "unknown backend",
			mutate: func(c *Config) { c.Artifacts.Backend = "ftp" },
			field:  "artifacts.backend",
		},
		{
			name:   "relative access path",
			mutate: func(c *Config) { c.Artifacts.AccessPath = "static" },
			field:  "artifacts.access_path",
		},
		{
			name:   "s3 without bucket",
			mutate: func(c *Config) { c.Artifacts.Backend = "s3"; c.Artifacts.S3.Endpoint = "minio:9000" },
			field:  "artifacts.s3.bucket",
		},
		{
			name:   "unknown index driver",
			mutate: func(c *Config) { c.Index.Driver = "mysql" },
			field:  "index.driver",
		},
		{
			name:   "pgx without dsn",
			mutate: func(c *Config) { c.Index.Driver = "pgx"; c.Index.DSN = "" },
			field:  "index.dsn",
		},
		{
			name: "negative retention",
			mutate: func(c *Config) {
				p := -5
				c.Retention.PeriodMinutes = &p
			},
			field: "retention.period_minutes",
		},
		{
			name:   "zero sweep interval",
			mutate: func(c *Config) { c.Retention.SweepInterval = 0 },
			field:  "retention.sweep_interval",
		},
		{
			name: "bad reconcile schedule",
			mutate: func(c *Config) {
				c.Retention.Reconcile.Enabled = true
				c.Retention.Reconcile.Schedule = "every so often"
			},
			field: "retention.reconcile.schedule",
		},
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Telemetry.Logging.Level = "verbose" },
			field:  "telemetry.logging.level",
		},
		{
			name:   "bad sampler",
			mutate: func(c *Config) { c.Telemetry.Tracing.Sampler = "sometimes" },
			field:  "telemetry.tracing.sampler",
		},
		{
			name:   "blank api key",
			mutate: func(c *Config) { c.Security.APIKeys = []string{"ok", " "} },
			field:  "security.api_keys[1]",
		},
		{
			name:   "tls without cert",
			mutate: func(c *Config) { c.Security.TLS.Enabled = true; c.Security.TLS.KeyFile = "k.pem" },
			field:  "security.tls.cert_file",
		},
		{
			name: "tls 1.1",
			mutate: func(c *Config) {
				c.Security.TLS = TLSConfig{Enabled: true, CertFile: "c.pem", KeyFile: "k.pem", MinVersion: "1.1"}
			},
			field: "security.tls.min_version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}

			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %q, got %v", tt.field, verr.Errors)
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if got := single.Error(); got != "configuration validation failed: a: bad" {
		t.Errorf("unexpected single error message %q", got)
	}

	multi := ValidationError{Errors: []FieldError{
		{Field: "a", Message: "bad"},
		{Field: "b", Message: "worse"},
	}}
	msg := multi.Error()
	if !strings.Contains(msg, "2 errors") || !strings.Contains(msg, "b: worse") {
		t.Errorf("unexpected multi error message %q", msg)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	disabled := false
	zero := 0
	cfg := &Config{}
	cfg.Telemetry.Metrics.Enabled = &disabled
	cfg.Retention.PeriodMinutes = &zero
	cfg.Index.Driver = "pgx"

	ApplyDefaults(cfg)

	if cfg.Telemetry.Metrics.MetricsEnabled() {
		t.Error("explicitly disabled metrics should stay disabled")
	}
	if cfg.Retention.RetentionPeriod() != 0 {
		t.Error("explicit zero retention should stay zero")
	}
	if cfg.Index.DSN != "" {
		t.Errorf("pgx DSN should not default to a file path, got %q", cfg.Index.DSN)
	}
	if !cfg.Index.WALEnabled() {
		t.Error("WAL should default to enabled")
	}
	if cfg.Security.AuthEnabled() {
		t.Error("auth should be disabled without keys")
	}
}
