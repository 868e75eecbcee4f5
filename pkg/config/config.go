package config

import "time"

// Config is the root configuration structure for wastewatch.
// It is read once at process start and treated as immutable afterwards.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, upload limits and CORS.
	Server ServerConfig `yaml:"server"`

	// Detector contains configuration for the external object-detection model.
	Detector DetectorConfig `yaml:"detector"`

	// Artifacts contains configuration for where annotated images are written
	// and how they are exposed to clients.
	Artifacts ArtifactsConfig `yaml:"artifacts"`

	// Index contains configuration for the retention index database.
	Index IndexConfig `yaml:"index"`

	// Retention contains the artifact retention period and sweep settings.
	Retention RetentionConfig `yaml:"retention"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Security contains API key and TLS configuration.
	Security SecurityConfig `yaml:"security"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. It also bounds the request context handed to the detector.
	// Default: 60s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxUploadBytes limits the size of an uploaded image.
	// Default: 20971520 (20MB)
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// MaxImagePixels limits the declared width × height of an uploaded
	// image. It is checked from the image header before decoding, since a
	// small compressed file can declare huge dimensions.
	// Default: 40000000 (40MP)
	MaxImagePixels int64 `yaml:"max_image_pixels"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS configuration. CORS is enabled only when at
// least one origin is configured.
type CORSConfig struct {
	// AllowedOrigins is a list of allowed origins. Use ["*"] to allow all.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods.
	// Default: ["GET", "POST", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is a list of allowed request headers.
	// Default: ["Content-Type", "X-API-Key", "X-Request-ID"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// MaxAge is the preflight cache duration in seconds.
	// Default: 3600
	MaxAge int `yaml:"max_age"`

	// AllowCredentials controls whether credentials are allowed.
	AllowCredentials bool `yaml:"allow_credentials"`
}

// DetectorConfig contains configuration for the detection model client.
type DetectorConfig struct {
	// URL is the inference endpoint that receives images.
	// Default: "http://127.0.0.1:5000/predict"
	URL string `yaml:"url"`

	// HealthURL is probed once at startup. A failed probe is fatal.
	// Empty disables the probe.
	HealthURL string `yaml:"health_url"`

	// Timeout bounds a single inference call.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// Confidence is the minimum detection confidence (0-1) passed to the model.
	// Default: 0.5
	Confidence float64 `yaml:"confidence"`
}

// ArtifactsConfig contains configuration for produced image storage.
type ArtifactsConfig struct {
	// Backend selects the storage backend.
	// Options: "file", "s3"
	// Default: "file"
	Backend string `yaml:"backend"`

	// SavePath is the directory annotated images are written to (file backend).
	// Default: "static/PREDICTIONS"
	SavePath string `yaml:"save_path"`

	// AccessPath is the public URL path prefix under which saved images are
	// served (file backend).
	// Default: "/static/PREDICTIONS"
	AccessPath string `yaml:"access_path"`

	// S3 contains S3-compatible object storage settings (s3 backend).
	S3 S3Config `yaml:"s3"`
}

// S3Config contains S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl"`

	// PublicURL is the base URL clients use to fetch objects,
	// e.g. "https://cdn.example.com/predictions".
	PublicURL string `yaml:"public_url"`
}

// IndexConfig contains configuration for the retention index.
type IndexConfig struct {
	// Driver selects the database/sql driver.
	// Options: "sqlite3" (cgo), "sqlite" (pure Go), "pgx" (PostgreSQL), "memory"
	// Default: "sqlite3"
	Driver string `yaml:"driver"`

	// DSN is the database file path for SQLite drivers or the connection
	// string for PostgreSQL.
	// Default: "data/artifacts.db"
	DSN string `yaml:"dsn"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables SQLite write-ahead logging.
	// Default: true
	WALMode *bool `yaml:"wal_mode"`

	// BusyTimeout is how long SQLite waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RetentionConfig contains the artifact retention policy.
type RetentionConfig struct {
	// PeriodMinutes is how long an artifact is kept after it is produced.
	// 0 means an artifact expires as soon as it is registered.
	// At most MaxRetentionPeriodMinutes.
	// Default: 5
	PeriodMinutes *int `yaml:"period_minutes"`

	// SweepInterval is the fixed delay between expiry sweeps.
	// Default: 60s
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// Reconcile contains orphan/dangling repair settings.
	Reconcile ReconcileConfig `yaml:"reconcile"`
}

// ReconcileConfig controls the store/index reconciliation pass.
type ReconcileConfig struct {
	// Enabled turns on the reconciliation pass at startup and on Schedule.
	Enabled bool `yaml:"enabled"`

	// Schedule is a cron expression for periodic reconciliation.
	// Default: "@every 15m"
	Schedule string `yaml:"schedule"`

	// Grace is how old an unindexed file must be before it is treated as an
	// orphan, so in-flight requests are never raced.
	// Default: 10m
	Grace time.Duration `yaml:"grace"`

	// Watch enables a filesystem watcher on the save directory that drops
	// index rows for files removed outside the service (file backend only).
	Watch bool `yaml:"watch"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the HTTP path for the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "wastewatch"
	Namespace string `yaml:"namespace"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "wastewatch"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure"`

	// Timeout bounds span export calls.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// SecurityConfig contains security-related configuration.
type SecurityConfig struct {
	// APIKeys lists the keys accepted in the x-api-key header.
	// When empty, authentication is disabled.
	APIKeys []string `yaml:"api_keys"`

	// TLS contains TLS settings for the HTTP server.
	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig contains TLS configuration.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// MinVersion is the minimum TLS version to accept.
	// Options: "1.2", "1.3"
	// Default: "1.2"
	MinVersion string `yaml:"min_version"`

	// ReloadInterval is how often the certificate files are checked for
	// changes, so renewed certificates are picked up without a restart.
	// Default: 5m
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

// RetentionPeriod returns the configured retention period.
func (c *RetentionConfig) RetentionPeriod() time.Duration {
	if c.PeriodMinutes == nil {
		return time.Duration(DefaultRetentionPeriodMinutes) * time.Minute
	}
	return time.Duration(*c.PeriodMinutes) * time.Minute
}

// MetricsEnabled reports whether metrics collection is on.
func (c *MetricsConfig) MetricsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// WALEnabled reports whether SQLite WAL mode is on.
func (c *IndexConfig) WALEnabled() bool {
	return c.WALMode == nil || *c.WALMode
}

// AuthEnabled reports whether API key authentication is enforced.
func (c *SecurityConfig) AuthEnabled() bool {
	return len(c.APIKeys) > 0
}
