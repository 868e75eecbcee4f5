package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576  // 1MB
	DefaultMaxUploadBytes  = 20971520 // 20MB
	DefaultMaxImagePixels  = 40000000 // 40MP
	DefaultCORSMaxAge      = 3600

	// Detector defaults
	DefaultDetectorURL        = "http://127.0.0.1:5000/predict"
	DefaultDetectorTimeout    = 30 * time.Second
	DefaultDetectorConfidence = 0.5

	// Artifact defaults
	DefaultArtifactsBackend    = "file"
	DefaultArtifactsSavePath   = "static/PREDICTIONS"
	DefaultArtifactsAccessPath = "/static/PREDICTIONS"
	DefaultS3Region            = "us-east-1"

	// Index defaults
	DefaultIndexDriver       = "sqlite3"
	DefaultIndexDSN          = "data/artifacts.db"
	DefaultIndexMaxOpenConns = 10
	DefaultIndexMaxIdleConns = 5
	DefaultIndexBusyTimeout  = 5 * time.Second

	// Retention defaults
	DefaultRetentionPeriodMinutes = 5
	MaxRetentionPeriodMinutes     = 100 * 365 * 24 * 60 // 100 years
	DefaultSweepInterval          = 60 * time.Second
	DefaultReconcileSchedule      = "@every 15m"
	DefaultReconcileGrace         = 10 * time.Minute

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "wastewatch"
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingServiceName = "wastewatch"
	DefaultTracingTimeout     = 10 * time.Second

	// Security defaults
	DefaultTLSMinVersion     = "1.2"
	DefaultTLSReloadInterval = 5 * time.Minute
)

// Default slice values. Slices cannot be constants.
var (
	DefaultCORSAllowedMethods = []string{"GET", "POST", "OPTIONS"}
	DefaultCORSAllowedHeaders = []string{"Content-Type", "X-API-Key", "X-Request-ID"}
)

// ApplyDefaults fills every unset field of cfg with its default value.
// Fields that were explicitly set are left untouched.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Server.MaxImagePixels == 0 {
		cfg.Server.MaxImagePixels = DefaultMaxImagePixels
	}
	if len(cfg.Server.CORS.AllowedMethods) == 0 {
		cfg.Server.CORS.AllowedMethods = append([]string(nil), DefaultCORSAllowedMethods...)
	}
	if len(cfg.Server.CORS.AllowedHeaders) == 0 {
		cfg.Server.CORS.AllowedHeaders = append([]string(nil), DefaultCORSAllowedHeaders...)
	}
	if cfg.Server.CORS.MaxAge == 0 {
		cfg.Server.CORS.MaxAge = DefaultCORSMaxAge
	}

	// Detector defaults
	if cfg.Detector.URL == "" {
		cfg.Detector.URL = DefaultDetectorURL
	}
	if cfg.Detector.Timeout == 0 {
		cfg.Detector.Timeout = DefaultDetectorTimeout
	}
	if cfg.Detector.Confidence == 0 {
		cfg.Detector.Confidence = DefaultDetectorConfidence
	}

	// Artifact defaults
	if cfg.Artifacts.Backend == "" {
		cfg.Artifacts.Backend = DefaultArtifactsBackend
	}
	if cfg.Artifacts.SavePath == "" {
		cfg.Artifacts.SavePath = DefaultArtifactsSavePath
	}
	if cfg.Artifacts.AccessPath == "" {
		cfg.Artifacts.AccessPath = DefaultArtifactsAccessPath
	}
	if cfg.Artifacts.S3.Region == "" {
		cfg.Artifacts.S3.Region = DefaultS3Region
	}

	// Index defaults
	if cfg.Index.Driver == "" {
		cfg.Index.Driver = DefaultIndexDriver
	}
	if cfg.Index.DSN == "" && cfg.Index.Driver != "pgx" {
		cfg.Index.DSN = DefaultIndexDSN
	}
	if cfg.Index.MaxOpenConns == 0 {
		cfg.Index.MaxOpenConns = DefaultIndexMaxOpenConns
	}
	if cfg.Index.MaxIdleConns == 0 {
		cfg.Index.MaxIdleConns = DefaultIndexMaxIdleConns
	}
	if cfg.Index.BusyTimeout == 0 {
		cfg.Index.BusyTimeout = DefaultIndexBusyTimeout
	}

	// Retention defaults
	if cfg.Retention.PeriodMinutes == nil {
		period := DefaultRetentionPeriodMinutes
		cfg.Retention.PeriodMinutes = &period
	}
	if cfg.Retention.SweepInterval == 0 {
		cfg.Retention.SweepInterval = DefaultSweepInterval
	}
	if cfg.Retention.Reconcile.Schedule == "" {
		cfg.Retention.Reconcile.Schedule = DefaultReconcileSchedule
	}
	if cfg.Retention.Reconcile.Grace == 0 {
		cfg.Retention.Reconcile.Grace = DefaultReconcileGrace
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}

	// Security defaults
	if cfg.Security.TLS.MinVersion == "" {
		cfg.Security.TLS.MinVersion = DefaultTLSMinVersion
	}
	if cfg.Security.TLS.ReloadInterval == 0 {
		cfg.Security.TLS.ReloadInterval = DefaultTLSReloadInterval
	}
}

// Default returns a configuration with every field set to its default.
// It is used when no configuration file is present.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
