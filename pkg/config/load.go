package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvFiles are the dotenv files loaded, when present, before environment
// overrides are applied. Variables already set in the process environment
// always win over values from these files.
var EnvFiles = []string{".env", ".env.dev"}

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. An empty path skips the file and starts
// from Default().
//
// The loading sequence is:
// 1. Load YAML from file (or defaults)
// 2. Load dotenv files into the process environment
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		var err error
		cfg, err = LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}

	if err := loadEnvFiles(EnvFiles); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// loadEnvFiles loads each dotenv file that exists. Missing files are skipped.
func loadEnvFiles(files []string) error {
	for _, file := range files {
		if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("failed to load env file %q: %w", file, err)
		}
		slog.Debug("loaded env file", "path", file)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format WASTEWATCH_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("WASTEWATCH_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if d, ok := envDuration("WASTEWATCH_SERVER_WRITE_TIMEOUT"); ok {
		cfg.Server.WriteTimeout = d
	}
	if val := os.Getenv("WASTEWATCH_CORS_ORIGINS"); val != "" {
		cfg.Server.CORS.AllowedOrigins = splitList(val)
	}

	// Detector overrides
	if val := os.Getenv("WASTEWATCH_DETECTOR_URL"); val != "" {
		cfg.Detector.URL = val
	}
	if val := os.Getenv("WASTEWATCH_DETECTOR_HEALTH_URL"); val != "" {
		cfg.Detector.HealthURL = val
	}
	if val := os.Getenv("WASTEWATCH_DETECT_CONFIDENCE"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Detector.Confidence = f
		}
	}

	// Artifact overrides
	if val := os.Getenv("WASTEWATCH_ARTIFACTS_BACKEND"); val != "" {
		cfg.Artifacts.Backend = val
	}
	if val := os.Getenv("WASTEWATCH_ARTIFACTS_SAVE_PATH"); val != "" {
		cfg.Artifacts.SavePath = val
	}
	if val := os.Getenv("WASTEWATCH_ARTIFACTS_ACCESS_PATH"); val != "" {
		cfg.Artifacts.AccessPath = val
	}
	if val := os.Getenv("WASTEWATCH_ARTIFACTS_S3_ENDPOINT"); val != "" {
		cfg.Artifacts.S3.Endpoint = val
	}
	if val := os.Getenv("WASTEWATCH_ARTIFACTS_S3_BUCKET"); val != "" {
		cfg.Artifacts.S3.Bucket = val
	}
	if val := os.Getenv("WASTEWATCH_ARTIFACTS_S3_ACCESS_KEY"); val != "" {
		cfg.Artifacts.S3.AccessKey = val
	}
	if val := os.Getenv("WASTEWATCH_ARTIFACTS_S3_SECRET_KEY"); val != "" {
		cfg.Artifacts.S3.SecretKey = val
	}

	// Index overrides
	if val := os.Getenv("WASTEWATCH_INDEX_DRIVER"); val != "" {
		cfg.Index.Driver = val
	}
	if val := os.Getenv("WASTEWATCH_INDEX_DSN"); val != "" {
		cfg.Index.DSN = val
	}

	// Retention overrides
	if val := os.Getenv("WASTEWATCH_RETENTION_PERIOD"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Retention.PeriodMinutes = &i
		}
	}
	if d, ok := envDuration("WASTEWATCH_RETENTION_SWEEP_INTERVAL"); ok {
		cfg.Retention.SweepInterval = d
	}
	if val := os.Getenv("WASTEWATCH_RETENTION_RECONCILE_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Retention.Reconcile.Enabled = b
		}
	}

	// Telemetry overrides
	if val := os.Getenv("WASTEWATCH_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("WASTEWATCH_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("WASTEWATCH_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = &b
		}
	}
	if val := os.Getenv("WASTEWATCH_TELEMETRY_TRACING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Tracing.Enabled = b
		}
	}
	if val := os.Getenv("WASTEWATCH_TELEMETRY_TRACING_ENDPOINT"); val != "" {
		cfg.Telemetry.Tracing.Endpoint = val
	}

	// Security overrides
	if val := os.Getenv("WASTEWATCH_API_KEY"); val != "" {
		cfg.Security.APIKeys = splitList(val)
	}
	if val := os.Getenv("WASTEWATCH_SECURITY_TLS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Security.TLS.Enabled = b
		}
	}
	if val := os.Getenv("WASTEWATCH_SECURITY_TLS_CERT_FILE"); val != "" {
		cfg.Security.TLS.CertFile = val
	}
	if val := os.Getenv("WASTEWATCH_SECURITY_TLS_KEY_FILE"); val != "" {
		cfg.Security.TLS.KeyFile = val
	}
}

func envDuration(key string) (time.Duration, bool) {
	val := os.Getenv(key)
	if val == "" {
		return 0, false
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, false
	}
	return d, true
}

// splitList splits a comma-separated value, trimming blanks.
func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
