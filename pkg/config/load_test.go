package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "0.0.0.0:9000"
  read_timeout: "45s"

detector:
  url: "http://detector:5000/predict"
  confidence: 0.7

artifacts:
  save_path: "/var/lib/wastewatch/predictions"

retention:
  period_minutes: 0
  sweep_interval: "30s"

telemetry:
  logging:
    level: "debug"
    format: "text"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9000" {
		t.Errorf("expected listen address %q, got %q", "0.0.0.0:9000", cfg.Server.ListenAddress)
	}
	if cfg.Server.ReadTimeout != 45*time.Second {
		t.Errorf("expected read timeout 45s, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Detector.Confidence != 0.7 {
		t.Errorf("expected confidence 0.7, got %v", cfg.Detector.Confidence)
	}
	if cfg.Artifacts.SavePath != "/var/lib/wastewatch/predictions" {
		t.Errorf("unexpected save path %q", cfg.Artifacts.SavePath)
	}
	// An explicit zero retention period must survive defaulting.
	if got := cfg.Retention.RetentionPeriod(); got != 0 {
		t.Errorf("expected retention period 0, got %v", got)
	}
	if cfg.Retention.SweepInterval != 30*time.Second {
		t.Errorf("expected sweep interval 30s, got %v", cfg.Retention.SweepInterval)
	}

	// Untouched fields get defaults.
	if cfg.Server.WriteTimeout != DefaultWriteTimeout {
		t.Errorf("expected default write timeout, got %v", cfg.Server.WriteTimeout)
	}
	if cfg.Index.Driver != DefaultIndexDriver {
		t.Errorf("expected default index driver, got %q", cfg.Index.Driver)
	}
	if cfg.Artifacts.AccessPath != DefaultArtifactsAccessPath {
		t.Errorf("expected default access path, got %q", cfg.Artifacts.AccessPath)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected wrapped ErrNotExist, got %v", err)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unterminated")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
retention:
  period_minutes: -1
`)
	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if verr.Errors[0].Field != "retention.period_minutes" {
		t.Errorf("unexpected field %q", verr.Errors[0].Field)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())

	path := writeConfig(t, `
server:
  listen_address: "127.0.0.1:8080"
`)

	t.Setenv("WASTEWATCH_SERVER_LISTEN_ADDRESS", "0.0.0.0:7000")
	t.Setenv("WASTEWATCH_RETENTION_PERIOD", "15")
	t.Setenv("WASTEWATCH_DETECT_CONFIDENCE", "0.25")
	t.Setenv("WASTEWATCH_API_KEY", "alpha, beta")
	t.Setenv("WASTEWATCH_CORS_ORIGINS", "http://a.example,http://b.example")
	t.Setenv("WASTEWATCH_RETENTION_SWEEP_INTERVAL", "2m")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:7000" {
		t.Errorf("expected env listen address, got %q", cfg.Server.ListenAddress)
	}
	if got := cfg.Retention.RetentionPeriod(); got != 15*time.Minute {
		t.Errorf("expected 15m retention, got %v", got)
	}
	if cfg.Detector.Confidence != 0.25 {
		t.Errorf("expected confidence 0.25, got %v", cfg.Detector.Confidence)
	}
	if strings.Join(cfg.Security.APIKeys, "|") != "alpha|beta" {
		t.Errorf("unexpected api keys %v", cfg.Security.APIKeys)
	}
	if len(cfg.Server.CORS.AllowedOrigins) != 2 {
		t.Errorf("expected 2 origins, got %v", cfg.Server.CORS.AllowedOrigins)
	}
	if cfg.Retention.SweepInterval != 2*time.Minute {
		t.Errorf("expected 2m sweep interval, got %v", cfg.Retention.SweepInterval)
	}
}

func TestLoadConfigWithEnvOverrides_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("WASTEWATCH_TEST_DOTENV_PERIOD=42\n"), 0644); err != nil {
		t.Fatal(err)
	}
	// godotenv writes into the process environment; make sure the test
	// variable is restored afterwards.
	t.Setenv("WASTEWATCH_TEST_DOTENV_PERIOD", "")
	os.Unsetenv("WASTEWATCH_TEST_DOTENV_PERIOD")

	if _, err := LoadConfigWithEnvOverrides(""); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if got := os.Getenv("WASTEWATCH_TEST_DOTENV_PERIOD"); got != "42" {
		t.Errorf("expected dotenv value 42, got %q", got)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("WASTEWATCH_ARTIFACTS_BACKEND", "ftp")

	if _, err := LoadConfigWithEnvOverrides(""); err == nil {
		t.Fatal("expected validation error for invalid backend override")
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"a", []string{"a"}},
		{"a,b", []string{"a", "b"}},
		{" a , ,b ", []string{"a", "b"}},
		{",", []string{}},
	}
	for _, tt := range tests {
		got := splitList(tt.in)
		if strings.Join(got, ",") != strings.Join(tt.want, ",") || len(got) != len(tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
