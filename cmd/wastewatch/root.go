package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/wastewatch/pkg/artifact"
	"mercator-hq/wastewatch/pkg/cli"
	"mercator-hq/wastewatch/pkg/config"
	"mercator-hq/wastewatch/pkg/index"
	"mercator-hq/wastewatch/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "wastewatch",
	Short: "Wastewatch - waste detection service with time-boxed artifact retention",
	Long: `Wastewatch detects waste items in uploaded photos, returns the detections
with an annotated image URL and deletes annotated images once their
retention period has passed.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults are used when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
}

// loadConfig loads the configuration and installs the default logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("config", err.Error())
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if err := setupLogging(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config) error {
	logger, err := logging.New(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
		Writer:    os.Stderr,
	})
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)
	return nil
}

// openBackends opens the artifact store and the retention index.
func openBackends(cfg *config.Config) (artifact.Store, index.Index, error) {
	store, err := artifact.Open(&cfg.Artifacts)
	if err != nil {
		return nil, nil, fmt.Errorf("open artifact store: %w", err)
	}
	idx, err := index.Open(&cfg.Index)
	if err != nil {
		return nil, nil, fmt.Errorf("open index: %w", err)
	}
	return store, idx, nil
}
