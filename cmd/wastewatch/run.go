package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"mercator-hq/wastewatch/pkg/artifact"
	"mercator-hq/wastewatch/pkg/cli"
	"mercator-hq/wastewatch/pkg/config"
	"mercator-hq/wastewatch/pkg/detect"
	"mercator-hq/wastewatch/pkg/detection"
	"mercator-hq/wastewatch/pkg/index"
	"mercator-hq/wastewatch/pkg/retention"
	"mercator-hq/wastewatch/pkg/server"
	"mercator-hq/wastewatch/pkg/telemetry/health"
	"mercator-hq/wastewatch/pkg/telemetry/metrics"
	"mercator-hq/wastewatch/pkg/telemetry/tracing"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the wastewatch server",
	Long: `Start the detection server and the background retention sweep.

Examples:
  # Start with defaults (and .env / WASTEWATCH_* overrides)
  wastewatch run

  # Start with a config file
  wastewatch run --config /etc/wastewatch/config.yaml

  # Override listen address
  wastewatch run --listen 0.0.0.0:8080

  # Validate config without starting server
  wastewatch run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
		if err := setupLogging(cfg); err != nil {
			return err
		}
	}

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	if err := serve(ctx, cfg); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

// serve wires every component from cfg and blocks until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting wastewatch",
		"version", Version,
		"retention", cfg.Retention.RetentionPeriod().String(),
		"sweep_interval", cfg.Retention.SweepInterval.String(),
		"artifacts_backend", cfg.Artifacts.Backend,
		"index_driver", cfg.Index.Driver,
	)

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Telemetry.Tracing.Timeout)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	store, idx, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	// The model must be reachable before the server accepts traffic.
	detector, err := detection.NewHTTPDetector(ctx, detection.HTTPConfig{
		URL:       cfg.Detector.URL,
		HealthURL: cfg.Detector.HealthURL,
		Timeout:   cfg.Detector.Timeout,
	})
	if err != nil {
		return err
	}

	svc, err := detect.New(detect.Config{
		Detector:   detector,
		Store:      store,
		Index:      idx,
		Retention:  cfg.Retention.RetentionPeriod(),
		Confidence: cfg.Detector.Confidence,
		Metrics:    collector,
		Tracer:     tracer,
	})
	if err != nil {
		return err
	}

	sweeper := retention.NewSweeper(idx, store,
		retention.WithMetrics(collector),
		retention.WithTracer(tracer),
	)

	var reconciler *retention.Reconciler
	if cfg.Retention.Reconcile.Enabled {
		reconciler = retention.NewReconciler(idx, store, cfg.Retention.Reconcile.Grace, collector)
		if _, err := reconciler.Reconcile(ctx); err != nil {
			slog.Warn("startup reconciliation failed", "error", err)
		}
	}

	scheduler := retention.NewScheduler(sweeper, reconciler, retention.SchedulerConfig{
		SweepInterval:     cfg.Retention.SweepInterval,
		ReconcileSchedule: cfg.Retention.Reconcile.Schedule,
	})
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start retention scheduler: %w", err)
	}
	defer scheduler.Stop()
	if next := scheduler.NextSweep(); next != nil {
		slog.Debug("retention scheduler started", "next_sweep", next)
	}

	var staticDir string
	if fs, ok := store.(*artifact.FileStore); ok {
		staticDir = fs.Root()
		if cfg.Retention.Reconcile.Watch {
			startWatcher(ctx, fs.Root(), idx)
		}
	}

	checker := health.New(health.DefaultCheckTimeout)
	checker.Register("index", true, idx.Ping)
	checker.Register("artifact_store", true, store.Ping)
	if cfg.Detector.HealthURL != "" {
		checker.Register("detector", false, detectorProbe(cfg.Detector.HealthURL, cfg.Detector.Timeout))
	}

	srv := server.New(cfg, server.Deps{
		Detector:  svc,
		Health:    checker,
		Metrics:   collector,
		StaticDir: staticDir,
		Build:     server.BuildInfo{Version: Version, Commit: GitCommit, BuildTime: BuildDate},
	})
	return srv.Start(ctx)
}

func startWatcher(ctx context.Context, dir string, idx index.Index) {
	w, err := retention.NewWatcher(dir, idx)
	if err != nil {
		slog.Warn("artifact watcher disabled", "error", err)
		return
	}
	go func() {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("artifact watcher stopped", "error", err)
		}
	}()
}
