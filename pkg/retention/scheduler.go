package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// SchedulerConfig configures the background jobs.
type SchedulerConfig struct {
	// SweepInterval is the period between sweep cycles. Required.
	SweepInterval time.Duration

	// ReconcileSchedule is a cron expression for reconciliation. Empty, or a
	// nil Reconciler, disables the reconcile job.
	ReconcileSchedule string
}

// Scheduler runs the sweeper, and optionally the reconciler, on a schedule.
type Scheduler struct {
	sweeper    *Sweeper
	reconciler *Reconciler
	config     SchedulerConfig
	cron       *cron.Cron
	mu         sync.Mutex
	logger     *slog.Logger
	running    bool
	sweepID    cron.EntryID
	stopped    chan struct{}
}

// NewScheduler creates a scheduler. reconciler may be nil.
func NewScheduler(sweeper *Sweeper, reconciler *Reconciler, cfg SchedulerConfig) *Scheduler {
	return &Scheduler{
		sweeper:    sweeper,
		reconciler: reconciler,
		config:     cfg,
		logger:     slog.Default().With("component", "retention.scheduler"),
	}
}

func (s *Scheduler) newCron() *cron.Cron {
	cl := cronLogger{logger: s.logger}
	return cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
}

// Start registers the jobs and starts the cron loop. The first sweep runs one
// interval after Start. Cancelling ctx stops the scheduler; a cycle already
// running is allowed to finish. Schedules are validated before anything is
// registered, so a failed Start leaves the scheduler idle.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler already running")
	}
	if s.config.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", s.config.SweepInterval)
	}

	var reconcile cron.Schedule
	if s.reconciler != nil && s.config.ReconcileSchedule != "" {
		sched, err := cron.ParseStandard(s.config.ReconcileSchedule)
		if err != nil {
			return fmt.Errorf("invalid reconcile schedule %q: %w", s.config.ReconcileSchedule, err)
		}
		reconcile = sched
	}

	// Cycles are detached from ctx so shutdown never interrupts a cycle
	// between deleting files and removing their rows.
	jobCtx := context.WithoutCancel(ctx)

	s.cron = s.newCron()
	s.sweepID = s.cron.Schedule(cron.Every(s.config.SweepInterval), cron.FuncJob(func() {
		s.runSweep(jobCtx)
	}))
	if reconcile != nil {
		s.cron.Schedule(reconcile, cron.FuncJob(func() {
			s.runReconcile(jobCtx)
		}))
	}

	s.cron.Start()
	s.running = true
	stopped := make(chan struct{})
	s.stopped = stopped

	s.logger.Info("retention scheduler started",
		"sweep_interval", s.config.SweepInterval,
		"reconcile_schedule", s.reconcileSchedule(),
	)

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stopped:
		}
	}()

	return nil
}

func (s *Scheduler) reconcileSchedule() string {
	if s.reconciler == nil {
		return ""
	}
	return s.config.ReconcileSchedule
}

// runSweep executes one sweep cycle. Errors are logged and never stop the
// schedule.
func (s *Scheduler) runSweep(ctx context.Context) {
	result, err := s.sweeper.Sweep(ctx)
	if errors.Is(err, ErrSweepInProgress) {
		s.logger.Debug("sweep skipped, previous cycle still running")
		return
	}
	if err != nil {
		s.logger.Error("sweep cycle failed", "error", err)
		return
	}

	if result.Expired > 0 {
		s.logger.Info("sweep cycle completed",
			"expired", result.Expired,
			"files_deleted", result.FilesDeleted,
			"file_errors", result.FileErrors,
			"rows_deleted", result.RowsDeleted,
			"duration", result.Duration,
		)
	} else {
		s.logger.Debug("sweep cycle completed, nothing expired")
	}
}

func (s *Scheduler) runReconcile(ctx context.Context) {
	if _, err := s.reconciler.Reconcile(ctx); err != nil {
		s.logger.Error("reconcile failed", "error", err)
	}
}

// Stop stops the scheduler and waits for any running job to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		close(s.stopped)
		s.running = false
		s.logger.Info("retention scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextSweep returns the next scheduled sweep, or nil before Start.
func (s *Scheduler) NextSweep() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	next := s.cron.Entry(s.sweepID).Next
	return &next
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
