package retention

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/wastewatch/pkg/apperr"
	"mercator-hq/wastewatch/pkg/artifact"
	"mercator-hq/wastewatch/pkg/index"
	"mercator-hq/wastewatch/pkg/telemetry/metrics"
	"mercator-hq/wastewatch/pkg/telemetry/tracing"
)

// ErrSweepInProgress is returned by Sweep when another cycle is running.
var ErrSweepInProgress = errors.New("sweep already in progress")

// SweepResult describes one completed cycle.
type SweepResult struct {
	// AsOf is the instant expired records were selected against.
	AsOf time.Time

	// Expired is the number of records selected.
	Expired int

	// FilesDeleted counts successful store deletions, including files that
	// were already gone.
	FilesDeleted int

	// FileErrors counts store deletions that failed.
	FileErrors int

	// RowsDeleted is the number of index rows removed.
	RowsDeleted int64

	Duration time.Duration
}

// Sweeper runs expiry sweep cycles.
type Sweeper struct {
	index   index.Index
	store   artifact.Store
	now     func() time.Time
	metrics *metrics.Collector
	tracer  *tracing.Tracer
	logger  *slog.Logger

	mu sync.Mutex
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithClock sets the time source used to select expired records.
func WithClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) { s.now = now }
}

// WithMetrics records cycle outcomes on c.
func WithMetrics(c *metrics.Collector) SweeperOption {
	return func(s *Sweeper) { s.metrics = c }
}

// WithTracer creates a retention.sweep span per cycle.
func WithTracer(t *tracing.Tracer) SweeperOption {
	return func(s *Sweeper) { s.tracer = t }
}

// NewSweeper creates a sweeper over idx and store.
func NewSweeper(idx index.Index, store artifact.Store, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		index:  idx,
		store:  store,
		now:    time.Now,
		logger: slog.Default().With("component", "retention.sweeper"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep runs one cycle. Errors from the index are returned as
// PersistenceErrors; store deletion failures are only counted.
func (s *Sweeper) Sweep(ctx context.Context) (*SweepResult, error) {
	if !s.mu.TryLock() {
		s.metrics.RecordSweep("skipped", 0, 0, 0, 0)
		return nil, ErrSweepInProgress
	}
	defer s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "retention.sweep")
	defer span.End()

	start := time.Now()
	result := &SweepResult{AsOf: s.now()}

	err := s.sweep(ctx, result)
	result.Duration = time.Since(start)

	span.SetAttributes(
		tracing.AttrSweepExpired.Int(result.Expired),
		tracing.AttrSweepFileErrors.Int(result.FileErrors),
		tracing.AttrSweepRows.Int64(result.RowsDeleted),
	)
	tracing.RecordError(span, err)

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.metrics.RecordSweep(outcome, result.FilesDeleted, result.FileErrors, result.RowsDeleted, result.Duration)

	if err != nil {
		return result, err
	}

	if count, cerr := s.index.Count(ctx); cerr == nil {
		s.metrics.SetIndexRecords(count)
	}
	return result, nil
}

func (s *Sweeper) sweep(ctx context.Context, result *SweepResult) error {
	expired, err := s.index.QueryExpired(ctx, result.AsOf)
	if err != nil {
		return apperr.Persistence(err)
	}
	result.Expired = len(expired)
	if len(expired) == 0 {
		return nil
	}

	ids := make([]string, 0, len(expired))
	for _, entry := range expired {
		if err := s.store.Delete(ctx, entry.Location); err != nil {
			result.FileErrors++
			s.logger.Warn("failed to delete expired artifact",
				"id", entry.ID,
				"location", entry.Location,
				"error", err,
			)
		} else {
			result.FilesDeleted++
		}
		ids = append(ids, entry.ID)
	}

	rows, err := s.index.DeleteBatch(ctx, ids)
	result.RowsDeleted = rows
	if err != nil {
		return apperr.Persistence(err)
	}
	return nil
}
