package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/wastewatch/pkg/apperr"
	"mercator-hq/wastewatch/pkg/artifact"
	"mercator-hq/wastewatch/pkg/index"
	"mercator-hq/wastewatch/pkg/telemetry/metrics"
)

// ReconcileResult describes one reconciliation pass.
type ReconcileResult struct {
	// OrphanFiles are store objects with no index row that were deleted.
	OrphanFiles []string

	// DanglingRows are index rows with no backing object that were removed.
	DanglingRows []string

	// Errors counts individual repairs that failed.
	Errors int
}

// Reconciler brings the store and the index back into agreement.
type Reconciler struct {
	index   index.Index
	store   artifact.Store
	grace   time.Duration
	now     func() time.Time
	metrics *metrics.Collector
	logger  *slog.Logger

	mu sync.Mutex
}

// NewReconciler creates a reconciler. Objects and rows younger than grace
// are never touched.
func NewReconciler(idx index.Index, store artifact.Store, grace time.Duration, collector *metrics.Collector) *Reconciler {
	return &Reconciler{
		index:   idx,
		store:   store,
		grace:   grace,
		now:     time.Now,
		metrics: collector,
		logger:  slog.Default().With("component", "retention.reconciler"),
	}
}

// Reconcile deletes orphan files and removes dangling rows.
//
// The index is listed before the store. An artifact written between the two
// listings therefore looks like an orphan, never like a dangling row, and the
// grace period keeps it safe.
func (r *Reconciler) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.grace)

	records, err := r.index.List(ctx, 0)
	if err != nil {
		return nil, apperr.Persistence(fmt.Errorf("list index: %w", err))
	}
	objects, err := r.store.List(ctx)
	if err != nil {
		return nil, apperr.Storage(fmt.Errorf("list store: %w", err))
	}

	indexed := make(map[string]struct{}, len(records))
	for _, rec := range records {
		indexed[rec.Location] = struct{}{}
	}
	stored := make(map[string]struct{}, len(objects))
	for _, obj := range objects {
		stored[obj.Location] = struct{}{}
	}

	result := &ReconcileResult{}

	for _, obj := range objects {
		if _, ok := indexed[obj.Location]; ok || obj.ModTime.After(cutoff) {
			continue
		}
		if err := r.store.Delete(ctx, obj.Location); err != nil {
			result.Errors++
			r.logger.Warn("failed to delete orphan artifact", "location", obj.Location, "error", err)
			continue
		}
		result.OrphanFiles = append(result.OrphanFiles, obj.Location)
	}

	for _, rec := range records {
		if _, ok := stored[rec.Location]; ok || rec.CreatedAt.After(cutoff) {
			continue
		}
		if _, err := r.index.DeleteByLocation(ctx, rec.Location); err != nil {
			result.Errors++
			r.logger.Warn("failed to remove dangling row", "id", rec.ID, "location", rec.Location, "error", err)
			continue
		}
		result.DanglingRows = append(result.DanglingRows, rec.Location)
	}

	r.metrics.RecordReconcile("orphan_file", len(result.OrphanFiles))
	r.metrics.RecordReconcile("dangling_row", len(result.DanglingRows))

	if len(result.OrphanFiles) > 0 || len(result.DanglingRows) > 0 || result.Errors > 0 {
		r.logger.Info("reconcile completed",
			"orphan_files", len(result.OrphanFiles),
			"dangling_rows", len(result.DanglingRows),
			"errors", result.Errors,
		)
	}
	return result, nil
}
