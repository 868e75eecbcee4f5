package retention

import (
	"context"
	"os"
	"testing"
	"time"

	"mercator-hq/wastewatch/pkg/index"
)

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)
	idx := index.NewMemoryIndex()
	now := time.Now()

	// Healthy artifact: file and row.
	_, healthy := saveAndIndex(t, store, idx, now.Add(time.Hour))

	// Old orphan: file only, older than grace.
	oldOrphan, err := store.Save(ctx, smallImage())
	if err != nil {
		t.Fatal(err)
	}
	old := now.Add(-time.Hour)
	if err := os.Chtimes(oldOrphan, old, old); err != nil {
		t.Fatal(err)
	}

	// Fresh orphan: possibly an in-flight request.
	freshOrphan, err := store.Save(ctx, smallImage())
	if err != nil {
		t.Fatal(err)
	}

	// Dangling row: file removed by hand, registered long ago.
	if _, err := idx.Insert(ctx, store.Root()+"/gone.png", now.Add(-time.Hour), now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	// Fresh dangling row: too young to judge.
	if _, err := idx.Insert(ctx, store.Root()+"/pending.png", now, now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	r := NewReconciler(idx, store, 10*time.Minute, nil)
	result, err := r.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile() failed: %v", err)
	}

	if len(result.OrphanFiles) != 1 || result.OrphanFiles[0] != oldOrphan {
		t.Errorf("OrphanFiles = %v, want [%s]", result.OrphanFiles, oldOrphan)
	}
	if len(result.DanglingRows) != 1 || result.DanglingRows[0] != store.Root()+"/gone.png" {
		t.Errorf("DanglingRows = %v", result.DanglingRows)
	}
	if result.Errors != 0 {
		t.Errorf("Errors = %d", result.Errors)
	}

	if exists(oldOrphan) {
		t.Error("old orphan should be deleted")
	}
	if !exists(freshOrphan) || !exists(healthy) {
		t.Error("fresh orphan and healthy artifact must survive")
	}
	if n, _ := idx.Count(ctx); n != 2 {
		t.Errorf("index count = %d, want 2", n)
	}

	// A second pass finds nothing new.
	again, err := r.Reconcile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(again.OrphanFiles) != 0 || len(again.DanglingRows) != 0 {
		t.Errorf("second pass = %+v", again)
	}
}
