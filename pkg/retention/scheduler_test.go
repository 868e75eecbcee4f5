package retention

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/wastewatch/pkg/artifact"
	"mercator-hq/wastewatch/pkg/index"
)

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(NewSweeper(index.NewMemoryIndex(), newFileStore(t)), nil, SchedulerConfig{SweepInterval: time.Minute})

	if s.IsRunning() || s.NextSweep() != nil {
		t.Fatal("scheduler should be idle before Start")
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !s.IsRunning() {
		t.Error("scheduler should be running")
	}
	if next := s.NextSweep(); next == nil || time.Until(*next) > time.Minute {
		t.Errorf("NextSweep() = %v", next)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}

	s.Stop()
	if s.IsRunning() {
		t.Error("scheduler should be stopped")
	}
	s.Stop()
}

func TestScheduler_InvalidConfig(t *testing.T) {
	sweeper := NewSweeper(index.NewMemoryIndex(), newFileStore(t))
	reconciler := NewReconciler(index.NewMemoryIndex(), newFileStore(t), time.Minute, nil)

	tests := map[string]SchedulerConfig{
		"zero interval":      {},
		"bad reconcile cron": {SweepInterval: time.Minute, ReconcileSchedule: "every tuesday"},
	}
	for name, cfg := range tests {
		s := NewScheduler(sweeper, reconciler, cfg)
		if err := s.Start(context.Background()); err == nil {
			s.Stop()
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestScheduler_FailedStartLeavesNoJobs(t *testing.T) {
	sweeper := NewSweeper(index.NewMemoryIndex(), newFileStore(t))
	reconciler := NewReconciler(index.NewMemoryIndex(), newFileStore(t), time.Minute, nil)
	s := NewScheduler(sweeper, reconciler, SchedulerConfig{SweepInterval: time.Minute, ReconcileSchedule: "every tuesday"})

	if err := s.Start(context.Background()); err == nil {
		t.Fatal("Start() with a bad reconcile schedule should fail")
	}
	if s.IsRunning() {
		t.Fatal("failed Start() left the scheduler running")
	}

	s.config.ReconcileSchedule = "0 3 * * *"
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if n := len(s.cron.Entries()); n != 2 {
		t.Errorf("scheduled %d jobs, want sweep and reconcile", n)
	}
	stopped := s.stopped

	s.Stop()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Error("Stop() did not release the context watcher")
	}

	// A restart schedules fresh jobs rather than adding to the old ones.
	if err := s.Start(ctx); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	defer s.Stop()
	if n := len(s.cron.Entries()); n != 2 {
		t.Errorf("after restart scheduled %d jobs, want 2", n)
	}
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	s := NewScheduler(NewSweeper(index.NewMemoryIndex(), newFileStore(t)), nil, SchedulerConfig{SweepInterval: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for s.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("scheduler still running after context cancel")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// panickyStore panics on the first Delete and then behaves.
type panickyStore struct {
	artifact.Store
	calls atomic.Int32
}

func (p *panickyStore) Delete(ctx context.Context, location string) error {
	if p.calls.Add(1) == 1 {
		panic("store exploded")
	}
	return p.Store.Delete(ctx, location)
}

func TestScheduler_SurvivesFailedCycle(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for two cron ticks")
	}

	base := newFileStore(t)
	idx := index.NewMemoryIndex()
	_, loc := saveAndIndex(t, base, idx, time.Now().Add(-time.Minute))

	store := &panickyStore{Store: base}
	s := NewScheduler(NewSweeper(idx, store), nil, SchedulerConfig{SweepInterval: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if n, _ := idx.Count(context.Background()); n == 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if n, _ := idx.Count(context.Background()); n != 0 {
		t.Fatalf("index count = %d after retries, want 0", n)
	}
	if exists(loc) {
		t.Error("artifact should be deleted by a later cycle")
	}
	if store.calls.Load() < 2 {
		t.Errorf("Delete calls = %d, want at least 2", store.calls.Load())
	}
}
