package retention

import (
	"context"
	"os"
	"testing"
	"time"

	"mercator-hq/wastewatch/pkg/index"
)

func TestWatcher_DropsRowOnRemove(t *testing.T) {
	store := newFileStore(t)
	idx := index.NewMemoryIndex()
	_, loc := saveAndIndex(t, store, idx, time.Now().Add(time.Hour))

	w, err := NewWatcher(store.Root(), idx)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	removed := make(chan string, 1)
	w.removed = removed

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	if err := os.Remove(loc); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-removed:
		if got != loc {
			t.Errorf("dropped %q, want %q", got, loc)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not drop the row")
	}

	if n, _ := idx.Count(context.Background()); n != 0 {
		t.Errorf("index count = %d, want 0", n)
	}
}

func TestIsArtifactName(t *testing.T) {
	tests := map[string]bool{
		"/data/20260501-120000-abc.png": true,
		"/data/.tmp-123.png":            false,
		"/data/notes.txt":               false,
		"x.png":                         true,
	}
	for name, want := range tests {
		if got := isArtifactName(name); got != want {
			t.Errorf("isArtifactName(%q) = %v, want %v", name, got, want)
		}
	}
}
