package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"mercator-hq/wastewatch/pkg/index"
)

// Watcher removes index rows for artifact files deleted from the save
// directory by something other than the sweeper.
type Watcher struct {
	dir     string
	index   index.Index
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	// removed, when set, receives the location of each row the watcher
	// drops. Used by tests.
	removed chan<- string
}

// NewWatcher starts watching dir. Call Run to process events.
func NewWatcher(dir string, idx index.Index) (*Watcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve watch directory %q: %w", dir, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fw.Add(abs); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", abs, err)
	}

	return &Watcher{
		dir:     abs,
		index:   idx,
		watcher: fw,
		logger:  slog.Default().With("component", "retention.watcher"),
	}, nil
}

// Run processes filesystem events until ctx is cancelled, then closes the
// underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	w.logger.Info("artifact watcher started", "path", w.dir)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !isArtifactName(event.Name) {
				continue
			}
			w.drop(ctx, event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.logger.Error("artifact watcher error", "error", err)
		}
	}
}

func (w *Watcher) drop(ctx context.Context, location string) {
	found, err := w.index.DeleteByLocation(ctx, location)
	if err != nil {
		w.logger.Warn("failed to drop row for removed artifact", "location", location, "error", err)
		return
	}
	if !found {
		// The sweeper removed the file and will remove the row itself.
		return
	}
	w.logger.Info("dropped row for externally removed artifact", "location", location)
	if w.removed != nil {
		w.removed <- location
	}
}

func isArtifactName(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, ".png") && !strings.HasPrefix(base, ".")
}
