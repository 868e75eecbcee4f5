package artifact

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const tempPrefix = ".tmp-"

// FileStore writes artifacts as PNG files into a single directory.
type FileStore struct {
	root       string
	accessPath string
	now        func() time.Time
	logger     *slog.Logger
}

// NewFileStore creates the directory if needed and returns a store rooted
// there. accessPath is the URL path prefix under which the directory is
// served, e.g. "/static/PREDICTIONS".
func NewFileStore(dir, accessPath string) (*FileStore, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact directory %q: %w", dir, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory %q: %w", root, err)
	}

	return &FileStore{
		root:       root,
		accessPath: "/" + strings.Trim(accessPath, "/"),
		now:        time.Now,
		logger:     slog.Default().With("component", "artifact.file"),
	}, nil
}

// Root returns the absolute directory artifacts are written to.
func (s *FileStore) Root() string {
	return s.root
}

// AccessPath returns the URL path prefix artifacts are served under.
func (s *FileStore) AccessPath() string {
	return s.accessPath
}

// Save encodes img as PNG into a temporary file and renames it into place,
// so a returned location never refers to a partially written file.
func (s *FileStore) Save(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.root, tempPrefix+"*.png")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return "", fmt.Errorf("encode png: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	location := filepath.Join(s.root, objectName(s.now()))
	if err := os.Rename(tmpName, location); err != nil {
		return "", fmt.Errorf("rename artifact: %w", err)
	}

	s.logger.Debug("artifact saved", "location", location)
	return location, nil
}

// Delete removes the file at location. A missing file is not an error.
func (s *FileStore) Delete(ctx context.Context, location string) error {
	if err := s.checkLocation(location); err != nil {
		return err
	}
	if err := os.Remove(location); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove artifact %q: %w", location, err)
	}
	return nil
}

// URL returns the public path of the artifact.
func (s *FileStore) URL(location string) string {
	return path.Join(s.accessPath, filepath.Base(location))
}

// List returns every PNG artifact in the directory. Temporary files from
// in-flight writes are skipped.
func (s *FileStore) List(ctx context.Context) ([]Object, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read artifact directory: %w", err)
	}

	objects := make([]Object, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, tempPrefix) || filepath.Ext(name) != ".png" {
			continue
		}
		info, err := entry.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue // removed since ReadDir
		}
		if err != nil {
			return nil, fmt.Errorf("stat artifact %q: %w", name, err)
		}
		objects = append(objects, Object{
			Location: filepath.Join(s.root, name),
			ModTime:  info.ModTime(),
		})
	}
	return objects, nil
}

// Ping checks the directory still exists and is a directory.
func (s *FileStore) Ping(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("stat artifact directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("artifact root %q is not a directory", s.root)
	}
	return nil
}

// checkLocation refuses to touch paths outside the store's directory.
func (s *FileStore) checkLocation(location string) error {
	if filepath.Dir(filepath.Clean(location)) != s.root {
		return fmt.Errorf("location %q is outside artifact directory %q", location, s.root)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
