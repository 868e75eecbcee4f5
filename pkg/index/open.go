package index

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mercator-hq/wastewatch/pkg/config"
)

// Open builds the index selected by cfg.Driver. For SQLite drivers the
// parent directory of the database file is created if missing.
func Open(cfg *config.IndexConfig) (Index, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemoryIndex(), nil
	case DriverSQLite3, DriverSQLite:
		if dir := filepath.Dir(sqlitePath(cfg.DSN)); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, NewStorageError(cfg.Driver, "open", fmt.Errorf("create database directory: %w", err))
			}
		}
	case DriverPostgres:
	default:
		return nil, NewStorageError(cfg.Driver, "open", fmt.Errorf("unsupported driver %q", cfg.Driver))
	}

	return NewSQLIndex(&SQLConfig{
		Driver:       cfg.Driver,
		DSN:          cfg.DSN,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
		WALMode:      cfg.WALEnabled(),
		BusyTimeout:  cfg.BusyTimeout,
	})
}

// sqlitePath strips a "file:" prefix and any query string from a SQLite DSN.
func sqlitePath(dsn string) string {
	dsn = strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		dsn = dsn[:i]
	}
	return dsn
}
