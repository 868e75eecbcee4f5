// Package index implements the retention index: a persistent mapping from
// artifact identity to its storage location and expiry instant.
//
// The index is shared between the request path, which inserts one record per
// produced artifact, and the expiry sweeper, which queries expired records
// and deletes them in batches. All coordination between the two happens
// through the index, so every implementation must be safe for concurrent use.
package index

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Record is one registered artifact.
type Record struct {
	// ID is assigned by the index at insert time. IDs are UUIDv7, so they
	// sort in insertion order.
	ID string

	// Location is the store-specific location of the artifact. At most one
	// record exists per location.
	Location string

	// CreatedAt is the instant the artifact was registered.
	CreatedAt time.Time

	// ExpiresAt is CreatedAt plus the retention period. It is fixed at insert
	// time and never mutated.
	ExpiresAt time.Time
}

// Entry is the projection returned by QueryExpired.
type Entry struct {
	ID       string
	Location string
}

// Index is the retention index contract.
type Index interface {
	// Insert registers an artifact and returns its new ID. Inserting a
	// location that is already registered fails with ErrDuplicateLocation.
	Insert(ctx context.Context, location string, createdAt, expiresAt time.Time) (string, error)

	// QueryExpired returns every record with ExpiresAt <= asOf, in no
	// particular order. The result is a consistent snapshot: a record whose
	// expiry is after asOf is never returned, even if it is inserted while
	// the query runs.
	QueryExpired(ctx context.Context, asOf time.Time) ([]Entry, error)

	// DeleteBatch removes the given records and returns how many rows were
	// actually removed. IDs that are already absent are not an error.
	DeleteBatch(ctx context.Context, ids []string) (int64, error)

	// Get returns the record with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns up to limit records in insertion order. A limit <= 0
	// returns every record.
	List(ctx context.Context, limit int) ([]*Record, error)

	// Count returns the number of registered records.
	Count(ctx context.Context) (int64, error)

	// DeleteByLocation removes the record for location, reporting whether
	// one existed.
	DeleteByLocation(ctx context.Context, location string) (bool, error)

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the index.
	Close() error
}

var (
	// ErrNotFound is returned by Get when no record has the given ID.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateLocation is returned by Insert when the location is
	// already registered.
	ErrDuplicateLocation = errors.New("location already registered")
)

// StorageError represents an error from the index backend.
type StorageError struct {
	Backend   string // Index backend ("sqlite3", "sqlite", "pgx", "memory")
	Operation string // Operation that failed ("insert", "query_expired", ...)
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("index error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}
