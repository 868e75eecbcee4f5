package index

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryIndex implements Index with in-memory maps.
// This implementation is intended for testing and the "memory" driver only;
// it does not survive a restart.
type MemoryIndex struct {
	records    map[string]*Record
	byLocation map[string]string
	mu         sync.RWMutex
}

// NewMemoryIndex creates a new in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		records:    make(map[string]*Record),
		byLocation: make(map[string]string),
	}
}

// Insert registers an artifact and returns its new ID.
func (m *MemoryIndex) Insert(ctx context.Context, location string, createdAt, expiresAt time.Time) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", NewStorageError("memory", "insert", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byLocation[location]; exists {
		return "", NewStorageError("memory", "insert", fmt.Errorf("%w: %s", ErrDuplicateLocation, location))
	}

	m.records[id.String()] = &Record{
		ID:        id.String(),
		Location:  location,
		CreatedAt: createdAt.UTC(),
		ExpiresAt: expiresAt.UTC(),
	}
	m.byLocation[location] = id.String()

	return id.String(), nil
}

// QueryExpired returns every record with ExpiresAt <= asOf. The read lock
// makes the scan a snapshot.
func (m *MemoryIndex) QueryExpired(ctx context.Context, asOf time.Time) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := []Entry{}
	for _, r := range m.records {
		if !r.ExpiresAt.After(asOf) {
			entries = append(entries, Entry{ID: r.ID, Location: r.Location})
		}
	}
	return entries, nil
}

// DeleteBatch removes the given records.
func (m *MemoryIndex) DeleteBatch(ctx context.Context, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for _, id := range ids {
		r, ok := m.records[id]
		if !ok {
			continue
		}
		delete(m.byLocation, r.Location)
		delete(m.records, id)
		deleted++
	}
	return deleted, nil
}

// Get returns the record with the given ID.
func (m *MemoryIndex) Get(ctx context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	recordCopy := *r
	return &recordCopy, nil
}

// List returns up to limit records in insertion order.
func (m *MemoryIndex) List(ctx context.Context, limit int) ([]*Record, error) {
	m.mu.RLock()
	records := make([]*Record, 0, len(m.records))
	for _, r := range m.records {
		recordCopy := *r
		records = append(records, &recordCopy)
	}
	m.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Count returns the number of registered records.
func (m *MemoryIndex) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.records)), nil
}

// DeleteByLocation removes the record for location.
func (m *MemoryIndex) DeleteByLocation(ctx context.Context, location string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byLocation[location]
	if !ok {
		return false, nil
	}
	delete(m.byLocation, location)
	delete(m.records, id)
	return true, nil
}

// Ping always succeeds.
func (m *MemoryIndex) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (m *MemoryIndex) Close() error {
	return nil
}

var _ Index = (*MemoryIndex)(nil)
