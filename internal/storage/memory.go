package storage

import (
	"context"
	"maps"
	"sync"

	"github.com/statewire/pushgate/internal/connection"
)

var _ connection.Store = (*MemoryStore)(nil)

// MemoryStore keeps connection records in process memory. It is the
// development and test backend; records do not survive a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*connection.Connection
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*connection.Connection),
	}
}

// Get returns a copy of the record for id, or (nil, nil) when absent.
func (s *MemoryStore) Get(ctx context.Context, id string) (*connection.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.records[id].Clone(), nil
}

// Put stores a copy of the record, replacing any previous version.
func (s *MemoryStore) Put(ctx context.Context, conn *connection.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[conn.ID] = conn.Clone()
	return nil
}

// UpdateData replaces the data portion of the record for id, leaving
// the timestamps untouched. Updating an absent record is a no-op.
func (s *MemoryStore) UpdateData(ctx context.Context, id string, data connection.Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil
	}
	updated := rec.Clone()
	updated.Data = data
	updated.Data.Context = maps.Clone(data.Context)
	s.records[id] = updated
	return nil
}

// Delete removes the record for id. Deleting an absent record is not an
// error.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, id)
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
