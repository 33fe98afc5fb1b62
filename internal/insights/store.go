package insights

import (
	"context"
	"sync"
	"time"
)

// Store persists at most one Record per poll.
//
// Get returns (nil, nil) when no record exists. Put replaces the whole
// record (last write wins) and stamps UpdatedAt.
type Store interface {
	Get(ctx context.Context, pollID string) (*Record, error)
	Put(ctx context.Context, pollID string, rec Record) error
}

// MemoryStore is a process-local Store used in tests and single-process
// development.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		now:     time.Now,
	}
}

// Get returns a copy of the stored record.
func (s *MemoryStore) Get(_ context.Context, pollID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[pollID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Put upserts the record for pollID.
func (s *MemoryStore) Put(_ context.Context, pollID string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.PollID = pollID
	rec.UpdatedAt = s.now().UTC()
	s.records[pollID] = rec
	return nil
}
