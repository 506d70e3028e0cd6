package index

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps normalized vectors in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	handles map[string][]Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{handles: make(map[string][]Entry)}
}

// Insert adds entries under handle. All vectors of a handle share one dimension.
func (s *MemoryStore) Insert(_ context.Context, handle string, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.handles[handle]
	dimension := 0
	if len(existing) > 0 {
		dimension = len(existing[0].Vector)
	}
	if err := checkDimensions(entries, dimension); err != nil {
		return err
	}

	for _, e := range entries {
		existing = append(existing, Entry{Passage: e.Passage, Vector: normalizeVector(e.Vector)})
	}

	s.handles[handle] = existing
	return nil
}

// Search finds the k nearest entries of handle by cosine similarity.
func (s *MemoryStore) Search(_ context.Context, handle string, query []float32, k int) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.handles[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, handle)
	}
	return rank(entries, normalizeVector(query), k)
}

// Delete removes a handle.
func (s *MemoryStore) Delete(_ context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.handles, handle)
	return nil
}

// Count returns the number of entries under handle.
func (s *MemoryStore) Count(_ context.Context, handle string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handles[handle]), nil
}

// Handles lists stored handles in sorted order.
func (s *MemoryStore) Handles(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.handles))
	for h := range s.handles {
		out = append(out, h)
	}
	sort.Strings(out)
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
