package checkpoint

import (
	"context"
	"slices"
	"sync"
)

// InMemorySaver is a volatile Saver storing checkpoints in a process local
// map. It is safe for concurrent access and best suited for tests or
// single-run demos. Returned checkpoints are copies.
type InMemorySaver struct {
	mu      sync.RWMutex
	threads map[string][]Checkpoint
}

// NewInMemorySaver constructs an empty in‑memory saver.
func NewInMemorySaver() *InMemorySaver {
	return &InMemorySaver{threads: make(map[string][]Checkpoint)}
}

// Put appends a copy of cp to its thread.
func (s *InMemorySaver) Put(_ context.Context, cp Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.threads[cp.ThreadID] = append(s.threads[cp.ThreadID], clone(cp))
	return nil
}

// Latest returns the last checkpoint of the thread.
func (s *InMemorySaver) Latest(_ context.Context, threadID string) (Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cps := s.threads[threadID]
	if len(cps) == 0 {
		return Checkpoint{}, ErrNotFound
	}
	return clone(cps[len(cps)-1]), nil
}

// List returns a snapshot of all checkpoints of the thread.
func (s *InMemorySaver) List(_ context.Context, threadID string) ([]Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cps := s.threads[threadID]
	out := make([]Checkpoint, 0, len(cps))
	for _, cp := range cps {
		out = append(out, clone(cp))
	}
	return out, nil
}

func clone(cp Checkpoint) Checkpoint {
	cp.State = slices.Clone(cp.State)
	return cp
}
