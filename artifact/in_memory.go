package artifact

import (
	"slices"
	"sync"
)

// InMemoryStore is a trivial in‑process Store implementation useful for
// tests, examples and single‑process prototypes. Data is copied on save and
// retrieval so callers cannot mutate stored buffers.
//
// Layout: namespace -> artifactID -> raw bytes
type InMemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string]map[string][]byte
}

// NewInMemoryStore returns an empty in‑memory artifact store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{artifacts: make(map[string]map[string][]byte)}
}

// Save stores (or overwrites) the artifact bytes for the given namespace and id.
func (a *InMemoryStore) Save(namespace, id string, data []byte) error {
	if err := ValidateName(id); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.artifacts[namespace]; !exists {
		a.artifacts[namespace] = make(map[string][]byte)
	}
	a.artifacts[namespace][id] = slices.Clone(data)
	return nil
}

// Get returns a copy of the stored artifact bytes or ErrNotFound.
func (a *InMemoryStore) Get(namespace, id string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	data, ok := a.artifacts[namespace][id]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(data), nil
}

// List returns the artifact ids stored for the namespace in lexical order.
func (a *InMemoryStore) List(namespace string) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	m := a.artifacts[namespace]
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Delete removes the artifact if present or returns ErrNotFound.
func (a *InMemoryStore) Delete(namespace, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	m, ok := a.artifacts[namespace]
	if !ok {
		return ErrNotFound
	}
	if _, ok := m[id]; !ok {
		return ErrNotFound
	}
	delete(m, id)
	return nil
}
