package index

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps the upload index in process memory. Used for tests and
// for deployments that do not need stats to survive a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]map[string]Entry
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]map[string]Entry)}
}

func (s *MemoryStore) Put(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.entries[e.Namespace]
	if !ok {
		ns = make(map[string]Entry)
		s.entries[e.Namespace] = ns
	}
	ns[e.Name] = e
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, namespace, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ns, ok := s.entries[namespace]; ok {
		delete(ns, name)
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, namespace, name string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ns, ok := s.entries[namespace]; ok {
		if e, ok := ns[name]; ok {
			return &e, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := make(map[string]int64, len(s.entries))
	for ns, names := range s.entries {
		stats[ns] = int64(len(names))
	}
	return stats, nil
}

func (s *MemoryStore) ReplaceNamespace(ctx context.Context, namespace string, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns := make(map[string]Entry, len(names))
	now := time.Now()
	for _, name := range names {
		ns[name] = Entry{Namespace: namespace, Name: name, CreatedAt: now}
	}
	s.entries[namespace] = ns
	return nil
}

func (s *MemoryStore) Close() error { return nil }
