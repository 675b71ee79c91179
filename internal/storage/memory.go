package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
)

// MemoryBackend implements the Backend interface with an in-process map.
// It exists for tests and throwaway deployments; nothing survives a restart.
type MemoryBackend struct {
	mu      sync.RWMutex
	objects map[string]map[string][]byte // namespace -> name -> bytes
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{objects: make(map[string]map[string][]byte)}
}

// Put stores a copy of the object bytes.
func (b *MemoryBackend) Put(ctx context.Context, namespace, name string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ns := b.objects[namespace]
	if ns == nil {
		ns = make(map[string][]byte)
		b.objects[namespace] = ns
	}
	ns[name] = bytes.Clone(data)
	return nil
}

// Get returns a reader over a copy of the object bytes.
func (b *MemoryBackend) Get(ctx context.Context, namespace, name string) (io.ReadCloser, int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, ok := b.objects[namespace][name]
	if !ok {
		return nil, 0, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(data))), int64(len(data)), nil
}

// Delete removes the object. Returns ErrObjectNotFound when absent.
func (b *MemoryBackend) Delete(ctx context.Context, namespace, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.objects[namespace][name]; !ok {
		return ErrObjectNotFound
	}
	delete(b.objects[namespace], name)
	return nil
}

// Exists reports whether the object is present.
func (b *MemoryBackend) Exists(ctx context.Context, namespace, name string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.objects[namespace][name]
	return ok, nil
}

// List returns the sorted names of all objects in the namespace.
func (b *MemoryBackend) List(ctx context.Context, namespace string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var names []string
	for name := range b.objects[namespace] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// EnsureNamespace creates the namespace map if absent.
func (b *MemoryBackend) EnsureNamespace(ctx context.Context, namespace string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.objects[namespace] == nil {
		b.objects[namespace] = make(map[string][]byte)
	}
	return nil
}

// HealthCheck always succeeds for the in-memory backend.
func (b *MemoryBackend) HealthCheck(ctx context.Context) error {
	return nil
}

// Ensure MemoryBackend implements Backend at compile time.
var _ Backend = (*MemoryBackend)(nil)
