// Package storage defines the interface and implementations for PicStash's
// object data storage layer.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by Delete, Get, and friends when the
// addressed object does not exist. Handlers translate it to a 404.
var ErrObjectNotFound = errors.New("object not found")

// Backend stores normalized image bytes keyed by (namespace, name).
// Implementations provide the underlying mechanism (local filesystem,
// cloud provider, etc.). All methods must be safe for concurrent use;
// operations on distinct names never conflict, and racing operations on
// the same name resolve last-writer-wins.
type Backend interface {
	// Put persists the object bytes. The write must be atomic enough that
	// a concurrent reader never observes a partial object.
	Put(ctx context.Context, namespace, name string, data []byte) error

	// Get opens the object for reading. The caller closes the returned
	// ReadCloser. Returns ErrObjectNotFound when absent.
	Get(ctx context.Context, namespace, name string) (io.ReadCloser, int64, error)

	// Delete removes the object. Returns ErrObjectNotFound when absent;
	// repeating a delete is safe and yields the same error.
	Delete(ctx context.Context, namespace, name string) error

	// Exists reports whether the object is present.
	Exists(ctx context.Context, namespace, name string) (bool, error)

	// List returns the names of all objects in the namespace. An unknown
	// or empty namespace yields an empty slice, not an error.
	List(ctx context.Context, namespace string) ([]string, error)

	// EnsureNamespace creates the backing storage for a namespace if
	// absent. Idempotent and safe to race across concurrent first-writers.
	EnsureNamespace(ctx context.Context, namespace string) error

	// HealthCheck verifies that the storage backend is operational.
	HealthCheck(ctx context.Context) error
}
