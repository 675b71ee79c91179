// Package index provides the upload index: advisory bookkeeping of stored
// objects used for operational stats and startup reconciliation.
//
// The storage backend is always authoritative; index failures degrade stats,
// never uploads or deletes. On every boot the index is rebuilt from a
// backend listing, so a lost or corrupt index file costs nothing.
package index

import (
	"context"
	"time"
)

// Entry is one stored object as the index sees it.
type Entry struct {
	Namespace string
	Name      string
	Size      int64
	CreatedAt time.Time
}

// Store records and reports stored objects. Implementations must be safe
// for concurrent use.
type Store interface {
	// Put records an object, replacing any existing record for the same
	// (namespace, name).
	Put(ctx context.Context, e Entry) error

	// Delete removes the record for (namespace, name). Deleting an
	// unrecorded object is not an error.
	Delete(ctx context.Context, namespace, name string) error

	// Get returns the record for (namespace, name), or nil if unrecorded.
	Get(ctx context.Context, namespace, name string) (*Entry, error)

	// Stats returns the object count per namespace.
	Stats(ctx context.Context) (map[string]int64, error)

	// ReplaceNamespace atomically replaces all records for a namespace
	// with bare entries for the given names. Used by startup
	// reconciliation against a backend listing.
	ReplaceNamespace(ctx context.Context, namespace string, names []string) error

	// Close releases any underlying resources.
	Close() error
}
