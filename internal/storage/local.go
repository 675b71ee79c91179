package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalBackend implements the Backend interface using the local filesystem.
// Objects are stored as files within a configurable root directory, one
// sub-directory per namespace.
type LocalBackend struct {
	// RootDir is the base directory under which all namespace and object
	// data is stored.
	RootDir string
}

// NewLocalBackend creates a new LocalBackend rooted at the given directory.
// It creates the root directory and the temp directory if they do not exist.
func NewLocalBackend(rootDir string) (*LocalBackend, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage root directory %q: %w", rootDir, err)
	}
	// The .tmp directory is the staging area for atomic writes.
	tmpDir := filepath.Join(rootDir, ".tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating temp directory %q: %w", tmpDir, err)
	}
	return &LocalBackend{RootDir: rootDir}, nil
}

// CleanTempFiles removes all files in the .tmp directory. This is called on
// startup as part of crash-only recovery. Any temp files left behind indicate
// incomplete writes from a previous crash.
func (b *LocalBackend) CleanTempFiles() error {
	tmpDir := filepath.Join(b.RootDir, ".tmp")
	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading temp directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			os.Remove(filepath.Join(tmpDir, entry.Name()))
		}
	}
	return nil
}

// objectPath returns the full filesystem path for an object. Names reaching
// this point are either server-generated or already sanitized to a single
// path component by the naming layer.
func (b *LocalBackend) objectPath(namespace, name string) string {
	return filepath.Join(b.RootDir, namespace, name)
}

// tempPath returns a unique temporary file path in the .tmp directory.
func (b *LocalBackend) tempPath() string {
	return filepath.Join(b.RootDir, ".tmp", "tmp-"+uuid.NewString())
}

// Put writes object bytes to a file using the crash-only atomic write
// pattern: write to temp file, fsync, rename. A reader never observes a
// partially written object.
func (b *LocalBackend) Put(ctx context.Context, namespace, name string, data []byte) error {
	objPath := b.objectPath(namespace, name)

	// Namespace directories are created lazily; racing first-writers both
	// succeed because MkdirAll is idempotent.
	if err := os.MkdirAll(filepath.Dir(objPath), 0o755); err != nil {
		return fmt.Errorf("creating namespace directory for %s/%s: %w", namespace, name, err)
	}

	tmpPath := b.tempPath()
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing object data: %w", err)
	}

	// Fsync before rename to guarantee durability.
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, objPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file to final path: %w", err)
	}

	return nil
}

// Get opens the object file for reading. Returns the file as a ReadCloser
// and its size.
func (b *LocalBackend) Get(ctx context.Context, namespace, name string) (io.ReadCloser, int64, error) {
	objPath := b.objectPath(namespace, name)

	f, err := os.Open(objPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, ErrObjectNotFound
		}
		return nil, 0, fmt.Errorf("opening object file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat object file: %w", err)
	}

	return f, info.Size(), nil
}

// Delete removes the object file. Returns ErrObjectNotFound when absent, so
// repeated deletes fail idempotently rather than crashing.
func (b *LocalBackend) Delete(ctx context.Context, namespace, name string) error {
	objPath := b.objectPath(namespace, name)

	if err := os.Remove(objPath); err != nil {
		if os.IsNotExist(err) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("removing object file: %w", err)
	}
	return nil
}

// Exists reports whether the object file is present.
func (b *LocalBackend) Exists(ctx context.Context, namespace, name string) (bool, error) {
	_, err := os.Stat(b.objectPath(namespace, name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat object file: %w", err)
	}
	return true, nil
}

// List returns the names of all objects in the namespace directory. A
// namespace directory that does not exist yet yields an empty list.
func (b *LocalBackend) List(ctx context.Context, namespace string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(b.RootDir, namespace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading namespace directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// EnsureNamespace creates the namespace sub-directory if absent.
func (b *LocalBackend) EnsureNamespace(ctx context.Context, namespace string) error {
	dir := filepath.Join(b.RootDir, namespace)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating namespace directory %q: %w", dir, err)
	}
	return nil
}

// HealthCheck verifies the root directory is accessible.
func (b *LocalBackend) HealthCheck(ctx context.Context) error {
	if _, err := os.Stat(b.RootDir); err != nil {
		return fmt.Errorf("storage root inaccessible: %w", err)
	}
	return nil
}

// Ensure LocalBackend implements Backend at compile time.
var _ Backend = (*LocalBackend)(nil)
