package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
)

func newTestSQLiteBackend(t *testing.T) *SQLiteBackend {
	t.Helper()
	backend, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "objects.db"))
	if err != nil {
		t.Fatalf("NewSQLiteBackend failed: %v", err)
	}
	t.Cleanup(func() { backend.Close() })
	return backend
}

func TestSQLitePutGetRoundTrip(t *testing.T) {
	backend := newTestSQLiteBackend(t)
	ctx := context.Background()

	content := []byte{0xFF, 0xD8, 0xFF, 0x00, 0x01}
	if err := backend.Put(ctx, "posts", "a.jpg", content); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	r, size, err := backend.Get(ctx, "posts", "a.jpg")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer r.Close()

	if size != int64(len(content)) {
		t.Errorf("size = %d, want %d", size, len(content))
	}
	data, _ := io.ReadAll(r)
	if !bytes.Equal(data, content) {
		t.Errorf("data = %v, want %v", data, content)
	}
}

func TestSQLiteOverwrite(t *testing.T) {
	backend := newTestSQLiteBackend(t)
	ctx := context.Background()

	backend.Put(ctx, "posts", "a.jpg", []byte("first"))
	if err := backend.Put(ctx, "posts", "a.jpg", []byte("second")); err != nil {
		t.Fatalf("overwrite Put failed: %v", err)
	}

	r, _, err := backend.Get(ctx, "posts", "a.jpg")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer r.Close()
	data, _ := io.ReadAll(r)
	if string(data) != "second" {
		t.Errorf("data = %q, want %q", data, "second")
	}
}

func TestSQLiteDeleteAndNotFound(t *testing.T) {
	backend := newTestSQLiteBackend(t)
	ctx := context.Background()

	if err := backend.Delete(ctx, "posts", "missing.jpg"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("Delete missing = %v, want ErrObjectNotFound", err)
	}

	backend.Put(ctx, "posts", "a.jpg", []byte("x"))
	if err := backend.Delete(ctx, "posts", "a.jpg"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := backend.Delete(ctx, "posts", "a.jpg"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("repeat Delete = %v, want ErrObjectNotFound", err)
	}
	if _, _, err := backend.Get(ctx, "posts", "a.jpg"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("Get after Delete = %v, want ErrObjectNotFound", err)
	}
}

func TestSQLiteExistsAndList(t *testing.T) {
	backend := newTestSQLiteBackend(t)
	ctx := context.Background()

	ok, err := backend.Exists(ctx, "posts", "a.jpg")
	if err != nil || ok {
		t.Errorf("Exists before Put = (%v, %v), want (false, nil)", ok, err)
	}

	backend.Put(ctx, "posts", "b.jpg", []byte("x"))
	backend.Put(ctx, "posts", "a.jpg", []byte("x"))
	backend.Put(ctx, "avatars", "c.jpg", []byte("x"))

	ok, _ = backend.Exists(ctx, "posts", "a.jpg")
	if !ok {
		t.Error("Exists after Put = false, want true")
	}

	names, err := backend.List(ctx, "posts")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(names) != 2 || names[0] != "a.jpg" || names[1] != "b.jpg" {
		t.Errorf("List = %v, want [a.jpg b.jpg]", names)
	}
}
