package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func newTestLocalBackend(t *testing.T) *LocalBackend {
	t.Helper()
	backend, err := NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalBackend failed: %v", err)
	}
	return backend
}

func TestLocalPutGetRoundTrip(t *testing.T) {
	backend := newTestLocalBackend(t)
	ctx := context.Background()

	content := []byte("jpeg bytes go here")
	if err := backend.Put(ctx, "posts", "a.jpg", content); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	r, size, err := backend.Get(ctx, "posts", "a.jpg")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer r.Close()

	if size != int64(len(content)) {
		t.Errorf("Get size = %d, want %d", size, len(content))
	}

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Errorf("Get data = %q, want %q", data, content)
	}
}

func TestLocalGetMissing(t *testing.T) {
	backend := newTestLocalBackend(t)

	_, _, err := backend.Get(context.Background(), "posts", "missing.jpg")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("Get missing = %v, want ErrObjectNotFound", err)
	}
}

func TestLocalDeleteIdempotentFailure(t *testing.T) {
	backend := newTestLocalBackend(t)
	ctx := context.Background()

	if err := backend.Put(ctx, "posts", "a.jpg", []byte("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := backend.Delete(ctx, "posts", "a.jpg"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	// Deleting again, or deleting something never written, reports
	// not-found without crashing, as many times as you like.
	for i := 0; i < 3; i++ {
		if err := backend.Delete(ctx, "posts", "a.jpg"); !errors.Is(err, ErrObjectNotFound) {
			t.Errorf("repeat Delete = %v, want ErrObjectNotFound", err)
		}
	}
	if err := backend.Delete(ctx, "posts", "never-written.jpg"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("Delete never-written = %v, want ErrObjectNotFound", err)
	}
}

func TestLocalExists(t *testing.T) {
	backend := newTestLocalBackend(t)
	ctx := context.Background()

	ok, err := backend.Exists(ctx, "posts", "a.jpg")
	if err != nil || ok {
		t.Errorf("Exists before Put = (%v, %v), want (false, nil)", ok, err)
	}

	backend.Put(ctx, "posts", "a.jpg", []byte("x"))

	ok, err = backend.Exists(ctx, "posts", "a.jpg")
	if err != nil || !ok {
		t.Errorf("Exists after Put = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestLocalListEmptyAndPopulated(t *testing.T) {
	backend := newTestLocalBackend(t)
	ctx := context.Background()

	names, err := backend.List(ctx, "posts")
	if err != nil {
		t.Fatalf("List on missing namespace failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("List on missing namespace = %v, want empty", names)
	}

	for i := 0; i < 3; i++ {
		backend.Put(ctx, "posts", fmt.Sprintf("f%d.jpg", i), []byte("x"))
	}
	backend.Put(ctx, "avatars", "other.jpg", []byte("x"))

	names, err = backend.List(ctx, "posts")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(names) != 3 {
		t.Errorf("List returned %d names, want 3: %v", len(names), names)
	}
}

func TestLocalEnsureNamespace(t *testing.T) {
	backend := newTestLocalBackend(t)
	ctx := context.Background()

	// Idempotent, including under racing first-writers.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := backend.EnsureNamespace(ctx, "avatars"); err != nil {
				t.Errorf("EnsureNamespace failed: %v", err)
			}
		}()
	}
	wg.Wait()

	info, err := os.Stat(filepath.Join(backend.RootDir, "avatars"))
	if err != nil || !info.IsDir() {
		t.Errorf("namespace directory missing after EnsureNamespace: %v", err)
	}
}

func TestLocalPutLeavesNoTempFiles(t *testing.T) {
	backend := newTestLocalBackend(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := backend.Put(ctx, "posts", fmt.Sprintf("f%d.jpg", i), []byte("data")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	entries, err := os.ReadDir(filepath.Join(backend.RootDir, ".tmp"))
	if err != nil {
		t.Fatalf("reading temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("%d temp files left after successful writes", len(entries))
	}
}

func TestLocalCleanTempFiles(t *testing.T) {
	backend := newTestLocalBackend(t)

	// Simulate a crash mid-write.
	orphan := filepath.Join(backend.RootDir, ".tmp", "tmp-orphan")
	if err := os.WriteFile(orphan, []byte("partial"), 0o644); err != nil {
		t.Fatalf("writing orphan: %v", err)
	}

	if err := backend.CleanTempFiles(); err != nil {
		t.Fatalf("CleanTempFiles failed: %v", err)
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Error("orphan temp file survived CleanTempFiles")
	}
}

func TestLocalConcurrentDistinctWrites(t *testing.T) {
	backend := newTestLocalBackend(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("c%d.jpg", i)
			if err := backend.Put(ctx, "posts", name, []byte(name)); err != nil {
				t.Errorf("concurrent Put %s failed: %v", name, err)
			}
		}(i)
	}
	wg.Wait()

	names, err := backend.List(ctx, "posts")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(names) != 20 {
		t.Errorf("List returned %d names after concurrent writes, want 20", len(names))
	}
}

func TestLocalOverwriteLastWriterWins(t *testing.T) {
	backend := newTestLocalBackend(t)
	ctx := context.Background()

	backend.Put(ctx, "posts", "a.jpg", []byte("first"))
	backend.Put(ctx, "posts", "a.jpg", []byte("second"))

	r, _, err := backend.Get(ctx, "posts", "a.jpg")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer r.Close()
	data, _ := io.ReadAll(r)
	if string(data) != "second" {
		t.Errorf("Get after overwrite = %q, want %q", data, "second")
	}
}
