package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"

	gcs "cloud.google.com/go/storage"
)

// mockGCSClient implements GCSAPI over an in-memory map.
type mockGCSClient struct {
	objects map[string][]byte
}

func newMockGCSClient() *mockGCSClient {
	return &mockGCSClient{objects: make(map[string][]byte)}
}

// mockGCSWriter buffers writes and commits on Close, mirroring the
// visibility rule of real GCS writers.
type mockGCSWriter struct {
	buf    bytes.Buffer
	commit func([]byte)
}

func (w *mockGCSWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *mockGCSWriter) Close() error {
	w.commit(bytes.Clone(w.buf.Bytes()))
	return nil
}

func (m *mockGCSClient) NewWriter(ctx context.Context, bucket, object string) io.WriteCloser {
	return &mockGCSWriter{commit: func(data []byte) { m.objects[object] = data }}
}

func (m *mockGCSClient) NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	data, ok := m.objects[object]
	if !ok {
		return nil, gcs.ErrObjectNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *mockGCSClient) Delete(ctx context.Context, bucket, object string) error {
	if _, ok := m.objects[object]; !ok {
		return gcs.ErrObjectNotExist
	}
	delete(m.objects, object)
	return nil
}

func (m *mockGCSClient) Size(ctx context.Context, bucket, object string) (int64, error) {
	data, ok := m.objects[object]
	if !ok {
		return 0, gcs.ErrObjectNotExist
	}
	return int64(len(data)), nil
}

func (m *mockGCSClient) ListObjects(ctx context.Context, bucket, prefix string) ([]string, error) {
	var names []string
	for object := range m.objects {
		if strings.HasPrefix(object, prefix) {
			names = append(names, object)
		}
	}
	sort.Strings(names)
	return names, nil
}

func newTestGCSBackend() (*GCSBackend, *mockGCSClient) {
	client := newMockGCSClient()
	return NewGCSBackendWithClient("upstream-bucket", "pic/", client), client
}

func TestGCSPutGetRoundTrip(t *testing.T) {
	backend, client := newTestGCSBackend()
	ctx := context.Background()

	content := []byte("jpeg data")
	if err := backend.Put(ctx, "posts", "a.jpg", content); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, ok := client.objects["pic/posts/a.jpg"]; !ok {
		t.Fatalf("object stored at unexpected name; have %v", client.objects)
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
		t.Errorf("data = %q, want %q", data, content)
	}
}

func TestGCSNotFoundTranslation(t *testing.T) {
	backend, _ := newTestGCSBackend()
	ctx := context.Background()

	if _, _, err := backend.Get(ctx, "posts", "missing.jpg"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("Get missing = %v, want ErrObjectNotFound", err)
	}
	if err := backend.Delete(ctx, "posts", "missing.jpg"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("Delete missing = %v, want ErrObjectNotFound", err)
	}

	ok, err := backend.Exists(ctx, "posts", "missing.jpg")
	if err != nil || ok {
		t.Errorf("Exists missing = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestGCSDeleteThenList(t *testing.T) {
	backend, _ := newTestGCSBackend()
	ctx := context.Background()

	backend.Put(ctx, "posts", "a.jpg", []byte("x"))
	backend.Put(ctx, "posts", "b.jpg", []byte("x"))

	if err := backend.Delete(ctx, "posts", "a.jpg"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	names, err := backend.List(ctx, "posts")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(names) != 1 || names[0] != "b.jpg" {
		t.Errorf("List = %v, want [b.jpg]", names)
	}
}
