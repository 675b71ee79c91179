package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"
)

var errMockBlobNotFound = errors.New("mock: blob not found")

// mockAzureClient implements AzureBlobAPI over an in-memory map.
type mockAzureClient struct {
	blobs map[string][]byte
}

func newMockAzureClient() *mockAzureClient {
	return &mockAzureClient{blobs: make(map[string][]byte)}
}

func (m *mockAzureClient) UploadBlob(ctx context.Context, container, blob string, data []byte) error {
	m.blobs[blob] = bytes.Clone(data)
	return nil
}

func (m *mockAzureClient) DownloadBlob(ctx context.Context, container, blob string) ([]byte, error) {
	data, ok := m.blobs[blob]
	if !ok {
		return nil, errMockBlobNotFound
	}
	return data, nil
}

func (m *mockAzureClient) DeleteBlob(ctx context.Context, container, blob string) error {
	if _, ok := m.blobs[blob]; !ok {
		return errMockBlobNotFound
	}
	delete(m.blobs, blob)
	return nil
}

func (m *mockAzureClient) BlobExists(ctx context.Context, container, blob string) (bool, error) {
	_, ok := m.blobs[blob]
	return ok, nil
}

func (m *mockAzureClient) ListBlobs(ctx context.Context, container, prefix string) ([]string, error) {
	var names []string
	for blob := range m.blobs {
		if strings.HasPrefix(blob, prefix) {
			names = append(names, blob)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *mockAzureClient) IsNotFound(err error) bool {
	return errors.Is(err, errMockBlobNotFound)
}

func newTestAzureBackend() (*AzureBackend, *mockAzureClient) {
	client := newMockAzureClient()
	return NewAzureBackendWithClient("upstream-container", "pic/", client), client
}

func TestAzurePutGetRoundTrip(t *testing.T) {
	backend, client := newTestAzureBackend()
	ctx := context.Background()

	content := []byte("jpeg data")
	if err := backend.Put(ctx, "posts", "a.jpg", content); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, ok := client.blobs["pic/posts/a.jpg"]; !ok {
		t.Fatalf("blob stored at unexpected name; have %v", client.blobs)
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

func TestAzureNotFoundTranslation(t *testing.T) {
	backend, _ := newTestAzureBackend()
	ctx := context.Background()

	if _, _, err := backend.Get(ctx, "posts", "missing.jpg"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("Get missing = %v, want ErrObjectNotFound", err)
	}
	if err := backend.Delete(ctx, "posts", "missing.jpg"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("Delete missing = %v, want ErrObjectNotFound", err)
	}
}

func TestAzureExistsAndList(t *testing.T) {
	backend, _ := newTestAzureBackend()
	ctx := context.Background()

	backend.Put(ctx, "posts", "b.jpg", []byte("x"))
	backend.Put(ctx, "posts", "a.jpg", []byte("x"))
	backend.Put(ctx, "avatars", "c.jpg", []byte("x"))

	ok, err := backend.Exists(ctx, "posts", "a.jpg")
	if err != nil || !ok {
		t.Errorf("Exists = (%v, %v), want (true, nil)", ok, err)
	}

	names, err := backend.List(ctx, "posts")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(names) != 2 || names[0] != "a.jpg" || names[1] != "b.jpg" {
		t.Errorf("List = %v, want [a.jpg b.jpg]", names)
	}
}
