// GCS gateway backend for PicStash.
//
// Proxies all object data to an upstream Google Cloud Storage bucket via the
// official Go client. Objects live at {prefix}{namespace}/{name} within a
// single upstream bucket. Credentials are resolved via Application Default
// Credentials (GOOGLE_APPLICATION_CREDENTIALS, gcloud auth, metadata server).

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSAPI defines the subset of the GCS client interface that the gateway
// backend uses. This allows mocking in tests.
type GCSAPI interface {
	// NewWriter returns a writer for the given GCS object.
	NewWriter(ctx context.Context, bucket, object string) io.WriteCloser
	// NewReader returns a reader for the given GCS object.
	NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error)
	// Delete deletes the given GCS object.
	Delete(ctx context.Context, bucket, object string) error
	// Size returns the byte size of the given GCS object.
	Size(ctx context.Context, bucket, object string) (int64, error)
	// ListObjects lists object names with the given prefix.
	ListObjects(ctx context.Context, bucket, prefix string) ([]string, error)
}

// realGCSClient wraps the official GCS client to satisfy GCSAPI.
type realGCSClient struct {
	client *gcs.Client
}

func (c *realGCSClient) NewWriter(ctx context.Context, bucket, object string) io.WriteCloser {
	return c.client.Bucket(bucket).Object(object).NewWriter(ctx)
}

func (c *realGCSClient) NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	return c.client.Bucket(bucket).Object(object).NewReader(ctx)
}

func (c *realGCSClient) Delete(ctx context.Context, bucket, object string) error {
	return c.client.Bucket(bucket).Object(object).Delete(ctx)
}

func (c *realGCSClient) Size(ctx context.Context, bucket, object string) (int64, error) {
	attrs, err := c.client.Bucket(bucket).Object(object).Attrs(ctx)
	if err != nil {
		return 0, err
	}
	return attrs.Size, nil
}

func (c *realGCSClient) ListObjects(ctx context.Context, bucket, prefix string) ([]string, error) {
	it := c.client.Bucket(bucket).Objects(ctx, &gcs.Query{Prefix: prefix})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

// GCSBackend implements the Backend interface by proxying storage
// operations to Google Cloud Storage.
type GCSBackend struct {
	// Bucket is the upstream GCS bucket name.
	Bucket string
	// Prefix is the key prefix for all objects in the upstream bucket.
	Prefix string
	// client is the GCS client (satisfying the GCSAPI interface).
	client GCSAPI
}

// NewGCSBackend creates a GCSBackend proxying to the specified bucket,
// using Application Default Credentials, and verifies the bucket is
// reachable.
func NewGCSBackend(ctx context.Context, bucket, project, prefix string) (*GCSBackend, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}

	b := &GCSBackend{
		Bucket: bucket,
		Prefix: prefix,
		client: &realGCSClient{client: client},
	}

	// Listing a nonsense prefix is the cheapest reachability probe.
	if _, err := b.client.ListObjects(ctx, bucket, "\x00nonexistent\x00"); err != nil {
		return nil, fmt.Errorf("cannot access upstream GCS bucket %q: %w", bucket, err)
	}

	slog.Info("GCS backend initialized", "bucket", bucket, "project", project, "prefix", prefix)
	return b, nil
}

// NewGCSBackendWithClient creates a GCSBackend with a pre-configured client.
// This is primarily used for testing with mock clients.
func NewGCSBackendWithClient(bucket, prefix string, client GCSAPI) *GCSBackend {
	return &GCSBackend{
		Bucket: bucket,
		Prefix: prefix,
		client: client,
	}
}

// gcsName maps a (namespace, name) to an upstream GCS object name.
func (b *GCSBackend) gcsName(namespace, name string) string {
	return b.Prefix + namespace + "/" + name
}

// Put uploads the object bytes. A GCS write is only visible once the writer
// is closed successfully, so readers never see partial objects.
func (b *GCSBackend) Put(ctx context.Context, namespace, name string, data []byte) error {
	w := b.client.NewWriter(ctx, b.Bucket, b.gcsName(namespace, name))
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("writing object to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing GCS write: %w", err)
	}
	return nil
}

// Get retrieves the object from the upstream bucket.
func (b *GCSBackend) Get(ctx context.Context, namespace, name string) (io.ReadCloser, int64, error) {
	object := b.gcsName(namespace, name)

	size, err := b.client.Size(ctx, b.Bucket, object)
	if err != nil {
		if isGCSNotFound(err) {
			return nil, 0, ErrObjectNotFound
		}
		return nil, 0, fmt.Errorf("reading object attrs from GCS: %w", err)
	}

	r, err := b.client.NewReader(ctx, b.Bucket, object)
	if err != nil {
		if isGCSNotFound(err) {
			return nil, 0, ErrObjectNotFound
		}
		return nil, 0, fmt.Errorf("reading object from GCS: %w", err)
	}
	return r, size, nil
}

// Delete removes the object from the upstream bucket. GCS reports missing
// objects natively, so no existence pre-check is needed.
func (b *GCSBackend) Delete(ctx context.Context, namespace, name string) error {
	err := b.client.Delete(ctx, b.Bucket, b.gcsName(namespace, name))
	if err != nil {
		if isGCSNotFound(err) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("deleting object from GCS: %w", err)
	}
	return nil
}

// Exists reports whether the object is present in the upstream bucket.
func (b *GCSBackend) Exists(ctx context.Context, namespace, name string) (bool, error) {
	_, err := b.client.Size(ctx, b.Bucket, b.gcsName(namespace, name))
	if err != nil {
		if isGCSNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking object existence in GCS: %w", err)
	}
	return true, nil
}

// List returns the names of all objects under the namespace prefix.
func (b *GCSBackend) List(ctx context.Context, namespace string) ([]string, error) {
	prefix := b.Prefix + namespace + "/"

	objects, err := b.client.ListObjects(ctx, b.Bucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing GCS objects under %q: %w", prefix, err)
	}

	var names []string
	for _, object := range objects {
		if len(object) > len(prefix) {
			names = append(names, object[len(prefix):])
		}
	}
	return names, nil
}

// EnsureNamespace is a no-op: namespaces are key prefixes within the
// upstream bucket, not containers that need creating.
func (b *GCSBackend) EnsureNamespace(ctx context.Context, namespace string) error {
	return nil
}

// HealthCheck verifies the upstream bucket is accessible.
func (b *GCSBackend) HealthCheck(ctx context.Context) error {
	_, err := b.client.ListObjects(ctx, b.Bucket, "\x00nonexistent\x00")
	return err
}

// isGCSNotFound checks if a GCS error indicates a missing object.
func isGCSNotFound(err error) bool {
	return errors.Is(err, gcs.ErrObjectNotExist)
}

// Ensure GCSBackend implements Backend at compile time.
var _ Backend = (*GCSBackend)(nil)
