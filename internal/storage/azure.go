// Azure Blob Storage gateway backend for PicStash.
//
// Proxies all object data to an upstream Azure Blob container via the
// official Azure SDK for Go. Blobs live at {prefix}{namespace}/{name}
// within a single upstream container. Credentials are resolved via
// DefaultAzureCredential (env vars, managed identity, Azure CLI, etc.).

package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
)

// AzureBlobAPI defines the subset of the Azure Blob Storage client interface
// that the gateway backend uses. This allows mocking in tests.
type AzureBlobAPI interface {
	// UploadBlob uploads data to a blob, overwriting if it already exists.
	UploadBlob(ctx context.Context, container, blob string, data []byte) error
	// DownloadBlob downloads a blob's contents.
	DownloadBlob(ctx context.Context, container, blob string) ([]byte, error)
	// DeleteBlob deletes a blob. Returns an error if the blob does not exist.
	DeleteBlob(ctx context.Context, container, blob string) error
	// BlobExists checks if a blob exists.
	BlobExists(ctx context.Context, container, blob string) (bool, error)
	// ListBlobs lists blob names with the given prefix.
	ListBlobs(ctx context.Context, container, prefix string) ([]string, error)
	// IsNotFound reports whether the error indicates a missing blob.
	IsNotFound(err error) bool
}

// AzureBackend implements the Backend interface by proxying storage
// operations to Azure Blob Storage.
type AzureBackend struct {
	// Container is the upstream Azure Blob container name.
	Container string
	// Prefix is the key prefix for all blobs in the upstream container.
	Prefix string
	// client is the Azure Blob client (satisfying the AzureBlobAPI interface).
	client AzureBlobAPI
}

// NewAzureBackend creates an AzureBackend proxying to the specified
// container. It initializes the Azure SDK client using
// DefaultAzureCredential and verifies the container is reachable.
func NewAzureBackend(ctx context.Context, container, accountURL, prefix string) (*AzureBackend, error) {
	client, err := newRealAzureClient(accountURL)
	if err != nil {
		return nil, fmt.Errorf("creating Azure client: %w", err)
	}

	b := &AzureBackend{
		Container: container,
		Prefix:    prefix,
		client:    client,
	}

	// Probing a blob name that cannot exist exercises auth and container
	// reachability without touching real data.
	if _, err := b.client.BlobExists(ctx, container, "\x00nonexistent\x00"); err != nil {
		return nil, fmt.Errorf("cannot access upstream Azure container %q: %w", container, err)
	}

	slog.Info("Azure backend initialized", "container", container, "account", accountURL, "prefix", prefix)
	return b, nil
}

// NewAzureBackendWithClient creates an AzureBackend with a pre-configured
// client. This is primarily used for testing with mock clients.
func NewAzureBackendWithClient(container, prefix string, client AzureBlobAPI) *AzureBackend {
	return &AzureBackend{
		Container: container,
		Prefix:    prefix,
		client:    client,
	}
}

// blobName maps a (namespace, name) to an upstream Azure blob name.
func (b *AzureBackend) blobName(namespace, name string) string {
	return b.Prefix + namespace + "/" + name
}

// Put uploads the object bytes. Azure block blob uploads commit atomically;
// readers see the previous blob until the new one is finalized.
func (b *AzureBackend) Put(ctx context.Context, namespace, name string, data []byte) error {
	if err := b.client.UploadBlob(ctx, b.Container, b.blobName(namespace, name), data); err != nil {
		return fmt.Errorf("uploading blob to Azure: %w", err)
	}
	return nil
}

// Get retrieves the object from the upstream container.
func (b *AzureBackend) Get(ctx context.Context, namespace, name string) (io.ReadCloser, int64, error) {
	data, err := b.client.DownloadBlob(ctx, b.Container, b.blobName(namespace, name))
	if err != nil {
		if b.client.IsNotFound(err) {
			return nil, 0, ErrObjectNotFound
		}
		return nil, 0, fmt.Errorf("downloading blob from Azure: %w", err)
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

// Delete removes the object from the upstream container.
func (b *AzureBackend) Delete(ctx context.Context, namespace, name string) error {
	if err := b.client.DeleteBlob(ctx, b.Container, b.blobName(namespace, name)); err != nil {
		if b.client.IsNotFound(err) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("deleting blob from Azure: %w", err)
	}
	return nil
}

// Exists reports whether the object is present in the upstream container.
func (b *AzureBackend) Exists(ctx context.Context, namespace, name string) (bool, error) {
	ok, err := b.client.BlobExists(ctx, b.Container, b.blobName(namespace, name))
	if err != nil {
		return false, fmt.Errorf("checking blob existence in Azure: %w", err)
	}
	return ok, nil
}

// List returns the names of all objects under the namespace prefix.
func (b *AzureBackend) List(ctx context.Context, namespace string) ([]string, error) {
	prefix := b.Prefix + namespace + "/"

	blobs, err := b.client.ListBlobs(ctx, b.Container, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing Azure blobs under %q: %w", prefix, err)
	}

	var names []string
	for _, blob := range blobs {
		if len(blob) > len(prefix) {
			names = append(names, blob[len(prefix):])
		}
	}
	return names, nil
}

// EnsureNamespace is a no-op: namespaces are blob name prefixes within the
// upstream container, not containers that need creating.
func (b *AzureBackend) EnsureNamespace(ctx context.Context, namespace string) error {
	return nil
}

// HealthCheck verifies the upstream container is accessible.
func (b *AzureBackend) HealthCheck(ctx context.Context) error {
	_, err := b.client.BlobExists(ctx, b.Container, "\x00nonexistent\x00")
	return err
}

// Ensure AzureBackend implements Backend at compile time.
var _ Backend = (*AzureBackend)(nil)
