package storage

import (
	"context"
	"errors"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// realAzureClient wraps the official Azure SDK client to satisfy AzureBlobAPI.
type realAzureClient struct {
	client *azblob.Client
}

// newRealAzureClient creates an Azure Blob client authenticated via
// DefaultAzureCredential.
func newRealAzureClient(accountURL string) (*realAzureClient, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}

	client, err := azblob.NewClient(accountURL, cred, nil)
	if err != nil {
		return nil, err
	}

	return &realAzureClient{client: client}, nil
}

func (c *realAzureClient) UploadBlob(ctx context.Context, container, blob string, data []byte) error {
	_, err := c.client.UploadBuffer(ctx, container, blob, data, nil)
	return err
}

func (c *realAzureClient) DownloadBlob(ctx context.Context, container, blob string) ([]byte, error) {
	resp, err := c.client.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (c *realAzureClient) DeleteBlob(ctx context.Context, container, blob string) error {
	_, err := c.client.DeleteBlob(ctx, container, blob, nil)
	return err
}

func (c *realAzureClient) BlobExists(ctx context.Context, container, blob string) (bool, error) {
	_, err := c.client.ServiceClient().NewContainerClient(container).NewBlobClient(blob).GetProperties(ctx, nil)
	if err != nil {
		if c.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c *realAzureClient) ListBlobs(ctx context.Context, container, prefix string) ([]string, error) {
	pager := c.client.NewListBlobsFlatPager(container, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})

	var names []string
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				names = append(names, *item.Name)
			}
		}
	}
	return names, nil
}

// IsNotFound reports whether the error is an Azure 404 response.
func (c *realAzureClient) IsNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == 404
}
