package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

// AzureBlobStore implements Store against a single Azure Blob Storage
// container, matching the "Storage:{ConnectionString,TestResultsContainer}"
// configuration shape §6 names.
type AzureBlobStore struct {
	client        *azblob.Client
	containerName string
}

// NewAzureBlobStore builds an AzureBlobStore from a storage-account
// connection string and the container name test artifacts live in.
func NewAzureBlobStore(connectionString, containerName string) (*AzureBlobStore, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: building azure blob client: %w", err)
	}
	return &AzureBlobStore{client: client, containerName: containerName}, nil
}

func (s *AzureBlobStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.UploadBuffer(ctx, s.containerName, key, body, nil)
	if err != nil {
		return fmt.Errorf("storage: uploading %q: %w", key, err)
	}
	return nil
}

func (s *AzureBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, s.containerName, key, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: downloading %q: %w", key, err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (s *AzureBlobStore) List(ctx context.Context, prefix string) ([]Object, error) {
	var objects []Object
	pager := s.client.NewListBlobsFlatPager(s.containerName, &container.ListBlobsFlatOptions{
		Prefix: &prefix,
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("storage: listing prefix %q: %w", prefix, err)
		}
		for _, item := range page.Segment.BlobItems {
			size := int64(0)
			if item.Properties != nil && item.Properties.ContentLength != nil {
				size = *item.Properties.ContentLength
			}
			objects = append(objects, Object{Key: *item.Name, Size: size})
		}
	}
	return objects, nil
}

func (s *AzureBlobStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteBlob(ctx, s.containerName, key, nil)
	if err != nil {
		return fmt.Errorf("storage: deleting %q: %w", key, err)
	}
	return nil
}

var _ Store = (*AzureBlobStore)(nil)
