package storage

import (
	"context"
	"fmt"
	"path"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureSink uploads optimized images to an Azure Blob Storage
// container, for deployments that publish texture packs straight to
// blob-backed CDNs. Blob uploads are atomic on commit, so the sink
// contract holds without a rename step.
type AzureSink struct {
	client    *azblob.Client
	container string
}

// NewAzureSink creates a sink backed by the given storage account.
func NewAzureSink(cfg AzureConfig) (*AzureSink, error) {
	credential, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, err
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, err
	}

	return &AzureSink{client: client, container: cfg.Container}, nil
}

// Exists reports whether a blob already occupies rel.
func (s *AzureSink) Exists(ctx context.Context, rel string) (bool, error) {
	blobClient := s.client.ServiceClient().
		NewContainerClient(s.container).
		NewBlobClient(path.Clean(rel))
	_, err := blobClient.GetProperties(ctx, nil)
	if err == nil {
		return true, nil
	}
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return false, nil
	}
	return false, err
}

// Store uploads data as the blob rel.
func (s *AzureSink) Store(ctx context.Context, rel string, data []byte) error {
	_, err := s.client.UploadBuffer(ctx, s.container, path.Clean(rel), data, nil)
	return err
}

// Location returns the blob URL for rel.
func (s *AzureSink) Location(rel string) string {
	return fmt.Sprintf("%s%s/%s", s.client.URL(), s.container, path.Clean(rel))
}
