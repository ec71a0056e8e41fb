package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// BlobSource reads and writes artifacts in an Azure Blob Storage container,
// under an optional prefix (for example the experiment name).
type BlobSource struct {
	client    *azblob.Client
	container string
	prefix    string
}

// NewBlobSource connects to the storage account at serviceURL using the
// default Azure credential chain.
func NewBlobSource(serviceURL, container, prefix string) (*BlobSource, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("creating azure credential: %w", err)
	}
	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating blob client: %w", err)
	}
	return NewBlobSourceFromClient(client, container, prefix), nil
}

// NewBlobSourceFromClient wraps an existing client.
func NewBlobSourceFromClient(client *azblob.Client, container, prefix string) *BlobSource {
	return &BlobSource{client: client, container: container, prefix: prefix}
}

// WithPrefix returns a source for the same container under another prefix.
func (b *BlobSource) WithPrefix(prefix string) *BlobSource {
	return &BlobSource{client: b.client, container: b.container, prefix: prefix}
}

// Location returns container/prefix.
func (b *BlobSource) Location() string {
	return path.Join(b.container, b.prefix)
}

func (b *BlobSource) blobName(name string) string {
	if b.prefix == "" {
		return name
	}
	return path.Join(b.prefix, name)
}

// ReadArtifact downloads a blob. A missing blob yields an error matching
// fs.ErrNotExist.
func (b *BlobSource) ReadArtifact(ctx context.Context, name string) ([]byte, error) {
	resp, err := b.client.DownloadStream(ctx, b.container, b.blobName(name), nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, fmt.Errorf("blob %s: %w", b.blobName(name), fs.ErrNotExist)
		}
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) {
			return nil, fmt.Errorf("downloading %s: %s (status %d)", b.blobName(name), respErr.ErrorCode, respErr.StatusCode)
		}
		return nil, fmt.Errorf("downloading %s: %w", b.blobName(name), err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", b.blobName(name), err)
	}
	return data, nil
}

// WriteArtifact uploads data as a block blob, replacing any existing blob.
func (b *BlobSource) WriteArtifact(ctx context.Context, name string, data []byte) error {
	if _, err := b.client.UploadBuffer(ctx, b.container, b.blobName(name), data, nil); err != nil {
		return fmt.Errorf("uploading %s: %w", b.blobName(name), err)
	}
	return nil
}
