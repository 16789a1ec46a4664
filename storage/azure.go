package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/ruteri/feedsource/interfaces"
)

// BlobBackend stores a feed in an Azure blob container.
// The container client is safe for concurrent use.
type BlobBackend struct {
	client *container.Client
	prefix string
	paths  interfaces.ResolvedPaths
	log    *slog.Logger
}

// NewBlobBackend wraps a container client. prefix is prepended to every key.
func NewBlobBackend(client *container.Client, prefix string, paths interfaces.ResolvedPaths, log *slog.Logger) *BlobBackend {
	return &BlobBackend{
		client: client,
		prefix: prefix,
		paths:  paths,
		log:    log,
	}
}

// Fetch downloads a blob.
// Returns ErrFileNotFound if the blob doesn't exist.
func (b *BlobBackend) Fetch(ctx context.Context, key string) ([]byte, error) {
	blobName, err := b.blobName(key)
	if err != nil {
		return nil, err
	}

	resp, err := b.client.NewBlobClient(blobName).DownloadStream(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, interfaces.ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to download blob: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob body: %w", err)
	}

	if resp.ContentEncoding != nil && *resp.ContentEncoding == "gzip" {
		if data, err = gunzipBytes(data); err != nil {
			return nil, err
		}
	}

	b.log.Debug("Fetched blob",
		slog.String("blob", blobName),
		slog.Int("size", len(data)))

	return data, nil
}

// Store uploads data as a block blob.
func (b *BlobBackend) Store(ctx context.Context, key string, data []byte) error {
	blobName, err := b.blobName(key)
	if err != nil {
		return err
	}

	_, err = b.client.NewBlockBlobClient(blobName).UploadBuffer(ctx, data, &blockblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: to.Ptr(contentTypeFor(blobName)),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload blob: %w", err)
	}

	b.log.Debug("Stored blob",
		slog.String("blob", blobName),
		slog.Int("size", len(data)))

	return nil
}

// List returns all blob keys below the feed prefix.
func (b *BlobBackend) List(ctx context.Context) ([]string, error) {
	opts := &container.ListBlobsFlatOptions{}
	if b.prefix != "" {
		opts.Prefix = to.Ptr(joinPrefix(b.prefix, ""))
	}

	var keys []string
	pager := b.client.NewListBlobsFlatPager(opts)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs: %w", err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			keys = append(keys, trimPrefix(b.prefix, *item.Name))
		}
	}
	return keys, nil
}

// Delete removes a blob. Missing blobs are ignored.
func (b *BlobBackend) Delete(ctx context.Context, key string) error {
	blobName, err := b.blobName(key)
	if err != nil {
		return err
	}

	_, err = b.client.NewBlobClient(blobName).Delete(ctx, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// Name returns a unique identifier for this storage backend.
func (b *BlobBackend) Name() string {
	return fmt.Sprintf("azure-%s", b.paths.AbsolutePath)
}

func (b *BlobBackend) AbsolutePath() string {
	return b.paths.AbsolutePath
}

func (b *BlobBackend) BaseURI() string {
	return b.paths.BaseURI
}

func (b *BlobBackend) blobName(key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return joinPrefix(b.prefix, cleaned), nil
}
