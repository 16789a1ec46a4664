package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/ruteri/feedsource/config"
	"github.com/ruteri/feedsource/interfaces"
	"github.com/ruteri/feedsource/uriutils"
)

// StorageBackendFactory turns validated source entries into live feed
// storage handles. Each call builds a new handle; nothing is shared between
// handles, so sources may be resolved from several goroutines at once.
type StorageBackendFactory struct {
	log         *slog.Logger
	credentials *CredentialResolver
}

// NewStorageBackendFactory creates a new factory instance. A nil resolver
// selects one reading the process environment.
func NewStorageBackendFactory(logger *slog.Logger, resolver *CredentialResolver) *StorageBackendFactory {
	if logger == nil {
		logger = slog.Default()
	}
	if resolver == nil {
		resolver = NewCredentialResolver(logger)
	}
	return &StorageBackendFactory{
		log:         logger,
		credentials: resolver,
	}
}

// BackendForSource selects the source named name in doc and builds its handle.
// Returns an error wrapping interfaces.ErrSourceNotFound when no entry matches.
func (sf *StorageBackendFactory) BackendForSource(ctx context.Context, doc *config.Document, name string) (interfaces.FeedStorage, error) {
	src, err := config.FindSource(doc, name, sf.log)
	if err != nil {
		return nil, err
	}
	return sf.BackendFor(ctx, src)
}

// BackendFor builds the handle for src. Object-store sources resolve their
// credentials first, which may involve one STS request.
func (sf *StorageBackendFactory) BackendFor(ctx context.Context, src *interfaces.SourceConfig) (interfaces.FeedStorage, error) {
	switch src.Type {
	case interfaces.LocalType:
		return sf.createFileBackend(src)
	case interfaces.BlobSASType:
		return sf.createSASBlobBackend(src)
	case interfaces.BlobAccountType:
		return sf.createAccountBlobBackend(src)
	case interfaces.ObjectStoreType:
		return sf.createS3Backend(ctx, src)
	default:
		return nil, interfaces.NewConfigError(src, config.KeyType, fmt.Sprintf("unsupported backend type %q", src.Type))
	}
}

// createFileBackend creates a local directory backend.
// An empty path denotes the directory of the configuration file.
func (sf *StorageBackendFactory) createFileBackend(src *interfaces.SourceConfig) (interfaces.FeedStorage, error) {
	absPath, err := uriutils.ResolveAbsolutePath(src.ConfigPath, src.Path, src.Type)
	if err != nil {
		return nil, attachSourceName(src, err)
	}
	paths := uriutils.ResolvePaths(absPath, src.BaseURI, "")

	sf.log.Debug("Creating file backend",
		slog.String("source", src.Name),
		slog.String("path", paths.AbsolutePath))

	return NewFileBackend(paths, sf.log), nil
}

// createSASBlobBackend creates a blob backend from a container SAS URL.
// The path defaults to the container URL without its token.
func (sf *StorageBackendFactory) createSASBlobBackend(src *interfaces.SourceConfig) (interfaces.FeedStorage, error) {
	if src.SASURL == "" {
		return nil, interfaces.NewConfigError(src, config.KeySASURL, "missing SAS URL")
	}

	containerURL, err := uriutils.ContainerURL(src.SASURL)
	if err != nil {
		e := interfaces.NewConfigError(src, config.KeySASURL, "invalid SAS URL")
		e.Err = err
		return nil, e
	}

	paths, err := remotePaths(src, containerURL)
	if err != nil {
		return nil, err
	}

	client, err := container.NewClientWithNoCredential(src.SASURL, nil)
	if err != nil {
		e := interfaces.NewConfigError(src, config.KeySASURL, "failed to create container client")
		e.Err = err
		return nil, e
	}

	sf.log.Debug("Creating SAS blob backend",
		slog.String("source", src.Name),
		slog.String("container", containerURL),
		slog.String("path", paths.AbsolutePath))

	return NewBlobBackend(client, src.FeedSubPath, paths, sf.log), nil
}

// createAccountBlobBackend creates a blob backend from a storage account
// connection string. The path defaults to the container URL.
func (sf *StorageBackendFactory) createAccountBlobBackend(src *interfaces.SourceConfig) (interfaces.FeedStorage, error) {
	if src.ConnectionString == "" || src.Container == "" {
		return nil, interfaces.NewConfigError(src, config.KeyConnectionString, "connection string and container are required")
	}

	client, err := container.NewClientFromConnectionString(src.ConnectionString, src.Container, nil)
	if err != nil {
		e := interfaces.NewConfigError(src, config.KeyConnectionString, "invalid connection string")
		e.Err = err
		return nil, e
	}

	paths, err := remotePaths(src, client.URL())
	if err != nil {
		return nil, err
	}

	sf.log.Debug("Creating account blob backend",
		slog.String("source", src.Name),
		slog.String("container", src.Container),
		slog.String("path", paths.AbsolutePath))

	return NewBlobBackend(client, src.FeedSubPath, paths, sf.log), nil
}

// createS3Backend creates an S3 or S3-compatible backend. The path defaults
// to the public bucket URL for the region or service URL.
func (sf *StorageBackendFactory) createS3Backend(ctx context.Context, src *interfaces.SourceConfig) (interfaces.FeedStorage, error) {
	if src.BucketName == "" {
		return nil, interfaces.NewConfigError(src, config.KeyBucketName, "missing bucket name")
	}
	if (src.Region == "") == (src.ServiceURL == "") {
		return nil, interfaces.NewConfigError(src, config.KeyRegion, "exactly one of region and serviceURL is required")
	}

	bucketURL, err := uriutils.S3BucketURL(src.BucketName, src.Region, src.ServiceURL)
	if err != nil {
		e := interfaces.NewConfigError(src, config.KeyRegion, "cannot derive bucket URL")
		e.Err = err
		return nil, e
	}

	paths, err := remotePaths(src, bucketURL)
	if err != nil {
		return nil, err
	}

	resolution, err := sf.credentials.Resolve(ctx, src)
	if err != nil {
		return nil, err
	}

	sf.log.Debug("Creating S3 backend",
		slog.String("source", src.Name),
		slog.String("bucket", src.BucketName),
		slog.String("path", paths.AbsolutePath),
		slog.String("credentials", string(resolution.Source)))

	backend, err := NewS3Backend(S3Options{
		BucketName:       src.BucketName,
		Prefix:           src.FeedSubPath,
		Region:           src.Region,
		ServiceURL:       src.ServiceURL,
		Paths:            paths,
		Encryption:       src.Encryption,
		Compress:         src.Compress,
		Credentials:      resolution.Credentials,
		CredentialSource: resolution.Source,
	}, sf.log)
	if err != nil {
		return nil, err
	}
	return backend, nil
}

// remotePaths resolves the configured path of a remote source, falling back
// to defaultPath, and appends the feed sub path.
func remotePaths(src *interfaces.SourceConfig, defaultPath string) (interfaces.ResolvedPaths, error) {
	absPath, err := uriutils.ResolveAbsolutePath(src.ConfigPath, src.Path, src.Type)
	if err != nil {
		return interfaces.ResolvedPaths{}, attachSourceName(src, err)
	}
	if absPath == "" {
		absPath = defaultPath
	}
	return uriutils.ResolvePaths(absPath, src.BaseURI, src.FeedSubPath), nil
}

func attachSourceName(src *interfaces.SourceConfig, err error) error {
	if cfgErr, ok := err.(*interfaces.ConfigError); ok && cfgErr.Source == "" {
		cfgErr.Source = src.Name
	}
	return err
}
