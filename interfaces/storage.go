package interfaces

import (
	"context"
	"errors"
)

var (
	// ErrSourceNotFound is returned when no source entry matches the requested name.
	ErrSourceNotFound = errors.New("source not found")

	// ErrFileNotFound is returned when a key does not exist in the feed storage.
	ErrFileNotFound = errors.New("file not found")
)

// ResolvedPaths holds the trailing-slash-normalized locations of a feed.
// AbsolutePath is where the feed is written; BaseURI is the prefix clients
// use to read it, which may differ when the feed sits behind a CDN.
type ResolvedPaths struct {
	AbsolutePath string `json:"absolutePath"`
	BaseURI      string `json:"baseURI"`
}

// FeedStorage is a live handle to the storage backend of a feed source.
// Keys are slash-separated and relative to the feed root.
type FeedStorage interface {
	// Fetch reads the content stored under key.
	// Returns ErrFileNotFound if the key does not exist.
	Fetch(ctx context.Context, key string) ([]byte, error)

	// Store writes data under key, replacing any existing content.
	Store(ctx context.Context, key string, data []byte) error

	// List returns every key below the feed root.
	List(ctx context.Context) ([]string, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Name returns identifier for logging.
	Name() string

	// AbsolutePath returns the normalized location the feed is written to.
	AbsolutePath() string

	// BaseURI returns the normalized prefix clients read the feed from.
	BaseURI() string
}

// StorageBackendFactory creates feed storage handles from source entries.
type StorageBackendFactory interface {
	// BackendFor resolves credentials and constructs the handle for src.
	BackendFor(ctx context.Context, src *SourceConfig) (FeedStorage, error)
}
