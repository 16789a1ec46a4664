// Package interfaces defines the types shared by the feed source packages.
//
// # Source Entries
//
// SourceConfig is a validated source entry. BackendType is the closed set of
// storage kinds (local, blob-sas, blob-account, object-store) and
// EncryptionMode the server side encryption of object-store uploads.
//
// # Storage
//
// FeedStorage is the handle returned for a resolved source; ResolvedPaths
// carries its trailing-slash-normalized absolute path and base URI.
// StorageBackendFactory builds FeedStorage handles from source entries.
//
// # Errors
//
//   - ConfigError: user-fixable misconfiguration, naming source, type and field
//   - CredentialError: ambient credentials failed the identity check
//   - ErrSourceNotFound: no source entry matched the requested name
//   - ErrFileNotFound: a key is missing from a feed
package interfaces
