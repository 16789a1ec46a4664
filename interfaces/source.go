package interfaces

import (
	"fmt"
	"strings"
)

// BackendType identifies the kind of storage a source entry points at.
type BackendType string

const (
	// LocalType stores the feed in a local directory.
	LocalType BackendType = "local"
	// BlobSASType stores the feed in a blob container addressed by a SAS URL.
	BlobSASType BackendType = "blob-sas"
	// BlobAccountType stores the feed in a blob container of a storage account.
	BlobAccountType BackendType = "blob-account"
	// ObjectStoreType stores the feed in an S3-compatible bucket.
	ObjectStoreType BackendType = "object-store"
)

// ParseBackendType maps a configured type string to a BackendType.
// The legacy names "s3" and "azure" are accepted; "azure" is reported as
// BlobAccountType and callers use IsLegacyAzureType to switch it to
// BlobSASType when a SAS URL is set.
func ParseBackendType(s string) (BackendType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local":
		return LocalType, nil
	case "blob-sas":
		return BlobSASType, nil
	case "blob-account", "azure":
		return BlobAccountType, nil
	case "object-store", "s3":
		return ObjectStoreType, nil
	default:
		return "", fmt.Errorf("unknown source type %q", s)
	}
}

// IsLegacyAzureType reports whether s is the legacy "azure" type name, which
// covers both SAS and account blob sources.
func IsLegacyAzureType(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "azure")
}

// IsLocal reports whether paths of this type are filesystem paths.
func (t BackendType) IsLocal() bool {
	return t == LocalType
}

// EncryptionMode is the server side encryption applied to stored objects.
type EncryptionMode string

const (
	EncryptionNone   EncryptionMode = "none"
	EncryptionAES256 EncryptionMode = "aes256"
)

// ParseEncryptionMode accepts "none" and "aes256" in any casing. An empty
// string selects EncryptionNone.
func ParseEncryptionMode(s string) (EncryptionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return EncryptionNone, nil
	case "aes256":
		return EncryptionAES256, nil
	default:
		return "", fmt.Errorf("unsupported encryption mode %q, expected none or aes256", s)
	}
}

// SourceConfig is a validated, typed source entry of a feed configuration.
// It is not modified after the matcher returns it.
type SourceConfig struct {
	Name string
	Type BackendType

	// Path and BaseURI as written in the configuration, possibly empty.
	Path        string
	BaseURI     string
	FeedSubPath string

	// ConfigPath is the location of the configuration file the entry was
	// read from. Empty when the configuration did not come from a file.
	ConfigPath string

	// blob-sas
	SASURL string

	// blob-account
	ConnectionString string
	Container        string

	// object-store
	BucketName      string
	Region          string
	ServiceURL      string
	ProfileName     string
	AccessKeyID     string
	SecretAccessKey string
	Encryption      EncryptionMode
	Compress        bool
}
