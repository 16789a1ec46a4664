package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ruteri/feedsource/interfaces"
	"github.com/ruteri/feedsource/uriutils"
)

// AzureEmptyConnectionString is the placeholder written by feed templates
// before a real storage account is configured.
const AzureEmptyConnectionString = "DefaultEndpointsProtocol=https;AccountName=;AccountKey=;BlobEndpoint="

const knownTypes = "local, blob-sas, blob-account, object-store"

// Source entry keys.
const (
	KeyName             = "name"
	KeyType             = "type"
	KeyPath             = "path"
	KeyBaseURI          = "baseURI"
	KeyFeedSubPath      = "feedSubPath"
	KeySASURL           = "sasUrl"
	KeyConnectionString = "connectionString"
	KeyContainer        = "container"
	KeyBucketName       = "bucketName"
	KeyRegion           = "region"
	KeyServiceURL       = "serviceURL"
	KeyProfileName      = "profileName"
	KeyAccessKeyID      = "accessKeyId"
	KeySecretAccessKey  = "secretAccessKey"
	KeyEncryption       = "serverSideEncryptionMethod"
	KeyCompress         = "compress"
)

// FindSource selects the entry of doc named name (case-insensitive) and
// returns it typed and validated. The first match wins; later duplicates are
// logged. Returns interfaces.ErrSourceNotFound when nothing matches.
func FindSource(doc *Document, name string, log *slog.Logger) (*interfaces.SourceConfig, error) {
	if log == nil {
		log = slog.Default()
	}

	var match Entry
	for i, entry := range doc.Sources {
		if !strings.EqualFold(entry.String(KeyName), name) {
			continue
		}
		if match != nil {
			log.Warn("Duplicate source name, using first entry",
				slog.String("source", name),
				slog.Int("index", i))
			continue
		}
		match = entry
	}

	if match == nil {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrSourceNotFound, name)
	}

	return ParseSource(match, doc.Path)
}

// SourceNames returns the names of all entries in configuration order.
func SourceNames(doc *Document) []string {
	names := make([]string, 0, len(doc.Sources))
	for _, entry := range doc.Sources {
		names = append(names, entry.String(KeyName))
	}
	return names
}

// ParseSource extracts the typed fields of entry and validates them for the
// entry's backend type.
func ParseSource(entry Entry, configPath string) (*interfaces.SourceConfig, error) {
	src := &interfaces.SourceConfig{
		Name:        entry.String(KeyName),
		Path:        entry.String(KeyPath),
		BaseURI:     entry.String(KeyBaseURI),
		FeedSubPath: entry.String(KeyFeedSubPath),
		ConfigPath:  configPath,
	}

	rawType := entry.String(KeyType)
	if rawType == "" {
		return nil, interfaces.NewConfigError(src, KeyType, "missing source type, expected one of "+knownTypes)
	}
	backendType, err := interfaces.ParseBackendType(rawType)
	if err != nil {
		e := interfaces.NewConfigError(src, KeyType, fmt.Sprintf("unknown source type %q, expected one of %s", rawType, knownTypes))
		e.Type = interfaces.BackendType(rawType)
		return nil, e
	}
	src.Type = backendType

	switch src.Type {
	case interfaces.LocalType:
		err = parseLocal(src)
	case interfaces.BlobSASType, interfaces.BlobAccountType:
		err = parseBlob(entry, src, interfaces.IsLegacyAzureType(rawType))
	case interfaces.ObjectStoreType:
		err = parseObjectStore(entry, src)
	}
	if err != nil {
		return nil, err
	}

	return src, nil
}

func parseLocal(src *interfaces.SourceConfig) error {
	_, err := uriutils.ResolveAbsolutePath(src.ConfigPath, src.Path, src.Type)
	return attachSource(src, err)
}

func parseBlob(entry Entry, src *interfaces.SourceConfig, legacyAzure bool) error {
	src.SASURL = entry.String(KeySASURL)
	src.ConnectionString = entry.String(KeyConnectionString)
	src.Container = entry.String(KeyContainer)

	// "azure" entries carrying a SAS URL are SAS sources.
	if legacyAzure && src.SASURL != "" && src.ConnectionString == "" {
		src.Type = interfaces.BlobSASType
	}

	if _, err := uriutils.ResolveAbsolutePath(src.ConfigPath, src.Path, src.Type); err != nil {
		return attachSource(src, err)
	}

	if src.Type == interfaces.BlobSASType {
		if src.SASURL == "" {
			return interfaces.NewConfigError(src, KeySASURL, "missing SAS URL")
		}
		if !uriutils.IsAbsoluteURI(src.SASURL) {
			return interfaces.NewConfigError(src, KeySASURL, "SAS URL must be an absolute URI")
		}
		return nil
	}

	if src.ConnectionString == "" {
		return interfaces.NewConfigError(src, KeyConnectionString, "missing connection string")
	}
	if strings.EqualFold(src.ConnectionString, AzureEmptyConnectionString) {
		return interfaces.NewConfigError(src, KeyConnectionString, "connection string is the empty placeholder, set a storage account")
	}
	if src.Container == "" {
		return interfaces.NewConfigError(src, KeyContainer, "missing container name")
	}
	return nil
}

func parseObjectStore(entry Entry, src *interfaces.SourceConfig) error {
	src.BucketName = entry.String(KeyBucketName)
	src.Region = entry.String(KeyRegion)
	src.ServiceURL = entry.String(KeyServiceURL)
	src.ProfileName = entry.String(KeyProfileName)
	src.AccessKeyID = entry.String(KeyAccessKeyID)
	src.SecretAccessKey = entry.String(KeySecretAccessKey)

	if src.BucketName == "" {
		return interfaces.NewConfigError(src, KeyBucketName, "missing bucket name")
	}

	switch {
	case src.Region != "" && src.ServiceURL != "":
		return interfaces.NewConfigError(src, KeyRegion, "region and serviceURL are mutually exclusive")
	case src.Region == "" && src.ServiceURL == "":
		return interfaces.NewConfigError(src, KeyRegion, "either region or serviceURL is required")
	case src.ServiceURL != "" && !uriutils.IsAbsoluteURI(src.ServiceURL):
		return interfaces.NewConfigError(src, KeyServiceURL, "serviceURL must be an absolute URI")
	}

	if (src.AccessKeyID == "") != (src.SecretAccessKey == "") {
		return interfaces.NewConfigError(src, KeyAccessKeyID, "accessKeyId and secretAccessKey must be set together")
	}

	mode, err := interfaces.ParseEncryptionMode(entry.String(KeyEncryption))
	if err != nil {
		e := interfaces.NewConfigError(src, KeyEncryption, "invalid value")
		e.Err = err
		return e
	}
	src.Encryption = mode

	compress, err := entry.Bool(KeyCompress, true)
	if err != nil {
		e := interfaces.NewConfigError(src, KeyCompress, "invalid value")
		e.Err = err
		return e
	}
	src.Compress = compress

	_, err = uriutils.ResolveAbsolutePath(src.ConfigPath, src.Path, src.Type)
	return attachSource(src, err)
}

// attachSource fills in the entry name on config errors raised by helpers
// that only know the backend type.
func attachSource(src *interfaces.SourceConfig, err error) error {
	var cfgErr *interfaces.ConfigError
	if errors.As(err, &cfgErr) && cfgErr.Source == "" {
		cfgErr.Source = src.Name
	}
	return err
}
