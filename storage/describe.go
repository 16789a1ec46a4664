package storage

import "github.com/ruteri/feedsource/interfaces"

// BackendInfo summarizes a resolved feed storage handle for display.
type BackendInfo struct {
	Name         string                    `json:"name"`
	Type         interfaces.BackendType    `json:"type"`
	Backend      string                    `json:"backend"`
	AbsolutePath string                    `json:"absolutePath"`
	BaseURI      string                    `json:"baseURI"`
	Credentials  CredentialSource          `json:"credentials,omitempty"`
	Encryption   interfaces.EncryptionMode `json:"encryption,omitempty"`
	Compress     *bool                     `json:"compress,omitempty"`
}

// Describe reports the resolved state of backend, built for src.
func Describe(src *interfaces.SourceConfig, backend interfaces.FeedStorage) BackendInfo {
	info := BackendInfo{
		Name:         src.Name,
		Type:         src.Type,
		Backend:      backend.Name(),
		AbsolutePath: backend.AbsolutePath(),
		BaseURI:      backend.BaseURI(),
	}
	if s3Backend, ok := backend.(*S3Backend); ok {
		compress := s3Backend.Compress()
		info.Credentials = s3Backend.CredentialSource()
		info.Encryption = s3Backend.Encryption()
		info.Compress = &compress
	}
	return info
}
