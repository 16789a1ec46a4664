package interfaces

import (
	"fmt"
	"strings"
)

// ConfigError reports a user-fixable problem with a source entry.
type ConfigError struct {
	Source  string
	Type    BackendType
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("invalid source configuration")
	if e.Source != "" {
		fmt.Fprintf(&b, " %q", e.Source)
	}
	if e.Type != "" {
		fmt.Fprintf(&b, " (type %s)", e.Type)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": %s", e.Field)
	}
	fmt.Fprintf(&b, ": %s", e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a ConfigError for field of a source entry.
func NewConfigError(src *SourceConfig, field, message string) *ConfigError {
	e := &ConfigError{Field: field, Message: message}
	if src != nil {
		e.Source = src.Name
		e.Type = src.Type
	}
	return e
}

// CredentialError reports that the ambient credentials could not be verified.
// Err always holds the underlying transport or authentication failure.
type CredentialError struct {
	Source string
	Err    error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("source %q: no usable credential source found, set profileName, accessKeyId/secretAccessKey or environment credentials: %v", e.Source, e.Err)
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}
