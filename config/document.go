// Package config loads feed configuration documents and selects the named
// source entries they contain.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultConfigFile is the file name searched for when no path is given.
	DefaultConfigFile = "sleet.json"

	// LocalOverrideFile holds developer overrides merged over DefaultConfigFile
	// when it sits next to it.
	LocalOverrideFile = "sleet.local.json"
)

// Document is a parsed feed configuration.
type Document struct {
	// Path is the absolute location of the file the document was read from,
	// empty for in-memory documents.
	Path    string
	Sources []Entry
}

// Load reads the configuration file at path. Any format viper understands is
// accepted; the format is inferred from the extension. A sleet.local.json
// next to a sleet.json is merged over it.
func Load(path string) (*Document, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigFile(absPath)
	if filepath.Ext(absPath) == "" {
		v.SetConfigType("json")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", absPath, err)
	}

	if filepath.Base(absPath) == DefaultConfigFile {
		localPath := filepath.Join(filepath.Dir(absPath), LocalOverrideFile)
		if _, err := os.Stat(localPath); err == nil {
			v.SetConfigFile(localPath)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("reading %s: %w", localPath, err)
			}
		}
	}

	sources, err := entriesFrom(v.Get("sources"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}

	return &Document{Path: absPath, Sources: sources}, nil
}

// NewDocument builds a document from already parsed source entries.
// configPath may be empty when the entries did not come from a file.
func NewDocument(configPath string, sources []map[string]any) *Document {
	entries := make([]Entry, 0, len(sources))
	for _, s := range sources {
		entries = append(entries, Entry(s))
	}
	return &Document{Path: configPath, Sources: entries}
}

// FindConfigFile looks for DefaultConfigFile in dir and each of its parents.
func FindConfigFile(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dir, err)
	}

	for {
		candidate := filepath.Join(dir, DefaultConfigFile)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s not found in %s or any parent directory", DefaultConfigFile, dir)
		}
		dir = parent
	}
}

func entriesFrom(raw any) ([]Entry, error) {
	if raw == nil {
		return nil, nil
	}

	list, ok := raw.([]any)
	if !ok {
		return nil, errors.New("sources must be a list")
	}

	entries := make([]Entry, 0, len(list))
	for i, item := range list {
		switch m := item.(type) {
		case map[string]any:
			entries = append(entries, Entry(m))
		case map[any]any:
			converted := make(map[string]any, len(m))
			for k, val := range m {
				converted[fmt.Sprint(k)] = val
			}
			entries = append(entries, Entry(converted))
		default:
			return nil, fmt.Errorf("sources[%d] must be an object", i)
		}
	}
	return entries, nil
}

// Entry is one raw source entry. Keys are matched case-insensitively.
type Entry map[string]any

// Get returns the value stored under key, ignoring key casing.
func (e Entry) Get(key string) (any, bool) {
	if v, ok := e[key]; ok {
		return v, true
	}
	for k, v := range e {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// String returns the trimmed string value under key, or "".
func (e Entry) String(key string) string {
	v, ok := e.Get(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Bool returns the boolean under key. Missing or empty values yield def;
// values that are neither bools nor bool strings are an error.
func (e Entry) Bool(key string, def bool) (bool, error) {
	v, ok := e.Get(key)
	if !ok || v == nil {
		return def, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "":
			return def, nil
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
	}
	return def, fmt.Errorf("%v is not a boolean", v)
}
