package storage

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"
)

// cleanKey validates a feed-relative key and returns it in canonical form.
// Keys may not be empty, absolute or escape the feed root.
func cleanKey(key string) (string, error) {
	cleaned := path.Clean(strings.TrimPrefix(key, "/"))
	if key == "" || cleaned == "." || !filepath.IsLocal(filepath.FromSlash(cleaned)) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return cleaned, nil
}

// joinPrefix prepends the feed sub path of a remote backend to key.
func joinPrefix(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

// trimPrefix is the inverse of joinPrefix for listed object names.
func trimPrefix(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return strings.TrimPrefix(name, prefix+"/")
}

// isCompressible reports whether key holds feed metadata worth gzipping.
func isCompressible(key string) bool {
	switch strings.ToLower(path.Ext(key)) {
	case ".json", ".xml", ".txt", ".html":
		return true
	default:
		return false
	}
}

func contentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".json":
		return "application/json"
	case ".nupkg", ".snupkg":
		return "application/zip"
	}
	if t := mime.TypeByExtension(path.Ext(key)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write compressed data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

func gunzipBytes(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer reader.Close()
	return io.ReadAll(reader)
}
