package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ruteri/feedsource/interfaces"
)

// FileBackend stores a feed in a local directory. The directory is created
// on the first write.
type FileBackend struct {
	baseDir string
	paths   interfaces.ResolvedPaths
	log     *slog.Logger
}

// NewFileBackend creates a local feed backend rooted at paths.AbsolutePath.
func NewFileBackend(paths interfaces.ResolvedPaths, log *slog.Logger) *FileBackend {
	return &FileBackend{
		baseDir: filepath.FromSlash(paths.AbsolutePath),
		paths:   paths,
		log:     log,
	}
}

// Fetch reads key from the feed directory.
// Returns ErrFileNotFound if the file doesn't exist.
func (b *FileBackend) Fetch(ctx context.Context, key string) ([]byte, error) {
	filePath, err := b.filePath(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, interfaces.ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	b.log.Debug("Fetched file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return data, nil
}

// Store writes data to key, creating parent directories as needed.
func (b *FileBackend) Store(ctx context.Context, key string, data []byte) error {
	filePath, err := b.filePath(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	b.log.Debug("Stored file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return nil
}

// List returns the slash-separated keys of all files below the feed root.
// A feed directory that does not exist yet is empty.
func (b *FileBackend) List(ctx context.Context) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(b.baseDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == b.baseDir {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return ctx.Err()
		}
		rel, err := filepath.Rel(b.baseDir, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", b.baseDir, err)
	}
	return keys, nil
}

// Delete removes key. Missing files are ignored.
func (b *FileBackend) Delete(ctx context.Context, key string) error {
	filePath, err := b.filePath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Name returns a unique identifier for this storage backend.
func (b *FileBackend) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(b.baseDir))
}

func (b *FileBackend) AbsolutePath() string {
	return b.paths.AbsolutePath
}

func (b *FileBackend) BaseURI() string {
	return b.paths.BaseURI
}

func (b *FileBackend) filePath(key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(b.baseDir, filepath.FromSlash(cleaned)), nil
}
