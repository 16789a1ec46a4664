package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/ruteri/feedsource/interfaces"
	"github.com/ruteri/feedsource/uriutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileBackend(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "feed")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := NewFileBackend(uriutils.ResolvePaths(root, "", ""), logger)

	keys, err := backend.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, backend.Store(ctx, "index.json", []byte(`{"version":"3.0.0"}`)))
	require.NoError(t, backend.Store(ctx, "flatcontainer/pkg/1.0.0/pkg.1.0.0.nupkg", []byte("zip")))

	data, err := backend.Fetch(ctx, "index.json")
	require.NoError(t, err)
	assert.Equal(t, `{"version":"3.0.0"}`, string(data))

	keys, err = backend.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"index.json", "flatcontainer/pkg/1.0.0/pkg.1.0.0.nupkg"}, keys)

	require.NoError(t, backend.Delete(ctx, "index.json"))
	require.NoError(t, backend.Delete(ctx, "index.json"))

	_, err = backend.Fetch(ctx, "index.json")
	assert.True(t, errors.Is(err, interfaces.ErrFileNotFound))

	assert.Equal(t, "file-feed", backend.Name())
	assert.Equal(t, filepath.ToSlash(root)+"/", backend.AbsolutePath())
}

func TestFileBackend_InvalidKeys(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := NewFileBackend(uriutils.ResolvePaths(t.TempDir(), "", ""), logger)

	for _, key := range []string{"", ".", "../escape.json", "a/../../escape.json"} {
		assert.Error(t, backend.Store(ctx, key, []byte("x")), key)
		_, err := backend.Fetch(ctx, key)
		assert.Error(t, err, key)
	}
}

func TestKeyHelpers(t *testing.T) {
	key, err := cleanKey("/a//b/./c.json")
	require.NoError(t, err)
	assert.Equal(t, "a/b/c.json", key)

	assert.Equal(t, "feed/a.json", joinPrefix("/feed/", "a.json"))
	assert.Equal(t, "a.json", joinPrefix("", "a.json"))
	assert.Equal(t, "a.json", trimPrefix("feed", "feed/a.json"))

	assert.True(t, isCompressible("index.JSON"))
	assert.False(t, isCompressible("pkg.nupkg"))
	assert.Equal(t, "application/json", contentTypeFor("index.json"))

	compressed, err := gzipBytes([]byte("hello"))
	require.NoError(t, err)
	plain, err := gunzipBytes(compressed)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(plain))
}
