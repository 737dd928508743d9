package osapi_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fivetwenty-io/osapi/pkg/osapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetAndGet(t *testing.T) {
	t.Parallel()

	cache := osapi.NewMemoryCache(10)
	ctx := context.Background()

	entry := &osapi.CacheEntry{
		Data:      []byte("test data"),
		ExpiresAt: time.Now().Add(1 * time.Hour),
	}

	err := cache.Set(ctx, "key1", entry)
	require.NoError(t, err)

	retrieved, err := cache.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, entry.Data, retrieved.Data)
	assert.False(t, retrieved.CreatedAt.IsZero())
}

func TestMemoryCache_GetNonExistent(t *testing.T) {
	t.Parallel()

	cache := osapi.NewMemoryCache(10)

	_, err := cache.Get(context.Background(), "nonexistent")
	require.ErrorIs(t, err, osapi.ErrCacheKeyNotFound)
	assert.Contains(t, err.Error(), "key not found")
}

func TestMemoryCache_GetExpired(t *testing.T) {
	t.Parallel()

	cache := osapi.NewMemoryCache(10)
	ctx := context.Background()

	entry := &osapi.CacheEntry{
		Data:      []byte("test data"),
		ExpiresAt: time.Now().Add(-1 * time.Hour),
	}

	err := cache.Set(ctx, "key1", entry)
	require.NoError(t, err)

	_, err = cache.Get(ctx, "key1")
	require.ErrorIs(t, err, osapi.ErrCacheEntryExpired)
	assert.Equal(t, 0, cache.Len())
}

func TestMemoryCache_NoExpiry(t *testing.T) {
	t.Parallel()

	cache := osapi.NewMemoryCache(10)
	ctx := context.Background()

	err := cache.Set(ctx, "forever", &osapi.CacheEntry{Data: []byte("x")})
	require.NoError(t, err)
	assert.True(t, cache.Has(ctx, "forever"))
}

func TestMemoryCache_DeleteAndClear(t *testing.T) {
	t.Parallel()

	cache := osapi.NewMemoryCache(10)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		_ = cache.Set(ctx, key, &osapi.CacheEntry{Data: []byte(key), ExpiresAt: time.Now().Add(time.Hour)})
	}

	err := cache.Delete(ctx, "a")
	require.NoError(t, err)
	assert.False(t, cache.Has(ctx, "a"))
	assert.True(t, cache.Has(ctx, "b"))

	err = cache.Clear(ctx)
	require.NoError(t, err)
	assert.False(t, cache.Has(ctx, "b"))
	assert.False(t, cache.Has(ctx, "c"))
}

func TestMemoryCache_MaxSizeEvictsSoonestExpiry(t *testing.T) {
	t.Parallel()

	cache := osapi.NewMemoryCache(2)
	ctx := context.Background()

	for i, key := range []string{"a", "b", "c"} {
		entry := &osapi.CacheEntry{
			Data:      []byte(key),
			ExpiresAt: time.Now().Add(time.Duration(i+1) * time.Hour),
		}
		_ = cache.Set(ctx, key, entry)
	}

	assert.Equal(t, 2, cache.Len())
	assert.False(t, cache.Has(ctx, "a"))
	assert.True(t, cache.Has(ctx, "b"))
	assert.True(t, cache.Has(ctx, "c"))
}

func TestMemoryCache_Cleanup(t *testing.T) {
	t.Parallel()

	cache := osapi.NewMemoryCache(10)
	ctx := context.Background()

	_ = cache.Set(ctx, "expired", &osapi.CacheEntry{Data: []byte("expired"), ExpiresAt: time.Now().Add(-time.Hour)})
	_ = cache.Set(ctx, "valid", &osapi.CacheEntry{Data: []byte("valid"), ExpiresAt: time.Now().Add(time.Hour)})

	cache.Cleanup()

	assert.Equal(t, 1, cache.Len())
	assert.True(t, cache.Has(ctx, "valid"))
}

func TestFileCache_PersistsAcrossInstances(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "tokens.yml")
	ctx := context.Background()
	expiresAt := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	writer := osapi.NewFileCache(path)
	err := writer.Set(ctx, "token.abc", &osapi.CacheEntry{Data: []byte(`{"token":"t1"}`), ExpiresAt: expiresAt})
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reader := osapi.NewFileCache(path)
	entry, err := reader.Get(ctx, "token.abc")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"token":"t1"}`), entry.Data)
	assert.True(t, expiresAt.Equal(entry.ExpiresAt))
	assert.True(t, reader.Has(ctx, "token.abc"))
}

func TestFileCache_MissingAndExpired(t *testing.T) {
	t.Parallel()

	cache := osapi.NewFileCache(filepath.Join(t.TempDir(), "tokens.yml"))
	ctx := context.Background()

	_, err := cache.Get(ctx, "nope")
	require.ErrorIs(t, err, osapi.ErrCacheKeyNotFound)

	err = cache.Set(ctx, "old", &osapi.CacheEntry{Data: []byte("x"), ExpiresAt: time.Now().Add(-time.Minute)})
	require.NoError(t, err)

	_, err = cache.Get(ctx, "old")
	require.ErrorIs(t, err, osapi.ErrCacheEntryExpired)

	_, err = cache.Get(ctx, "old")
	require.ErrorIs(t, err, osapi.ErrCacheKeyNotFound)
}

func TestFileCache_DeleteAndClear(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tokens.yml")
	cache := osapi.NewFileCache(path)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", &osapi.CacheEntry{Data: []byte("1")}))
	require.NoError(t, cache.Set(ctx, "b", &osapi.CacheEntry{Data: []byte("2")}))

	require.NoError(t, cache.Delete(ctx, "a"))
	require.NoError(t, cache.Delete(ctx, "missing"))
	assert.False(t, cache.Has(ctx, "a"))
	assert.True(t, cache.Has(ctx, "b"))

	require.NoError(t, cache.Clear(ctx))
	assert.NoFileExists(t, path)
	assert.False(t, cache.Has(ctx, "b"))
	require.NoError(t, cache.Clear(ctx))
}

func TestFileCache_CorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tokens.yml")
	require.NoError(t, os.WriteFile(path, []byte("::: not yaml ["), 0o600))

	_, err := osapi.NewFileCache(path).Get(context.Background(), "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing cache file")
}
