package l1

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront-sync/internal/config"
	"storefront-sync/internal/models"
)

func newTestBigCache(t *testing.T) *BigCache {
	t.Helper()

	cfg := &config.CacheConfig{
		Enabled:      true,
		SizeMB:       8,
		LifeWindow:   10 * time.Minute,
		MaxEntrySize: 1024,
	}
	cache, err := NewBigCache(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestBigCache_SetAndGet(t *testing.T) {
	cache := newTestBigCache(t)

	now := time.UnixMilli(1_700_000_000_000)
	entry := models.NewCacheEntry([]byte(`{"name":"shoes"}`), now, models.NewTTL(time.Minute, 5*time.Minute))
	cache.Set("categories:all", entry)

	got, found := cache.Get("categories:all")

	require.True(t, found)
	assert.Equal(t, entry.Data, got.Data)
	assert.Equal(t, entry.FetchedAt, got.FetchedAt)
	assert.Equal(t, entry.StaleAt, got.StaleAt)
	assert.Equal(t, entry.ExpiresAt, got.ExpiresAt)
}

func TestBigCache_GetReturnsExpiredEntries(t *testing.T) {
	cache := newTestBigCache(t)

	// Expired long ago; the store does not judge freshness
	entry := models.NewCacheEntry([]byte(`1`), time.UnixMilli(0), models.NewTTL(time.Second, time.Second))
	cache.Set("k", entry)

	got, found := cache.Get("k")

	require.True(t, found)
	assert.Equal(t, models.FreshnessExpired, got.FreshnessAt(time.Now()))
}

func TestBigCache_GetMissing(t *testing.T) {
	cache := newTestBigCache(t)

	got, found := cache.Get("missing")

	assert.False(t, found)
	assert.Nil(t, got)
}

func TestBigCache_CorruptedEntryIsDropped(t *testing.T) {
	cache := newTestBigCache(t)

	require.NoError(t, cache.cache.Set("bad", []byte("not-json")))

	got, found := cache.Get("bad")
	assert.False(t, found)
	assert.Nil(t, got)

	_, err := cache.cache.Get("bad")
	assert.Error(t, err, "corrupted entry should be removed")
}

func TestBigCache_DeleteAndReset(t *testing.T) {
	cache := newTestBigCache(t)
	ttl := models.NewTTL(time.Minute, time.Minute)

	cache.Set("a", models.NewCacheEntry([]byte(`1`), time.Now(), ttl))
	cache.Set("b", models.NewCacheEntry([]byte(`2`), time.Now(), ttl))

	cache.Delete("a")
	_, found := cache.Get("a")
	assert.False(t, found)

	cache.Reset()
	_, found = cache.Get("b")
	assert.False(t, found)
}

func TestBigCache_GetStats(t *testing.T) {
	cache := newTestBigCache(t)

	cache.Set("a", models.NewCacheEntry([]byte(`1`), time.Now(), models.NewTTL(time.Minute, time.Minute)))

	capacity, entries := cache.GetStats()
	assert.Greater(t, capacity, int64(0))
	assert.Equal(t, 1, entries)
}
