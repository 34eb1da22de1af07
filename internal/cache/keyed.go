package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"storefront-sync/internal/interfaces"
	"storefront-sync/internal/metrics"
	"storefront-sync/internal/models"
)

type entryMeta struct {
	size      int64
	fetchedAt time.Time
	expiresAt time.Time
}

// KeyedCache is the process-wide freshness-aware cache shared by every
// resource. It owns the hit/miss accounting and the key index; the byte
// store underneath only keeps serialized entries.
type KeyedCache struct {
	store  interfaces.Cache
	clock  clock.Clock
	logger *zap.Logger

	mu     sync.Mutex
	index  map[string]entryMeta
	hits   int64
	misses int64
}

// New creates a keyed cache over the given byte store
func New(store interfaces.Cache, clk clock.Clock, logger *zap.Logger) *KeyedCache {
	if clk == nil {
		clk = clock.New()
	}
	return &KeyedCache{
		store:  store,
		clock:  clk,
		logger: logger,
		index:  make(map[string]entryMeta),
	}
}

// Clock returns the clock used to stamp and age entries
func (c *KeyedCache) Clock() clock.Clock {
	return c.clock
}

// Set stores already serialized data under key, stamped with the current time
func (c *KeyedCache) Set(key string, data []byte, ttl models.TTL) *models.CacheEntry {
	now := c.clock.Now()
	entry := models.NewCacheEntry(data, now, ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Set(key, entry)
	c.index[key] = entryMeta{
		size:      int64(len(key) + len(data)),
		fetchedAt: now,
		expiresAt: now.Add(ttl.Hard()),
	}
	metrics.RecordCacheSet(resourceOf(key))
	c.updateUsageLocked()

	return entry
}

// Delete removes a single key
func (c *KeyedCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Delete(key)
	delete(c.index, key)
	c.updateUsageLocked()
}

// DeletePrefix removes every key starting with prefix and returns how many were dropped
func (c *KeyedCache) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.index {
		if strings.HasPrefix(key, prefix) {
			c.store.Delete(key)
			delete(c.index, key)
			removed++
		}
	}
	c.updateUsageLocked()

	return removed
}

// Clear drops every entry. Hit and miss counters are kept.
func (c *KeyedCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Reset()
	c.index = make(map[string]entryMeta)
	c.updateUsageLocked()
}

// Stats returns a snapshot of the cache counters. Index records past
// their hard TTL are pruned first.
func (c *KeyedCache) Stats() models.CacheStats {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, meta := range c.index {
		if !now.Before(meta.expiresAt) {
			c.store.Delete(key)
			delete(c.index, key)
		}
	}
	c.updateUsageLocked()

	stats := models.CacheStats{
		TotalEntries: len(c.index),
		TotalHits:    c.hits,
		TotalMisses:  c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}

	for _, meta := range c.index {
		stats.TotalSize += meta.size
		fetchedAt := meta.fetchedAt
		if stats.OldestEntry == nil || fetchedAt.Before(*stats.OldestEntry) {
			stats.OldestEntry = &fetchedAt
		}
		if stats.NewestEntry == nil || fetchedAt.After(*stats.NewestEntry) {
			newest := fetchedAt
			stats.NewestEntry = &newest
		}
	}

	return stats
}

// lookup returns the entry stored under key when it has not expired yet.
// Counting is left to the caller so a decode failure can still be a miss.
func (c *KeyedCache) lookup(key string) (*models.CacheEntry, models.Freshness, bool) {
	entry, found := c.store.Get(key)
	if !found {
		c.mu.Lock()
		if _, tracked := c.index[key]; tracked {
			// evicted by the byte store
			delete(c.index, key)
			c.updateUsageLocked()
		}
		c.mu.Unlock()
		return nil, "", false
	}

	freshness := entry.FreshnessAt(c.clock.Now())
	if freshness == models.FreshnessExpired {
		return nil, freshness, false
	}
	return entry, freshness, true
}

func (c *KeyedCache) record(key string, hit bool, freshness models.Freshness) {
	c.mu.Lock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()

	if hit {
		metrics.RecordCacheHit(resourceOf(key), string(freshness))
	} else {
		metrics.RecordCacheMiss(resourceOf(key))
	}
}

func (c *KeyedCache) updateUsageLocked() {
	var size int64
	for _, meta := range c.index {
		size += meta.size
	}
	metrics.UpdateCacheUsage(len(c.index), size)
}

// Hit is a decoded cache value together with its age information
type Hit[T any] struct {
	Value     T
	FetchedAt time.Time
	Freshness models.Freshness
}

// Lookup returns the decoded value under key when it is fresh or stale.
// Expired, missing and undecodable entries are misses; undecodable ones are dropped.
func Lookup[T any](c *KeyedCache, key string) (Hit[T], bool) {
	var hit Hit[T]

	entry, freshness, ok := c.lookup(key)
	if !ok {
		c.record(key, false, "")
		return hit, false
	}

	if err := json.Unmarshal(entry.Data, &hit.Value); err != nil {
		c.logger.Warn("Dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheError("keyed", "decode")
		c.Delete(key)
		c.record(key, false, "")
		return Hit[T]{}, false
	}

	hit.FetchedAt = entry.FetchedTime()
	hit.Freshness = freshness
	c.record(key, true, freshness)
	return hit, true
}

// Put serializes value and stores it under key
func Put[T any](c *KeyedCache, key string, value T, ttl models.TTL) (*models.CacheEntry, error) {
	data, err := json.Marshal(value)
	if err != nil {
		metrics.RecordCacheError("keyed", "encode")
		return nil, fmt.Errorf("failed to encode cache value for %s: %w", key, err)
	}
	return c.Set(key, data, ttl), nil
}

// GetOrSet returns the cached value while it is fresh or stale. Otherwise it
// awaits producer, stores the result and returns it. Producer errors are
// returned unchanged and never cached.
func GetOrSet[T any](ctx context.Context, c *KeyedCache, key string, ttl models.TTL, producer func(ctx context.Context) (T, error)) (T, error) {
	if hit, ok := Lookup[T](c, key); ok {
		return hit.Value, nil
	}

	value, err := producer(ctx)
	if err != nil {
		return value, err
	}

	if _, err := Put(c, key, value, ttl); err != nil {
		c.logger.Error("Failed to store produced value", zap.String("key", key), zap.Error(err))
	}
	return value, nil
}

// resourceOf extracts the metrics label from a key
func resourceOf(key string) string {
	resource, _, _ := strings.Cut(key, ":")
	return resource
}
