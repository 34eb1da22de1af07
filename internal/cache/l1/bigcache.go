package l1

import (
	"context"
	"encoding/json"
	"time"

	"github.com/allegro/bigcache/v3"
	"go.uber.org/zap"

	"storefront-sync/internal/config"
	"storefront-sync/internal/interfaces"
	"storefront-sync/internal/metrics"
	"storefront-sync/internal/models"
	"storefront-sync/internal/scheduler"
)

// Ensure BigCache implements interfaces.Cache
var _ interfaces.Cache = (*BigCache)(nil)

// BigCache implements the in-process byte store using BigCache.
// Freshness is decided by the caller; entries stay until overwritten,
// deleted or evicted by the life window.
type BigCache struct {
	cache            *bigcache.BigCache
	logger           *zap.Logger
	metricsScheduler *scheduler.PeriodicTask
}

// NewBigCache creates a new BigCache instance
func NewBigCache(cacheCfg *config.CacheConfig, logger *zap.Logger) (*BigCache, error) {
	cfg := bigcache.DefaultConfig(cacheCfg.LifeWindow)
	cfg.HardMaxCacheSize = cacheCfg.SizeMB // Size in MB
	cfg.MaxEntrySize = cacheCfg.MaxEntrySize
	cfg.Verbose = false

	cache, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	bc := &BigCache{
		cache:  cache,
		logger: logger,
	}

	// Start periodic metrics collection
	bc.startMetricsCollection()

	return bc, nil
}

// Get retrieves an entry regardless of its freshness
func (bc *BigCache) Get(key string) (*models.CacheEntry, bool) {
	data, err := bc.cache.Get(key)
	if err != nil {
		return nil, false
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		bc.logger.Warn("Failed to unmarshal L1 cache entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheError("l1", "decode")
		_ = bc.cache.Delete(key) // Remove corrupted entry
		return nil, false
	}

	return &entry, true
}

// Set stores an entry
func (bc *BigCache) Set(key string, entry *models.CacheEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		bc.logger.Error("Failed to marshal cache entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheError("l1", "encode")
		return
	}

	if err := bc.cache.Set(key, data); err != nil {
		bc.logger.Error("Failed to set cache entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheError("l1", "upstream")
	}
}

// Delete removes entry from cache
func (bc *BigCache) Delete(key string) {
	_ = bc.cache.Delete(key)
}

// Reset removes every entry
func (bc *BigCache) Reset() {
	if err := bc.cache.Reset(); err != nil {
		bc.logger.Error("Failed to reset L1 cache", zap.Error(err))
	}
}

// Close closes the cache
func (bc *BigCache) Close() error {
	bc.stopMetricsCollection()

	return bc.cache.Close()
}

// GetStats returns capacity in bytes and number of resident entries
func (bc *BigCache) GetStats() (capacity int64, entries int) {
	return int64(bc.cache.Capacity()), bc.cache.Len()
}

// startMetricsCollection starts periodic metrics collection
func (bc *BigCache) startMetricsCollection() {
	bc.metricsScheduler = scheduler.New(30*time.Second, bc.updateMetrics)
	bc.metricsScheduler.Start()

	// Initial collection
	bc.updateMetrics()

	bc.logger.Debug("Started L1 cache metrics collection")
}

// stopMetricsCollection stops periodic metrics collection
func (bc *BigCache) stopMetricsCollection() {
	if bc.metricsScheduler != nil {
		bc.metricsScheduler.Stop()
		bc.logger.Debug("Stopped L1 cache metrics collection")
	}
}

// updateMetrics updates cache metrics
func (bc *BigCache) updateMetrics() {
	capacity, _ := bc.GetStats()
	metrics.UpdateL1CacheCapacity(capacity)
}
