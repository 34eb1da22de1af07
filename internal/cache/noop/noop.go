package noop

import (
	"storefront-sync/internal/interfaces"
	"storefront-sync/internal/models"
)

// Ensure NoOpCache implements interfaces.Cache
var _ interfaces.Cache = (*NoOpCache)(nil)

// NoOpCache is a no-operation cache implementation for a disabled cache
type NoOpCache struct{}

// NewNoOpCache creates a new no-operation cache instance
func NewNoOpCache() interfaces.Cache {
	return &NoOpCache{}
}

// Get always returns cache miss
func (n *NoOpCache) Get(key string) (*models.CacheEntry, bool) {
	return nil, false
}

// Set does nothing
func (n *NoOpCache) Set(key string, entry *models.CacheEntry) {
	// No-op
}

// Delete does nothing
func (n *NoOpCache) Delete(key string) {
	// No-op
}

// Reset does nothing
func (n *NoOpCache) Reset() {
	// No-op
}
