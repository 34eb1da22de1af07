package interfaces

import (
	"storefront-sync/internal/models"
)

//go:generate mockgen -package=mock -source=cache.go -destination=mock/cache.go

// Cache interface defines the contract for byte-level cache stores
type Cache interface {
	Get(key string) (*models.CacheEntry, bool) // returns entry and found flag, regardless of freshness
	Set(key string, entry *models.CacheEntry)
	Delete(key string)
	Reset()
}
