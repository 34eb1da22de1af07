package models

import (
	"fmt"
	"time"
)

// Freshness is the derived state of a cache entry at a point in time
type Freshness string

const (
	FreshnessFresh   Freshness = "fresh"
	FreshnessStale   Freshness = "stale"
	FreshnessExpired Freshness = "expired"
)

// TTL represents cache time-to-live configuration
type TTL struct {
	Fresh time.Duration // How long the data is considered fresh (soft TTL)
	Stale time.Duration // How long stale data can still be served after Fresh
}

// NewTTL builds a TTL from soft and hard thresholds
func NewTTL(soft, hard time.Duration) TTL {
	if hard < soft {
		hard = soft
	}
	return TTL{Fresh: soft, Stale: hard - soft}
}

// Soft returns the age after which an entry is stale
func (t TTL) Soft() time.Duration {
	return t.Fresh
}

// Hard returns the age after which an entry is no longer served
func (t TTL) Hard() time.Duration {
	return t.Fresh + t.Stale
}

// Validate checks the TTL can be used for caching
func (t TTL) Validate() error {
	if t.Fresh <= 0 {
		return fmt.Errorf("fresh TTL must be positive, got %s", t.Fresh)
	}
	if t.Stale < 0 {
		return fmt.Errorf("stale TTL must not be negative, got %s", t.Stale)
	}
	return nil
}

// CacheEntry is the envelope stored for every cached value
type CacheEntry struct {
	Data      []byte `json:"data"`
	FetchedAt int64  `json:"fetched_at"` // unix millis
	StaleAt   int64  `json:"stale_at"`   // unix millis
	ExpiresAt int64  `json:"expires_at"` // unix millis
}

// NewCacheEntry stamps data fetched at now with the given TTL
func NewCacheEntry(data []byte, now time.Time, ttl TTL) *CacheEntry {
	fetchedAt := now.UnixMilli()
	return &CacheEntry{
		Data:      data,
		FetchedAt: fetchedAt,
		StaleAt:   fetchedAt + ttl.Soft().Milliseconds(),
		ExpiresAt: fetchedAt + ttl.Hard().Milliseconds(),
	}
}

// FetchedTime returns the capture time of the entry
func (e *CacheEntry) FetchedTime() time.Time {
	return time.UnixMilli(e.FetchedAt)
}

// Age returns how old the entry is at now
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedTime())
}

// FreshnessAt derives the entry state at now
func (e *CacheEntry) FreshnessAt(now time.Time) Freshness {
	ms := now.UnixMilli()
	switch {
	case ms < e.StaleAt:
		return FreshnessFresh
	case ms < e.ExpiresAt:
		return FreshnessStale
	default:
		return FreshnessExpired
	}
}

// CacheStats is a point-in-time view of the keyed cache counters
type CacheStats struct {
	TotalEntries int        `json:"total_entries"`
	TotalHits    int64      `json:"total_hits"`
	TotalMisses  int64      `json:"total_misses"`
	TotalSize    int64      `json:"total_size"`
	HitRate      float64    `json:"hit_rate"`
	OldestEntry  *time.Time `json:"oldest_entry,omitempty"`
	NewestEntry  *time.Time `json:"newest_entry,omitempty"`
}
