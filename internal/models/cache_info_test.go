package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheEntry_FreshnessAt(t *testing.T) {
	fetched := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := NewCacheEntry([]byte(`"v"`), fetched, NewTTL(60*time.Second, 300*time.Second))

	tests := []struct {
		name string
		age  time.Duration
		want Freshness
	}{
		{"just fetched", 0, FreshnessFresh},
		{"before soft ttl", 59 * time.Second, FreshnessFresh},
		{"at soft ttl", 60 * time.Second, FreshnessStale},
		{"between ttls", 200 * time.Second, FreshnessStale},
		{"at hard ttl", 300 * time.Second, FreshnessExpired},
		{"past hard ttl", time.Hour, FreshnessExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := fetched.Add(tt.age)
			assert.Equal(t, tt.want, entry.FreshnessAt(now))
			assert.Equal(t, tt.age, entry.Age(now))
		})
	}
}

func TestNewTTL(t *testing.T) {
	ttl := NewTTL(30*time.Second, 120*time.Second)
	assert.Equal(t, 30*time.Second, ttl.Soft())
	assert.Equal(t, 120*time.Second, ttl.Hard())
	assert.NoError(t, ttl.Validate())

	// a hard ttl below the soft one collapses the stale window
	clamped := NewTTL(60*time.Second, 10*time.Second)
	assert.Equal(t, 60*time.Second, clamped.Hard())
	assert.Equal(t, time.Duration(0), clamped.Stale)

	assert.Error(t, TTL{}.Validate())
	assert.Error(t, TTL{Fresh: time.Second, Stale: -time.Second}.Validate())
}

func TestNotification_VisibleTo(t *testing.T) {
	global := Notification{ID: "g1"}
	own := Notification{ID: "o1", UserID: "u1"}

	assert.True(t, global.IsGlobal())
	assert.True(t, global.VisibleTo(""))
	assert.True(t, global.VisibleTo("u1"))

	assert.False(t, own.IsGlobal())
	assert.True(t, own.VisibleTo("u1"))
	assert.False(t, own.VisibleTo("u2"))
	assert.False(t, own.VisibleTo(""), "guests never see user rows")
}
