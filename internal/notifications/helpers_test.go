package notifications

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	"storefront-sync/internal/cache"
	"storefront-sync/internal/coalescer"
	"storefront-sync/internal/config"
	"storefront-sync/internal/interfaces/mock"
	"storefront-sync/internal/models"
)

type memStore struct {
	mu      sync.Mutex
	entries map[string]models.CacheEntry
}

func (m *memStore) Get(key string) (*models.CacheEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	return &e, true
}

func (m *memStore) Set(key string, entry *models.CacheEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = *entry
}

func (m *memStore) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

func (m *memStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]models.CacheEntry)
}

func testNotificationsConfig() *config.NotificationsConfig {
	return &config.NotificationsConfig{
		LatestTTL:      30 * time.Second,
		UnreadTTL:      20 * time.Second,
		SeedLimit:      5,
		PageLimit:      50,
		PollInterval:   15 * time.Second,
		PollTTL:        5 * time.Second,
		MaxVisible:     6,
		DismissAfter:   8 * time.Second,
		RequestTimeout: time.Second,
	}
}

type serviceFixture struct {
	service *Service
	source  *mock.MockNotificationSource
	cache   *cache.KeyedCache
	clock   *clock.Mock
	cfg     *config.NotificationsConfig
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	source := mock.NewMockNotificationSource(ctrl)
	clk := clock.NewMock()
	logger := zaptest.NewLogger(t)
	keyed := cache.New(&memStore{entries: make(map[string]models.CacheEntry)}, clk, logger)
	cfg := testNotificationsConfig()

	return &serviceFixture{
		service: NewService(source, keyed, coalescer.New(), cfg, logger),
		source:  source,
		cache:   keyed,
		clock:   clk,
		cfg:     cfg,
	}
}

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func notification(id, userID string, at time.Time, read bool) models.Notification {
	return models.Notification{
		ID:        id,
		UserID:    userID,
		Type:      models.NotificationTypeSystem,
		Title:     "title " + id,
		IsRead:    read,
		CreatedAt: at,
	}
}

func ids(list []models.Notification) []string {
	out := make([]string, len(list))
	for i, n := range list {
		out[i] = n.ID
	}
	return out
}
