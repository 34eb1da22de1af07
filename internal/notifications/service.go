package notifications

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storefront-sync/internal/cache"
	"storefront-sync/internal/coalescer"
	"storefront-sync/internal/config"
	"storefront-sync/internal/interfaces"
	"storefront-sync/internal/metrics"
	"storefront-sync/internal/models"
)

const (
	latestResource = "notifications:latest"
	unreadResource = "notifications:unread"
	newestResource = "notifications:newest"
)

// Service is the notification feed: merged latest lists, unread counts and
// best-effort read marking, all cached per user
type Service struct {
	source  interfaces.NotificationSource
	cache   *cache.KeyedCache
	flights *coalescer.Coalescer
	keys    *cache.KeyBuilder
	cfg     *config.NotificationsConfig
	logger  *zap.Logger
}

// NewService creates the notification feed service
func NewService(source interfaces.NotificationSource, keyed *cache.KeyedCache, flights *coalescer.Coalescer, cfg *config.NotificationsConfig, logger *zap.Logger) *Service {
	return &Service{
		source:  source,
		cache:   keyed,
		flights: flights,
		keys:    cache.NewKeyBuilder(),
		cfg:     cfg,
		logger:  logger,
	}
}

// GetLatest returns up to limit notifications visible to userID, newest
// first. An empty userID is the anonymous caller.
func (s *Service) GetLatest(ctx context.Context, limit int, userID string) ([]models.Notification, error) {
	if limit <= 0 {
		limit = s.cfg.PageLimit
	}

	key := s.keys.BuildForUser(latestResource, userID, strconv.Itoa(limit))
	return s.list(ctx, key, models.NewTTL(s.cfg.LatestTTL, s.cfg.LatestTTL), limit, userID)
}

// GetNewest returns the single newest notification visible to userID,
// cached for PollTTL only
func (s *Service) GetNewest(ctx context.Context, userID string) ([]models.Notification, error) {
	key := s.keys.BuildForUser(newestResource, userID)
	return s.list(ctx, key, models.NewTTL(s.cfg.PollTTL, s.cfg.PollTTL), 1, userID)
}

// list returns a slice owned by the caller. Coalesced callers share the
// producer's result, which they must not mutate in place.
func (s *Service) list(ctx context.Context, key string, ttl models.TTL, limit int, userID string) ([]models.Notification, error) {
	items, err := cached(ctx, s, key, ttl, func(ctx context.Context) ([]models.Notification, error) {
		if userID == "" {
			return s.fetchGuestLatest(ctx, limit)
		}
		return s.fetchUserLatest(ctx, limit, userID)
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(items), nil
}

// GetUnreadCount returns the unread count of userID. For the anonymous
// caller every global notification is unread.
func (s *Service) GetUnreadCount(ctx context.Context, userID string) (int, error) {
	key := s.keys.BuildForUser(unreadResource, userID)
	ttl := models.NewTTL(s.cfg.UnreadTTL, s.cfg.UnreadTTL)

	return cached(ctx, s, key, ttl, func(ctx context.Context) (int, error) {
		if userID == "" {
			return s.source.CountGlobal(ctx)
		}
		return s.source.UnreadCount(ctx, userID)
	})
}

// MarkAsRead marks one notification read for userID. It is a no-op for
// the anonymous caller. Failures are logged and counted, never returned;
// the caller keeps its optimistic local state.
func (s *Service) MarkAsRead(ctx context.Context, id, userID string) {
	if userID == "" {
		return
	}

	if err := s.source.MarkRead(ctx, id, userID); err != nil {
		s.logger.Warn("Failed to mark notification read",
			zap.String("notification_id", id),
			zap.String("user_id", userID),
			zap.Error(err))
		metrics.RecordMarkReadFailure("mark_read")
		return
	}

	s.Invalidate(userID)
}

// MarkAllAsRead marks everything visible to userID read, with the same
// best-effort semantics as MarkAsRead
func (s *Service) MarkAllAsRead(ctx context.Context, userID string) {
	if userID == "" {
		return
	}

	if err := s.source.MarkAllRead(ctx, userID); err != nil {
		s.logger.Warn("Failed to mark all notifications read",
			zap.String("user_id", userID),
			zap.Error(err))
		metrics.RecordMarkReadFailure("mark_all_read")
		return
	}

	s.Invalidate(userID)
}

// Invalidate drops the cached latest lists and unread count of userID
func (s *Service) Invalidate(userID string) {
	s.cache.DeletePrefix(s.keys.BuildForUser(latestResource, userID) + ":")
	s.cache.Delete(s.keys.BuildForUser(newestResource, userID))
	s.cache.Delete(s.keys.BuildForUser(unreadResource, userID))
}

// cached serves key from the cache, otherwise runs one coalesced fetch
// that stores its result
func cached[T any](ctx context.Context, s *Service, key string, ttl models.TTL, fetch func(ctx context.Context) (T, error)) (T, error) {
	if hit, ok := cache.Lookup[T](s.cache, key); ok {
		return hit.Value, nil
	}

	return coalescer.Do(ctx, s.flights, key, func(ctx context.Context) (T, error) {
		value, err := fetch(ctx)
		if err != nil {
			return value, err
		}
		if _, err := cache.Put(s.cache, key, value, ttl); err != nil {
			s.logger.Error("Failed to cache notification data", zap.String("key", key), zap.Error(err))
		}
		return value, nil
	})
}

func (s *Service) fetchGuestLatest(ctx context.Context, limit int) ([]models.Notification, error) {
	global, err := s.source.ListGlobal(ctx, limit)
	if err != nil {
		return nil, err
	}

	out := make([]models.Notification, 0, len(global))
	for _, n := range global {
		if !n.IsGlobal() {
			continue
		}
		n.IsRead = false
		out = append(out, n)
	}
	return sortAndTruncate(out, limit), nil
}

func (s *Service) fetchUserLatest(ctx context.Context, limit int, userID string) ([]models.Notification, error) {
	var own, global []models.Notification

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		own, err = s.source.ListOwn(gctx, userID, limit)
		return err
	})
	g.Go(func() error {
		var err error
		global, err = s.source.ListGlobal(gctx, limit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	globalIDs := make([]string, 0, len(global))
	for _, n := range global {
		globalIDs = append(globalIDs, n.ID)
	}
	receipts, err := s.source.ReadReceipts(ctx, userID, globalIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve read state: %w", err)
	}

	seen := make(map[string]bool, len(own)+len(global))
	merged := make([]models.Notification, 0, len(own)+len(global))
	for _, n := range own {
		if n.UserID != userID || seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		merged = append(merged, n)
	}
	for _, n := range global {
		if !n.IsGlobal() || seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		// the row flag of a broadcast is not per user
		n.IsRead = receipts[n.ID]
		merged = append(merged, n)
	}

	return sortAndTruncate(merged, limit), nil
}

// sortAndTruncate orders newest first and caps the list after merging
func sortAndTruncate(list []models.Notification, limit int) []models.Notification {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	if len(list) > limit {
		list = list[:limit]
	}
	return list
}
