package notifications

import (
	"context"
	"fmt"

	"storefront-sync/internal/config"
	"storefront-sync/internal/interfaces"
	"storefront-sync/internal/models"
)

// Remote procedures of the managed backend
const (
	unreadCountRPC = "get_unread_notification_count"
	markReadRPC    = "mark_notification_read"
	markAllReadRPC = "mark_all_notifications_read"
)

var notificationColumns = []string{"id", "user_id", "type", "title", "body", "link_url", "is_read", "created_at"}

// Ensure Repository implements interfaces.NotificationSource
var _ interfaces.NotificationSource = (*Repository)(nil)

// Repository reads notifications through the query capability and
// normalizes every row before it leaves this package
type Repository struct {
	client             interfaces.QueryClient
	notificationsTable string
	receiptsTable      string
}

// NewRepository creates a repository over client
func NewRepository(client interfaces.QueryClient, cfg *config.DatastoreConfig) *Repository {
	return &Repository{
		client:             client,
		notificationsTable: cfg.NotificationsTable,
		receiptsTable:      cfg.ReadReceiptsTable,
	}
}

func (r *Repository) latestQuery(limit int, filter models.Filter) models.Query {
	return models.Query{
		Table:   r.notificationsTable,
		Columns: notificationColumns,
		Filters: []models.Filter{filter},
		Order:   &models.Order{Column: "created_at", Descending: true},
		Limit:   limit,
	}
}

// ListOwn returns up to limit notifications owned by userID
func (r *Repository) ListOwn(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	rows, err := r.client.Select(ctx, r.latestQuery(limit, models.Eq("user_id", userID)))
	if err != nil {
		return nil, fmt.Errorf("failed to list own notifications: %w", err)
	}
	return NormalizeNotifications(rows)
}

// ListGlobal returns up to limit broadcast notifications
func (r *Repository) ListGlobal(ctx context.Context, limit int) ([]models.Notification, error) {
	rows, err := r.client.Select(ctx, r.latestQuery(limit, models.IsNull("user_id")))
	if err != nil {
		return nil, fmt.Errorf("failed to list global notifications: %w", err)
	}
	return NormalizeNotifications(rows)
}

// ReadReceipts returns the subset of ids userID has read
func (r *Repository) ReadReceipts(ctx context.Context, userID string, ids []string) (map[string]bool, error) {
	read := make(map[string]bool)
	if len(ids) == 0 {
		return read, nil
	}

	rows, err := r.client.Select(ctx, models.Query{
		Table:   r.receiptsTable,
		Columns: []string{"notification_id"},
		Filters: []models.Filter{
			models.Eq("user_id", userID),
			models.In("notification_id", ids...),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch read receipts: %w", err)
	}

	for i, raw := range rows {
		id, err := normalizeReceiptID(raw)
		if err != nil {
			return nil, fmt.Errorf("read receipt row %d: %w", i, err)
		}
		read[id] = true
	}
	return read, nil
}

// CountGlobal counts broadcast notifications without fetching them
func (r *Repository) CountGlobal(ctx context.Context) (int, error) {
	count, err := r.client.Count(ctx, models.Query{
		Table:   r.notificationsTable,
		Filters: []models.Filter{models.IsNull("user_id")},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count global notifications: %w", err)
	}
	return count, nil
}

// UnreadCount asks the backend for the aggregate unread count of userID
func (r *Repository) UnreadCount(ctx context.Context, userID string) (int, error) {
	raw, err := r.client.RPC(ctx, unreadCountRPC, map[string]interface{}{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch unread count: %w", err)
	}
	return normalizeCount(raw)
}

// MarkRead marks one notification read. The backend flips the row for
// owned notifications and upserts a read receipt for global ones.
func (r *Repository) MarkRead(ctx context.Context, id, userID string) error {
	_, err := r.client.RPC(ctx, markReadRPC, map[string]interface{}{
		"notification_id": id,
		"user_id":         userID,
	})
	if err != nil {
		return fmt.Errorf("failed to mark notification %s read: %w", id, err)
	}
	return nil
}

// MarkAllRead marks every notification visible to userID read
func (r *Repository) MarkAllRead(ctx context.Context, userID string) error {
	_, err := r.client.RPC(ctx, markAllReadRPC, map[string]interface{}{"user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to mark all notifications read: %w", err)
	}
	return nil
}
