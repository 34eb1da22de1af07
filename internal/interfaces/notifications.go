package interfaces

import (
	"context"

	"storefront-sync/internal/models"
)

//go:generate mockgen -package=mock -source=notifications.go -destination=mock/notifications.go

// NotificationSource provides notification rows and read-state operations
type NotificationSource interface {
	// ListOwn returns up to limit notifications owned by userID, newest first
	ListOwn(ctx context.Context, userID string, limit int) ([]models.Notification, error)

	// ListGlobal returns up to limit broadcast notifications, newest first
	ListGlobal(ctx context.Context, limit int) ([]models.Notification, error)

	// ReadReceipts returns which of the given global notification ids userID has read
	ReadReceipts(ctx context.Context, userID string, ids []string) (map[string]bool, error)

	// CountGlobal returns the number of broadcast notifications
	CountGlobal(ctx context.Context) (int, error)

	// UnreadCount returns the aggregate unread count for userID
	UnreadCount(ctx context.Context, userID string) (int, error)

	// MarkRead marks one notification read for userID (owned row or read receipt)
	MarkRead(ctx context.Context, id, userID string) error

	// MarkAllRead marks every visible notification read for userID
	MarkAllRead(ctx context.Context, userID string) error
}
