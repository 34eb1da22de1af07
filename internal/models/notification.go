package models

import (
	"encoding/json"
	"time"
)

// NotificationType classifies a notification
type NotificationType string

const (
	NotificationTypeProduct  NotificationType = "product"
	NotificationTypeFeedPost NotificationType = "feed_post"
	NotificationTypeSystem   NotificationType = "system"
	NotificationTypeOrder    NotificationType = "order"
	NotificationTypePromo    NotificationType = "flash_sale"
)

// Notification is the normalized notification row.
// An empty UserID marks a global (broadcast) notification.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id,omitempty"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Body      *string          `json:"body,omitempty"`
	LinkURL   *string          `json:"link_url,omitempty"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

// IsGlobal reports whether the notification is a broadcast
func (n Notification) IsGlobal() bool {
	return n.UserID == ""
}

// VisibleTo reports whether userID may see the notification
func (n Notification) VisibleTo(userID string) bool {
	return n.IsGlobal() || (userID != "" && n.UserID == userID)
}

// Topic identifies a realtime insert stream
type Topic struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Event  string `json:"event"`
}

// InsertEventType is the only event type the feed consumes
const InsertEventType = "INSERT"

// ChangeEvent is a row change delivered by the push transport
type ChangeEvent struct {
	Schema string          `json:"schema"`
	Table  string          `json:"table"`
	Type   string          `json:"type"`
	Record json.RawMessage `json:"record"`
}
