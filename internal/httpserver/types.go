package httpserver

import (
	"time"

	"storefront-sync/internal/models"
	"storefront-sync/internal/notifications"
)

// ErrorResponse is returned with every non-2xx status
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// InvalidateRequest drops cache entries. All wins over Prefix and Keys;
// Table drops every cached query against that table.
type InvalidateRequest struct {
	Keys   []string `json:"keys,omitempty"`
	Prefix string   `json:"prefix,omitempty"`
	Table  string   `json:"table,omitempty"`
	All    bool     `json:"all,omitempty"`
}

// InvalidateResponse reports how many entries were dropped
type InvalidateResponse struct {
	Success bool `json:"success"`
	Removed int  `json:"removed"`
}

// ResourceResponse wraps the current value of an SWR resource
type ResourceResponse struct {
	Data       interface{} `json:"data"`
	FetchedAt  *time.Time  `json:"fetched_at,omitempty"`
	Validating bool        `json:"validating"`
}

// NotificationsResponse is the inbox list
type NotificationsResponse struct {
	Items []models.Notification `json:"items"`
}

// UnreadCountResponse is the inbox badge
type UnreadCountResponse struct {
	Count int `json:"count"`
}

// SuccessResponse acknowledges a fire-and-forget operation
type SuccessResponse struct {
	Success bool `json:"success"`
}

// StreamEvent is one server-sent event of the notification stream
type StreamEvent struct {
	Transport string `json:"transport"`
	notifications.View
}
