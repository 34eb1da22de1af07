package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"storefront-sync/internal/models"
)

// Upstream rows have been seen with both snake_case and camelCase
// columns. Aliases are resolved here and nowhere else.
var fieldAliases = map[string][]string{
	"id":         {"id"},
	"user_id":    {"user_id", "userId"},
	"type":       {"type"},
	"title":      {"title"},
	"body":       {"body", "message"},
	"link_url":   {"link_url", "linkUrl"},
	"is_read":    {"is_read", "isRead"},
	"created_at": {"created_at", "createdAt"},
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07",
}

type rawRow map[string]json.RawMessage

// field returns the first non-null alias of name
func (r rawRow) field(name string) (json.RawMessage, bool) {
	for _, alias := range fieldAliases[name] {
		value, ok := r[alias]
		if ok && !bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			return value, true
		}
	}
	return nil, false
}

func (r rawRow) requiredString(name string) (string, error) {
	raw, ok := r.field(name)
	if !ok {
		return "", fmt.Errorf("%w: missing %s", models.ErrMalformedResponse, name)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %s is not a string", models.ErrMalformedResponse, name)
	}
	if s == "" {
		return "", fmt.Errorf("%w: empty %s", models.ErrMalformedResponse, name)
	}
	return s, nil
}

func (r rawRow) optionalString(name string) (*string, error) {
	raw, ok := r.field(name)
	if !ok {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: %s is not a string", models.ErrMalformedResponse, name)
	}
	return &s, nil
}

// NormalizeNotification decodes one upstream notification row into the
// internal schema. Missing identity, title or timestamp rejects the row.
func NormalizeNotification(raw json.RawMessage) (models.Notification, error) {
	var row rawRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return models.Notification{}, fmt.Errorf("%w: %v", models.ErrMalformedResponse, err)
	}

	var n models.Notification
	var err error

	if n.ID, err = row.requiredString("id"); err != nil {
		return models.Notification{}, err
	}
	if n.Title, err = row.requiredString("title"); err != nil {
		return models.Notification{}, err
	}

	notificationType, err := row.requiredString("type")
	if err != nil {
		return models.Notification{}, err
	}
	n.Type = models.NotificationType(notificationType)

	userID, err := row.optionalString("user_id")
	if err != nil {
		return models.Notification{}, err
	}
	if userID != nil {
		n.UserID = *userID
	}

	if n.Body, err = row.optionalString("body"); err != nil {
		return models.Notification{}, err
	}
	if n.LinkURL, err = row.optionalString("link_url"); err != nil {
		return models.Notification{}, err
	}

	if rawRead, ok := row.field("is_read"); ok {
		if err := json.Unmarshal(rawRead, &n.IsRead); err != nil {
			return models.Notification{}, fmt.Errorf("%w: is_read is not a boolean", models.ErrMalformedResponse)
		}
	}

	createdAt, err := row.requiredString("created_at")
	if err != nil {
		return models.Notification{}, err
	}
	if n.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return models.Notification{}, err
	}

	return n, nil
}

// NormalizeNotifications decodes a result set. One bad row rejects the set.
func NormalizeNotifications(rows []json.RawMessage) ([]models.Notification, error) {
	out := make([]models.Notification, 0, len(rows))
	for i, raw := range rows {
		n, err := NormalizeNotification(raw)
		if err != nil {
			return nil, fmt.Errorf("notification row %d: %w", i, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable timestamp %q", models.ErrMalformedResponse, value)
}

// normalizeReceiptID extracts the notification id of a read receipt row
func normalizeReceiptID(raw json.RawMessage) (string, error) {
	var row struct {
		Snake *string `json:"notification_id"`
		Camel *string `json:"notificationId"`
	}
	if err := json.Unmarshal(raw, &row); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrMalformedResponse, err)
	}
	switch {
	case row.Snake != nil && *row.Snake != "":
		return *row.Snake, nil
	case row.Camel != nil && *row.Camel != "":
		return *row.Camel, nil
	}
	return "", fmt.Errorf("%w: read receipt without notification_id", models.ErrMalformedResponse)
}

// normalizeCount decodes an aggregate count. A bare number, a
// {"count": n} object and a one-row set of that object are accepted.
func normalizeCount(raw json.RawMessage) (int, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}

	var obj struct {
		Count *int `json:"count"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Count != nil {
		return *obj.Count, nil
	}

	var rows []struct {
		Count *int `json:"count"`
	}
	if err := json.Unmarshal(raw, &rows); err == nil && len(rows) == 1 && rows[0].Count != nil {
		return *rows[0].Count, nil
	}

	return 0, fmt.Errorf("%w: unexpected count payload %s", models.ErrMalformedResponse, string(raw))
}
