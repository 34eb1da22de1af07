package notifications

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-sync/internal/models"
)

func TestNormalizeNotification(t *testing.T) {
	body := "Now 20% off"
	link := "/products/p1"

	tests := []struct {
		name    string
		raw     string
		want    models.Notification
		wantErr bool
	}{
		{
			name: "snake case row",
			raw:  `{"id":"n1","user_id":"u1","type":"product","title":"Sale","body":"Now 20% off","link_url":"/products/p1","is_read":true,"created_at":"2024-03-01T12:00:00.123456+00:00"}`,
			want: models.Notification{
				ID: "n1", UserID: "u1", Type: models.NotificationTypeProduct, Title: "Sale",
				Body: &body, LinkURL: &link, IsRead: true,
				CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 123456000, time.UTC),
			},
		},
		{
			name: "camel case row",
			raw:  `{"id":"n2","userId":"u1","type":"feed_post","title":"New post","linkUrl":"/feed/1","isRead":false,"createdAt":"2024-03-01T12:00:00Z"}`,
			want: models.Notification{
				ID: "n2", UserID: "u1", Type: models.NotificationTypeFeedPost, Title: "New post",
				LinkURL: strPtr("/feed/1"), CreatedAt: base,
			},
		},
		{
			name: "global row with nulls",
			raw:  `{"id":"n3","user_id":null,"type":"system","title":"Maintenance","body":null,"link_url":null,"is_read":null,"created_at":"2024-03-01 12:00:00+00"}`,
			want: models.Notification{ID: "n3", Type: models.NotificationTypeSystem, Title: "Maintenance", CreatedAt: base},
		},
		{name: "missing id", raw: `{"type":"system","title":"x","created_at":"2024-03-01T12:00:00Z"}`, wantErr: true},
		{name: "missing title", raw: `{"id":"n","type":"system","created_at":"2024-03-01T12:00:00Z"}`, wantErr: true},
		{name: "missing created_at", raw: `{"id":"n","type":"system","title":"x"}`, wantErr: true},
		{name: "bad timestamp", raw: `{"id":"n","type":"system","title":"x","created_at":"yesterday"}`, wantErr: true},
		{name: "numeric id", raw: `{"id":7,"type":"system","title":"x","created_at":"2024-03-01T12:00:00Z"}`, wantErr: true},
		{name: "string is_read", raw: `{"id":"n","type":"system","title":"x","is_read":"yes","created_at":"2024-03-01T12:00:00Z"}`, wantErr: true},
		{name: "not an object", raw: `"n1"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeNotification(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrMalformedResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeNotifications_OneBadRowRejectsAll(t *testing.T) {
	rows := []json.RawMessage{
		json.RawMessage(`{"id":"n1","type":"system","title":"x","created_at":"2024-03-01T12:00:00Z"}`),
		json.RawMessage(`{"id":"n2"}`),
	}

	got, err := NormalizeNotifications(rows)
	assert.ErrorIs(t, err, models.ErrMalformedResponse)
	assert.Nil(t, got)
}

func TestNormalizeCount(t *testing.T) {
	for raw, want := range map[string]int{`3`: 3, `{"count":4}`: 4, `[{"count":5}]`: 5} {
		got, err := normalizeCount(json.RawMessage(raw))
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := normalizeCount(json.RawMessage(`"many"`))
	assert.ErrorIs(t, err, models.ErrMalformedResponse)
}

func strPtr(s string) *string {
	return &s
}
