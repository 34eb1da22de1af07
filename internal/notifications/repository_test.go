package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"storefront-sync/internal/config"
	"storefront-sync/internal/interfaces/mock"
	"storefront-sync/internal/models"
)

func newTestRepository(t *testing.T) (*Repository, *mock.MockQueryClient) {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := mock.NewMockQueryClient(ctrl)
	return NewRepository(client, &config.DatastoreConfig{
		NotificationsTable: "notifications",
		ReadReceiptsTable:  "notification_reads",
	}), client
}

func TestRepository_ListOwn(t *testing.T) {
	repo, client := newTestRepository(t)

	client.EXPECT().Select(gomock.Any(), models.Query{
		Table:   "notifications",
		Columns: notificationColumns,
		Filters: []models.Filter{models.Eq("user_id", "u1")},
		Order:   &models.Order{Column: "created_at", Descending: true},
		Limit:   4,
	}).Return([]json.RawMessage{
		json.RawMessage(`{"id":"n1","user_id":"u1","type":"order","title":"Shipped","created_at":"2024-03-01T12:00:00Z"}`),
	}, nil)

	got, err := repo.ListOwn(context.Background(), "u1", 4)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "u1", got[0].UserID)
}

func TestRepository_ListGlobal(t *testing.T) {
	repo, client := newTestRepository(t)

	client.EXPECT().Select(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, q models.Query) ([]json.RawMessage, error) {
			assert.Equal(t, []models.Filter{models.IsNull("user_id")}, q.Filters)
			return []json.RawMessage{json.RawMessage(`{"id":"g1"}`)}, nil
		})

	_, err := repo.ListGlobal(context.Background(), 4)
	assert.ErrorIs(t, err, models.ErrMalformedResponse)
}

func TestRepository_ReadReceipts(t *testing.T) {
	repo, client := newTestRepository(t)

	got, err := repo.ReadReceipts(context.Background(), "u1", nil)
	require.NoError(t, err)
	assert.Empty(t, got, "no ids, no round trip")

	client.EXPECT().Select(gomock.Any(), models.Query{
		Table:   "notification_reads",
		Columns: []string{"notification_id"},
		Filters: []models.Filter{models.Eq("user_id", "u1"), models.In("notification_id", "g1", "g2")},
	}).Return([]json.RawMessage{
		json.RawMessage(`{"notification_id":"g1"}`),
		json.RawMessage(`{"notificationId":"g2"}`),
	}, nil)

	got, err = repo.ReadReceipts(context.Background(), "u1", []string{"g1", "g2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"g1": true, "g2": true}, got)
}

func TestRepository_Counts(t *testing.T) {
	repo, client := newTestRepository(t)
	ctx := context.Background()

	client.EXPECT().Count(gomock.Any(), models.Query{
		Table:   "notifications",
		Filters: []models.Filter{models.IsNull("user_id")},
	}).Return(7, nil)
	client.EXPECT().RPC(gomock.Any(), "get_unread_notification_count", map[string]interface{}{"user_id": "u1"}).
		Return(json.RawMessage(`3`), nil)

	global, err := repo.CountGlobal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, global)

	unread, err := repo.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, unread)
}

func TestRepository_MarkRead(t *testing.T) {
	repo, client := newTestRepository(t)
	ctx := context.Background()
	boom := errors.New("rpc failed")

	client.EXPECT().RPC(gomock.Any(), "mark_notification_read", map[string]interface{}{
		"notification_id": "n1",
		"user_id":         "u1",
	}).Return(nil, nil)
	client.EXPECT().RPC(gomock.Any(), "mark_all_notifications_read", map[string]interface{}{"user_id": "u1"}).
		Return(nil, boom)

	assert.NoError(t, repo.MarkRead(ctx, "n1", "u1"))
	assert.ErrorIs(t, repo.MarkAllRead(ctx, "u1"), boom)
}
