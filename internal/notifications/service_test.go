package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"storefront-sync/internal/models"
)

func TestGetLatest_MergeCorrectness(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	own := []models.Notification{
		notification("o1", "u1", base.Add(6*time.Minute), false),
		notification("o2", "u1", base.Add(4*time.Minute), true),
		notification("o3", "u1", base.Add(1*time.Minute), false),
	}
	global := []models.Notification{
		// row flags are deliberately wrong; receipts decide
		notification("g1", "", base.Add(5*time.Minute), false),
		notification("g2", "", base.Add(3*time.Minute), true),
		notification("g3", "", base.Add(2*time.Minute), false),
	}

	f.source.EXPECT().ListOwn(gomock.Any(), "u1", 4).Return(own, nil)
	f.source.EXPECT().ListGlobal(gomock.Any(), 4).Return(global, nil)
	f.source.EXPECT().ReadReceipts(gomock.Any(), "u1", []string{"g1", "g2", "g3"}).
		Return(map[string]bool{"g1": true}, nil)

	got, err := f.service.GetLatest(ctx, 4, "u1")
	require.NoError(t, err)

	assert.Equal(t, []string{"o1", "g1", "o2", "g2"}, ids(got))
	assert.True(t, got[1].IsRead, "g1 has a receipt")
	assert.False(t, got[3].IsRead, "g2 row flag is ignored")
	assert.True(t, got[2].IsRead, "own rows keep their flag")

	// cached for the same user and limit
	again, err := f.service.GetLatest(ctx, 4, "u1")
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestGetLatest_DedupesAndIgnoresForeignRows(t *testing.T) {
	f := newServiceFixture(t)

	f.source.EXPECT().ListOwn(gomock.Any(), "u1", 5).Return([]models.Notification{
		notification("o1", "u1", base, false),
		notification("x1", "u2", base.Add(time.Minute), false),
	}, nil)
	f.source.EXPECT().ListGlobal(gomock.Any(), 5).Return([]models.Notification{
		notification("o1", "", base, false),
		notification("g1", "", base.Add(-time.Minute), false),
	}, nil)
	f.source.EXPECT().ReadReceipts(gomock.Any(), "u1", gomock.Any()).Return(map[string]bool{}, nil)

	got, err := f.service.GetLatest(context.Background(), 5, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"o1", "g1"}, ids(got))
}

func TestGetLatest_GuestSafety(t *testing.T) {
	f := newServiceFixture(t)

	f.source.EXPECT().ListGlobal(gomock.Any(), 3).Return([]models.Notification{
		notification("g1", "", base.Add(time.Minute), true),
		notification("leak", "u9", base.Add(2*time.Minute), false),
		notification("g2", "", base, false),
	}, nil)

	got, err := f.service.GetLatest(context.Background(), 3, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"g1", "g2"}, ids(got))
	for _, n := range got {
		assert.Empty(t, n.UserID)
		assert.False(t, n.IsRead, "guests see every broadcast as unread")
	}
}

func TestGetLatest_DefaultLimit(t *testing.T) {
	f := newServiceFixture(t)

	f.source.EXPECT().ListGlobal(gomock.Any(), f.cfg.PageLimit).Return(nil, nil)

	got, err := f.service.GetLatest(context.Background(), 0, "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetLatest_ErrorIsNotCached(t *testing.T) {
	f := newServiceFixture(t)
	boom := errors.New("timeout")

	gomock.InOrder(
		f.source.EXPECT().ListGlobal(gomock.Any(), 5).Return(nil, boom),
		f.source.EXPECT().ListGlobal(gomock.Any(), 5).Return([]models.Notification{notification("g1", "", base, false)}, nil),
	)

	_, err := f.service.GetLatest(context.Background(), 5, "")
	assert.ErrorIs(t, err, boom)

	got, err := f.service.GetLatest(context.Background(), 5, "")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestGetLatest_ReceiptFailureFailsTheLoad(t *testing.T) {
	f := newServiceFixture(t)

	f.source.EXPECT().ListOwn(gomock.Any(), "u1", 5).Return(nil, nil)
	f.source.EXPECT().ListGlobal(gomock.Any(), 5).Return([]models.Notification{notification("g1", "", base, false)}, nil)
	f.source.EXPECT().ReadReceipts(gomock.Any(), "u1", []string{"g1"}).Return(nil, errors.New("denied"))

	_, err := f.service.GetLatest(context.Background(), 5, "u1")
	assert.Error(t, err)
}

func TestGetLatest_CacheExpiry(t *testing.T) {
	f := newServiceFixture(t)

	f.source.EXPECT().ListGlobal(gomock.Any(), 1).Return(nil, nil).Times(2)

	_, err := f.service.GetLatest(context.Background(), 1, "")
	require.NoError(t, err)

	f.clock.Add(10 * time.Second)
	_, err = f.service.GetLatest(context.Background(), 1, "")
	require.NoError(t, err)

	f.clock.Add(f.cfg.LatestTTL)
	_, err = f.service.GetLatest(context.Background(), 1, "")
	require.NoError(t, err)
}

func TestGetUnreadCount(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.source.EXPECT().CountGlobal(gomock.Any()).Return(9, nil).Times(1)
	f.source.EXPECT().UnreadCount(gomock.Any(), "u1").Return(2, nil).Times(1)

	guest, err := f.service.GetUnreadCount(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 9, guest)

	user, err := f.service.GetUnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, user)

	// both cached
	_, _ = f.service.GetUnreadCount(ctx, "")
	_, _ = f.service.GetUnreadCount(ctx, "u1")
}

func TestMarkAsRead_GuestIsNoOp(t *testing.T) {
	f := newServiceFixture(t)

	// no expectations: any call on the source fails the test
	f.service.MarkAsRead(context.Background(), "g1", "")
	f.service.MarkAllAsRead(context.Background(), "")
}

func TestMarkAsRead_InvalidatesUserCache(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.source.EXPECT().UnreadCount(gomock.Any(), "u1").Return(2, nil)
	f.source.EXPECT().UnreadCount(gomock.Any(), "u2").Return(5, nil)
	f.source.EXPECT().MarkRead(gomock.Any(), "n1", "u1").Return(nil)
	f.source.EXPECT().UnreadCount(gomock.Any(), "u1").Return(1, nil)

	_, err := f.service.GetUnreadCount(ctx, "u1")
	require.NoError(t, err)
	_, err = f.service.GetUnreadCount(ctx, "u2")
	require.NoError(t, err)

	f.service.MarkAsRead(ctx, "n1", "u1")

	got, err := f.service.GetUnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	// other users keep their cache
	other, err := f.service.GetUnreadCount(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 5, other)
}

func TestMarkAllAsRead_InvalidatesLatestLists(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.source.EXPECT().ListOwn(gomock.Any(), "u1", gomock.Any()).Return(nil, nil).Times(4)
	f.source.EXPECT().ListGlobal(gomock.Any(), gomock.Any()).Return(nil, nil).Times(4)
	f.source.EXPECT().ReadReceipts(gomock.Any(), "u1", gomock.Any()).Return(map[string]bool{}, nil).Times(4)
	f.source.EXPECT().MarkAllRead(gomock.Any(), "u1").Return(nil)

	for _, limit := range []int{1, 5} {
		_, err := f.service.GetLatest(ctx, limit, "u1")
		require.NoError(t, err)
	}

	f.service.MarkAllAsRead(ctx, "u1")

	for _, limit := range []int{1, 5} {
		_, err := f.service.GetLatest(ctx, limit, "u1")
		require.NoError(t, err)
	}
}

func TestMarkAsRead_FailureIsSwallowedAndKeepsCache(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.source.EXPECT().UnreadCount(gomock.Any(), "u1").Return(2, nil).Times(1)
	f.source.EXPECT().MarkRead(gomock.Any(), "n1", "u1").Return(errors.New("rpc failed"))
	f.source.EXPECT().MarkAllRead(gomock.Any(), "u1").Return(errors.New("rpc failed"))

	_, err := f.service.GetUnreadCount(ctx, "u1")
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		f.service.MarkAsRead(ctx, "n1", "u1")
		f.service.MarkAllAsRead(ctx, "u1")
	})

	got, err := f.service.GetUnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestGetLatest_CoalescedCallersGetOwnSlices(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	entered := make(chan struct{}, 4)
	release := make(chan struct{})
	f.source.EXPECT().ListGlobal(gomock.Any(), 10).DoAndReturn(func(ctx context.Context, limit int) ([]models.Notification, error) {
		entered <- struct{}{}
		<-release
		return []models.Notification{
			notification("g1", "", base.Add(time.Minute), false),
			notification("g2", "", base, false),
		}, nil
	}).MinTimes(1)

	const callers = 4
	results := make([][]models.Notification, callers)
	var wg sync.WaitGroup
	wg.Add(callers)
	go func() {
		defer wg.Done()
		var err error
		results[0], err = f.service.GetLatest(ctx, 10, "")
		assert.NoError(t, err)
	}()
	<-entered
	for i := 1; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			var err error
			results[i], err = f.service.GetLatest(ctx, 10, "")
			assert.NoError(t, err)
		}(i)
	}
	// let the late callers join the running fetch
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	results[0][0].IsRead = true
	results[0][1].Title = "changed"
	for i := 1; i < callers; i++ {
		require.Len(t, results[i], 2)
		assert.False(t, results[i][0].IsRead, "caller %d", i)
		assert.Equal(t, "title g2", results[i][1].Title, "caller %d", i)
	}
}

func TestGetNewest_ExpiresBeforeNextPoll(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	gomock.InOrder(
		f.source.EXPECT().ListGlobal(gomock.Any(), 1).Return([]models.Notification{
			notification("g1", "", base, false),
		}, nil),
		f.source.EXPECT().ListGlobal(gomock.Any(), 1).Return([]models.Notification{
			notification("g2", "", base.Add(time.Minute), false),
		}, nil),
	)

	first, err := f.service.GetNewest(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"g1"}, ids(first))

	// within the poll TTL the cached value is served
	f.clock.Add(f.cfg.PollTTL - time.Second)
	cached, err := f.service.GetNewest(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"g1"}, ids(cached))

	// the next poll tick always reaches the backend
	f.clock.Add(f.cfg.PollInterval - f.cfg.PollTTL + time.Second)
	second, err := f.service.GetNewest(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"g2"}, ids(second))
}

func TestGetNewest_DroppedByInvalidate(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.source.EXPECT().ListOwn(gomock.Any(), "u1", 1).Return(nil, nil).Times(2)
	f.source.EXPECT().ListGlobal(gomock.Any(), 1).Return(nil, nil).Times(2)

	_, err := f.service.GetNewest(ctx, "u1")
	require.NoError(t, err)
	f.service.Invalidate("u1")
	_, err = f.service.GetNewest(ctx, "u1")
	require.NoError(t, err)
}
