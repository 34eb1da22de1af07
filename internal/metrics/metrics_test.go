package metrics

import (
	"errors"
	"testing"
)

func TestSyncMetrics(t *testing.T) {
	// Metrics are package-level variables, automatically registered.
	// This test verifies the helpers don't panic.

	t.Run("RecordCacheHit", func(t *testing.T) {
		RecordCacheHit("categories", "fresh")
		RecordCacheHit("categories", "stale")
	})

	t.Run("RecordCacheMiss", func(t *testing.T) {
		RecordCacheMiss("notifications")
	})

	t.Run("RecordCacheSet", func(t *testing.T) {
		RecordCacheSet("notifications")
	})

	t.Run("RecordCacheError", func(t *testing.T) {
		RecordCacheError("l1", "decode")
	})

	t.Run("UpdateCacheUsage", func(t *testing.T) {
		UpdateCacheUsage(10, 2048)
		UpdateL1CacheCapacity(1 << 20)
	})

	t.Run("RecordCoalescedCall", func(t *testing.T) {
		RecordCoalescedCall("categories", true)
		RecordCoalescedCall("categories", false)
	})

	t.Run("TimeFetch", func(t *testing.T) {
		timer := TimeFetch("categories")
		timer()
	})

	t.Run("RecordRevalidation", func(t *testing.T) {
		RecordRevalidation("categories", "stale", nil)
		RecordRevalidation("categories", "visibility", errors.New("boom"))
	})

	t.Run("Notifications", func(t *testing.T) {
		RecordNotificationDelivery("push")
		RecordNotificationRejection("poll", "not_newer")
		RecordMarkReadFailure("mark_read")
		RecordPollTick(nil)
		release := SurfaceMounted("poll")
		release()
	})
}
