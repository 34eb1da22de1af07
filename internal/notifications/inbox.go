package notifications

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"storefront-sync/internal/models"
)

// Inbox is the persistent notifications page of one user: a full list,
// the unread count and display-only dismissals. Nothing auto-dismisses.
type Inbox struct {
	service *Service
	userID  string
	limit   int

	mu        sync.Mutex
	items     []models.Notification
	unread    int
	dismissed map[string]bool
}

// NewInbox creates an inbox for userID showing up to limit notifications
func NewInbox(service *Service, userID string, limit int) *Inbox {
	return &Inbox{
		service:   service,
		userID:    userID,
		limit:     limit,
		dismissed: make(map[string]bool),
	}
}

// Load fetches the list and the unread count together. On error the
// previous contents are kept.
func (in *Inbox) Load(ctx context.Context) error {
	var items []models.Notification
	var unread int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = in.service.GetLatest(gctx, in.limit, in.userID)
		return err
	})
	g.Go(func() error {
		var err error
		unread, err = in.service.GetUnreadCount(gctx, in.userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	in.items = items
	in.unread = unread
	return nil
}

// Refresh drops the user's cached feed and loads again
func (in *Inbox) Refresh(ctx context.Context) error {
	in.service.Invalidate(in.userID)
	return in.Load(ctx)
}

// Items returns the notifications that have not been dismissed
func (in *Inbox) Items() []models.Notification {
	in.mu.Lock()
	defer in.mu.Unlock()

	out := make([]models.Notification, 0, len(in.items))
	for _, n := range in.items {
		if !in.dismissed[n.ID] {
			out = append(out, n)
		}
	}
	return out
}

// UnreadCount returns the locally adjusted unread count
func (in *Inbox) UnreadCount() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.unread
}

// Dismiss hides a notification from this inbox only
func (in *Inbox) Dismiss(id string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.dismissed[id] = true
}

// MarkAsRead applies the read flag locally, then tells the backend.
// Anonymous users cannot mark anything read.
func (in *Inbox) MarkAsRead(ctx context.Context, id string) {
	if in.userID == "" {
		return
	}

	in.mu.Lock()
	for i := range in.items {
		if in.items[i].ID == id && !in.items[i].IsRead {
			in.items[i].IsRead = true
			if in.unread > 0 {
				in.unread--
			}
		}
	}
	in.mu.Unlock()

	in.service.MarkAsRead(ctx, id, in.userID)
}

// MarkAllAsRead flags everything read locally, then tells the backend
func (in *Inbox) MarkAllAsRead(ctx context.Context) {
	if in.userID == "" {
		return
	}

	in.mu.Lock()
	for i := range in.items {
		in.items[i].IsRead = true
	}
	in.unread = 0
	in.mu.Unlock()

	in.service.MarkAllAsRead(ctx, in.userID)
}
