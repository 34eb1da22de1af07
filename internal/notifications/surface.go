package notifications

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"storefront-sync/internal/config"
	"storefront-sync/internal/interfaces"
	"storefront-sync/internal/metrics"
	"storefront-sync/internal/models"
	"storefront-sync/internal/scheduler"
)

// Delivery transports
const (
	TransportPush = "push"
	TransportPoll = "poll"
)

// SurfaceDeps are the collaborators of a toast surface
type SurfaceDeps struct {
	Service *Service
	Push    interfaces.PushChannel // nil: poll
	Topic   models.Topic
	Clock   clock.Clock
	Config  *config.NotificationsConfig
	Logger  *zap.Logger
}

// View is what a toast surface renders
type View struct {
	Items    []models.Notification `json:"items"`
	Overflow int                   `json:"overflow"`
}

// Surface is the live toast list of one mounted consumer. New
// notifications arrive by push or by polling; both go through offer.
type Surface struct {
	deps   SurfaceDeps
	userID string

	watermark Watermark

	mu           sync.Mutex
	items        []models.Notification // newest first
	timers       map[string]*clock.Timer
	listeners    map[int]func(View)
	nextListener int
	closed       bool

	transport    string
	subscription interfaces.Subscription
	poll         *scheduler.PeriodicTask
	unmounted    func()
}

// MountSurface seeds the watermark from the latest notifications without
// displaying them, then attaches push or, without it, a poll task. When
// mounting fails everything acquired so far is released.
func MountSurface(ctx context.Context, deps SurfaceDeps, userID string) (*Surface, error) {
	if deps.Service == nil {
		return nil, errors.New("surface requires a notification service")
	}
	if deps.Config == nil {
		return nil, errors.New("surface requires notification config")
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	s := &Surface{
		deps:      deps,
		userID:    userID,
		timers:    make(map[string]*clock.Timer),
		listeners: make(map[int]func(View)),
	}
	mounted := false
	defer func() {
		if !mounted {
			_ = s.Close()
		}
	}()

	s.seed(ctx)

	if deps.Push != nil {
		subscription, subErr := deps.Push.Subscribe(ctx, deps.Topic, s.handlePush)
		if subErr == nil {
			s.subscription = subscription
			s.transport = TransportPush
		} else {
			deps.Logger.Warn("Push subscription failed, falling back to polling", zap.Error(subErr))
		}
	}

	if s.subscription == nil {
		s.transport = TransportPoll
		s.poll = scheduler.New(deps.Config.PollInterval, s.pollTick, scheduler.WithClock(deps.Clock))
		s.poll.Start()
	}

	s.unmounted = metrics.SurfaceMounted(s.transport)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mounted = true

	deps.Logger.Debug("Mounted notification surface",
		zap.String("user_id", userID),
		zap.String("transport", s.transport))
	return s, nil
}

// Transport reports how the surface receives notifications
func (s *Surface) Transport() string {
	return s.transport
}

// LastSeen returns the watermark and whether it has been armed
func (s *Surface) LastSeen() (time.Time, bool) {
	return s.watermark.Value()
}

// Items returns the visible toasts and how many more are queued
func (s *Surface) Items() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Subscribe registers fn for view changes and returns the function that removes it
func (s *Surface) Subscribe(fn func(View)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Poll fetches the single newest notification and offers it. It reports
// whether a toast was added.
func (s *Surface) Poll(ctx context.Context) bool {
	latest, err := s.deps.Service.GetNewest(ctx, s.userID)
	metrics.RecordPollTick(err)
	if err != nil {
		s.deps.Logger.Warn("Notification poll failed", zap.String("user_id", s.userID), zap.Error(err))
		return false
	}
	if len(latest) == 0 {
		return false
	}

	// A failed seed leaves the watermark unarmed; the first poll arms it
	// so history is not replayed as toasts.
	if _, armed := s.watermark.Value(); !armed {
		s.watermark.Arm(latest[0].CreatedAt)
		return false
	}

	return s.offer(latest[0], TransportPoll)
}

// Dismiss removes a toast. Dismissal is display only.
func (s *Surface) Dismiss(id string) bool {
	s.mu.Lock()
	removed := s.removeLocked(id)
	s.mu.Unlock()

	if removed {
		s.notify()
	}
	return removed
}

// MarkAsRead flags a toast read locally, then tells the backend
func (s *Surface) MarkAsRead(ctx context.Context, id string) {
	if s.userID == "" {
		return
	}

	s.mu.Lock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].IsRead = true
		}
	}
	s.mu.Unlock()
	s.notify()

	s.deps.Service.MarkAsRead(ctx, id, s.userID)
}

// MarkAllAsRead flags every toast read locally, then tells the backend
func (s *Surface) MarkAllAsRead(ctx context.Context) {
	if s.userID == "" {
		return
	}

	s.mu.Lock()
	for i := range s.items {
		s.items[i].IsRead = true
	}
	s.mu.Unlock()
	s.notify()

	s.deps.Service.MarkAllAsRead(ctx, s.userID)
}

// Close releases the push subscription, the poll task and every dismissal
// timer. It is safe to call more than once.
func (s *Surface) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.listeners = make(map[int]func(View))
	subscription, poll, unmounted := s.subscription, s.poll, s.unmounted
	s.mu.Unlock()

	// outside the lock: the poll task may be waiting for it
	if poll != nil {
		poll.Stop()
	}
	if unmounted != nil {
		unmounted()
	}

	var err error
	if subscription != nil {
		err = subscription.Close()
	}

	s.deps.Logger.Debug("Unmounted notification surface", zap.String("user_id", s.userID))
	return err
}

func (s *Surface) seed(ctx context.Context) {
	latest, err := s.deps.Service.GetLatest(ctx, s.deps.Config.SeedLimit, s.userID)
	if err != nil {
		s.deps.Logger.Warn("Failed to seed notification watermark", zap.String("user_id", s.userID), zap.Error(err))
		return
	}

	var newest models.Notification
	for _, n := range latest {
		if n.CreatedAt.After(newest.CreatedAt) {
			newest = n
		}
	}
	// an empty feed arms at the zero time so the first notification shows
	s.watermark.Arm(newest.CreatedAt)
}

func (s *Surface) pollTick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.deps.Config.RequestTimeout)
	defer cancel()
	s.Poll(ctx)
}

func (s *Surface) handlePush(event models.ChangeEvent) {
	if event.Type != models.InsertEventType {
		metrics.RecordNotificationRejection(TransportPush, "event_type")
		return
	}

	n, err := NormalizeNotification(event.Record)
	if err != nil {
		s.deps.Logger.Warn("Dropping malformed pushed notification", zap.Error(err))
		metrics.RecordNotificationRejection(TransportPush, "malformed")
		return
	}
	s.offer(n, TransportPush)
}

// offer splices n into the toast list when it is visible to the user, not
// already shown and strictly newer than the watermark
func (s *Surface) offer(n models.Notification, transport string) bool {
	s.mu.Lock()

	reason := ""
	switch {
	case s.closed:
		reason = "closed"
	case !n.VisibleTo(s.userID):
		reason = "not_visible"
	case s.indexLocked(n.ID) >= 0:
		reason = "duplicate"
	case !s.watermark.Advance(n.CreatedAt):
		reason = "not_newer"
	}
	if reason != "" {
		s.mu.Unlock()
		metrics.RecordNotificationRejection(transport, reason)
		return false
	}

	if n.IsGlobal() {
		// no receipt can exist yet for a broadcast that was just created
		n.IsRead = false
	}
	s.items = append([]models.Notification{n}, s.items...)

	id := n.ID
	s.timers[id] = s.deps.Clock.AfterFunc(s.deps.Config.DismissAfter, func() {
		s.Dismiss(id)
	})
	s.mu.Unlock()

	metrics.RecordNotificationDelivery(transport)
	s.notify()
	return true
}

func (s *Surface) indexLocked(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Surface) removeLocked(id string) bool {
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}

	i := s.indexLocked(id)
	if i < 0 {
		return false
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return true
}

func (s *Surface) viewLocked() View {
	visible := len(s.items)
	if visible > s.deps.Config.MaxVisible {
		visible = s.deps.Config.MaxVisible
	}

	items := make([]models.Notification, visible)
	copy(items, s.items[:visible])
	return View{Items: items, Overflow: len(s.items) - visible}
}

func (s *Surface) notify() {
	s.mu.Lock()
	view := s.viewLocked()
	listeners := make([]func(View), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(view)
	}
}
