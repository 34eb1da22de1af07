package swr

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"storefront-sync/internal/cache"
	"storefront-sync/internal/coalescer"
	"storefront-sync/internal/metrics"
	"storefront-sync/internal/models"
)

// Revalidation triggers, used as metric labels
const (
	TriggerStale      = "stale"
	TriggerCheck      = "check"
	TriggerVisibility = "visibility"
	TriggerForced     = "forced"
)

// Fetcher loads a fresh value from upstream
type Fetcher[T any] func(ctx context.Context) (T, error)

// Config binds a fetcher to a cache key
type Config[T any] struct {
	Name  string
	Key   string
	TTL   models.TTL
	Fetch Fetcher[T]
}

// Deps are the process-wide services every resource shares
type Deps struct {
	Cache   *cache.KeyedCache
	Flights *coalescer.Coalescer
	Logger  *zap.Logger
}

// State is what a consumer renders
type State[T any] struct {
	Data       T
	HasData    bool
	Loading    bool
	Validating bool
	Err        error
	FetchedAt  time.Time
}

// Resource serves a cached value immediately and refreshes it in the
// background once it turns stale. A blocking load only happens when
// nothing usable is cached.
type Resource[T any] struct {
	cfg  Config[T]
	deps Deps

	mu           sync.Mutex
	state        State[T]
	visible      bool
	revalidating bool
	subscribers  map[int]func(State[T])
	nextSubID    int

	background sync.WaitGroup
}

type fetched[T any] struct {
	value     T
	fetchedAt time.Time
}

// New creates a resource. It starts empty and visible.
func New[T any](cfg Config[T], deps Deps) (*Resource[T], error) {
	if cfg.Key == "" {
		return nil, errors.New("resource key cannot be empty")
	}
	if cfg.Fetch == nil {
		return nil, errors.New("resource fetcher cannot be nil")
	}
	if err := cfg.TTL.Validate(); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Key
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &Resource[T]{
		cfg:         cfg,
		deps:        deps,
		visible:     true,
		subscribers: make(map[int]func(State[T])),
	}, nil
}

// Key returns the cache key the resource is bound to
func (r *Resource[T]) Key() string {
	return r.cfg.Key
}

// State returns a snapshot of the current state
func (r *Resource[T]) State() State[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Load adopts a fresh or stale cached value without blocking, scheduling a
// background revalidation for a stale one. Otherwise it blocks on a
// coalesced fetch. A failed fetch keeps whatever data the resource had.
func (r *Resource[T]) Load(ctx context.Context) (T, error) {
	if hit, ok := cache.Lookup[T](r.deps.Cache, r.cfg.Key); ok {
		r.mu.Lock()
		r.adoptLocked(hit.Value, hit.FetchedAt)
		r.state.Loading = false
		r.mu.Unlock()
		r.notify()

		if hit.Freshness == models.FreshnessStale {
			r.startBackground(ctx, TriggerStale)
		}
		return hit.Value, nil
	}

	r.mu.Lock()
	r.state.Loading = true
	r.mu.Unlock()
	r.notify()

	result, err := r.fetch(ctx)

	r.mu.Lock()
	r.state.Loading = false
	if err != nil {
		r.state.Err = err
	} else {
		r.adoptLocked(result.value, result.fetchedAt)
	}
	data := r.state.Data
	r.mu.Unlock()
	r.notify()

	if err != nil {
		r.deps.Logger.Warn("Resource load failed", zap.String("resource", r.cfg.Name), zap.Error(err))
		return data, err
	}
	return result.value, nil
}

// Check is the render/mount check: it starts a background revalidation
// when the current value is past its soft TTL but not its hard TTL.
func (r *Resource[T]) Check(ctx context.Context) bool {
	if !r.isStale() {
		return false
	}
	return r.startBackground(ctx, TriggerCheck)
}

// SetVisible records the host visibility. Regaining visibility with a
// value older than the soft TTL starts a background revalidation.
func (r *Resource[T]) SetVisible(ctx context.Context, visible bool) bool {
	r.mu.Lock()
	regained := visible && !r.visible
	r.visible = visible
	hasData := r.state.HasData
	age := r.deps.Cache.Clock().Since(r.state.FetchedAt)
	r.mu.Unlock()

	if !regained || !hasData || age <= r.cfg.TTL.Soft() {
		return false
	}
	return r.startBackground(ctx, TriggerVisibility)
}

// Revalidate always fetches, bypassing the soft TTL. The fetch is still
// coalesced with any other call for the same key.
func (r *Resource[T]) Revalidate(ctx context.Context) (T, error) {
	r.mu.Lock()
	r.state.Validating = true
	r.mu.Unlock()
	r.notify()

	result, err := r.fetch(ctx)

	r.mu.Lock()
	r.state.Validating = r.revalidating
	if err != nil {
		r.state.Err = err
	} else {
		r.adoptLocked(result.value, result.fetchedAt)
	}
	data := r.state.Data
	r.mu.Unlock()
	r.notify()

	metrics.RecordRevalidation(r.cfg.Name, TriggerForced, err)
	if err != nil {
		return data, err
	}
	return result.value, nil
}

// Refresh drops the cached entry and performs a blocking load
func (r *Resource[T]) Refresh(ctx context.Context) (T, error) {
	r.deps.Cache.Delete(r.cfg.Key)
	return r.Load(ctx)
}

// Subscribe registers fn for state changes and returns the function that removes it
func (r *Resource[T]) Subscribe(fn func(State[T])) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextSubID
	r.nextSubID++
	r.subscribers[id] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subscribers, id)
	}
}

// Wait blocks until background revalidations have finished
func (r *Resource[T]) Wait() {
	r.background.Wait()
}

func (r *Resource[T]) isStale() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.state.HasData {
		return false
	}
	age := r.deps.Cache.Clock().Since(r.state.FetchedAt)
	return age >= r.cfg.TTL.Soft() && age < r.cfg.TTL.Hard()
}

// startBackground runs at most one revalidation at a time. It never
// touches Loading, and its errors are logged only.
func (r *Resource[T]) startBackground(ctx context.Context, trigger string) bool {
	r.mu.Lock()
	if r.revalidating {
		r.mu.Unlock()
		return false
	}
	r.revalidating = true
	r.state.Validating = true
	r.background.Add(1)
	r.mu.Unlock()
	r.notify()

	detached := context.WithoutCancel(ctx)
	go func() {
		defer r.background.Done()

		result, err := r.fetch(detached)

		r.mu.Lock()
		r.revalidating = false
		r.state.Validating = false
		if err == nil {
			r.adoptLocked(result.value, result.fetchedAt)
		}
		r.mu.Unlock()
		r.notify()

		metrics.RecordRevalidation(r.cfg.Name, trigger, err)
		if err != nil {
			r.deps.Logger.Warn("Background revalidation failed",
				zap.String("resource", r.cfg.Name),
				zap.String("trigger", trigger),
				zap.Error(err))
		}
	}()

	return true
}

func (r *Resource[T]) fetch(ctx context.Context) (fetched[T], error) {
	return coalescer.Do(ctx, r.deps.Flights, r.cfg.Key, func(ctx context.Context) (fetched[T], error) {
		value, err := r.cfg.Fetch(ctx)
		if err != nil {
			return fetched[T]{}, err
		}

		fetchedAt := r.deps.Cache.Clock().Now()
		entry, err := cache.Put(r.deps.Cache, r.cfg.Key, value, r.cfg.TTL)
		if err != nil {
			r.deps.Logger.Error("Failed to cache fetched value", zap.String("resource", r.cfg.Name), zap.Error(err))
		} else {
			fetchedAt = entry.FetchedTime()
		}
		return fetched[T]{value: value, fetchedAt: fetchedAt}, nil
	})
}

func (r *Resource[T]) adoptLocked(value T, fetchedAt time.Time) {
	r.state.Data = value
	r.state.HasData = true
	r.state.FetchedAt = fetchedAt
	r.state.Err = nil
}

func (r *Resource[T]) notify() {
	r.mu.Lock()
	snapshot := r.state
	subscribers := make([]func(State[T]), 0, len(r.subscribers))
	for _, fn := range r.subscribers {
		subscribers = append(subscribers, fn)
	}
	r.mu.Unlock()

	for _, fn := range subscribers {
		fn(snapshot)
	}
}
