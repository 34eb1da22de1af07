package coalescer

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"storefront-sync/internal/metrics"
)

// Coalescer keeps at most one producer call in flight per key. Callers that
// arrive while a call is running share its value or its error. It holds no
// data: the slot is released as soon as the call settles.
type Coalescer struct {
	group    singleflight.Group
	inflight atomic.Int64
}

// New creates a new Coalescer
func New() *Coalescer {
	return &Coalescer{}
}

// InFlight returns the number of producer calls currently running
func (c *Coalescer) InFlight() int {
	return int(c.inflight.Load())
}

// Do runs fn under key unless a call for key is already running, in which
// case it waits for that call instead. fn runs detached from the caller's
// cancellation so an abandoned caller does not abort a fetch other callers
// or the cache still want; the caller itself stops waiting when ctx is done.
func Do[T any](ctx context.Context, c *Coalescer, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	detached := context.WithoutCancel(ctx)

	ch := c.group.DoChan(key, func() (interface{}, error) {
		c.inflight.Add(1)
		metrics.InFlightRequests.Inc()
		defer func() {
			c.inflight.Add(-1)
			metrics.InFlightRequests.Dec()
		}()

		done := metrics.TimeFetch(resourceOf(key))
		defer done()

		return fn(detached)
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		metrics.RecordCoalescedCall(resourceOf(key), res.Shared)
		if res.Err != nil {
			return zero, res.Err
		}
		value, ok := res.Val.(T)
		if !ok {
			return zero, fmt.Errorf("coalesced call for %s returned %T", key, res.Val)
		}
		return value, nil
	}
}

func resourceOf(key string) string {
	resource, _, _ := strings.Cut(key, ":")
	return resource
}
