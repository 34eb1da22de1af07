package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// PeriodicTask manages a background task that runs at regular intervals.
// The first run happens one interval after Start.
type PeriodicTask struct {
	interval time.Duration
	task     func()
	clock    clock.Clock
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// Option configures a PeriodicTask
type Option func(*PeriodicTask)

// WithClock overrides the time source (tests use clock.NewMock())
func WithClock(clk clock.Clock) Option {
	return func(pt *PeriodicTask) {
		pt.clock = clk
	}
}

// New creates a new PeriodicTask instance
func New(interval time.Duration, task func(), opts ...Option) *PeriodicTask {
	pt := &PeriodicTask{
		interval: interval,
		task:     task,
		clock:    clock.New(),
	}
	for _, opt := range opts {
		opt(pt)
	}
	return pt
}

// Start begins executing the task at the specified interval
func (pt *PeriodicTask) Start() {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if pt.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	pt.cancel = cancel
	pt.running = true

	// The ticker is registered before Start returns so virtual clocks see it
	ticker := pt.clock.Ticker(pt.interval)

	pt.wg.Add(1)
	go func() {
		defer pt.wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				pt.task()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates the periodic task execution and waits for an in-progress run.
// It must not be called from inside the task.
func (pt *PeriodicTask) Stop() {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if !pt.running {
		return
	}

	pt.cancel()
	pt.wg.Wait()
	pt.running = false
}

// IsRunning returns true if the task is currently running
func (pt *PeriodicTask) IsRunning() bool {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return pt.running
}
