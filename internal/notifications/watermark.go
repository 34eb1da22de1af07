package notifications

import (
	"sync"
	"time"
)

// Watermark is the creation time of the newest notification seen so far.
// It only ever moves forward.
type Watermark struct {
	mu    sync.Mutex
	at    time.Time
	armed bool
}

// Arm seeds the watermark without regressing it
func (w *Watermark) Arm(at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.armed || at.After(w.at) {
		w.at = at
	}
	w.armed = true
}

// Advance moves the watermark to at when at is strictly newer and reports
// whether it did. An unarmed watermark accepts any time.
func (w *Watermark) Advance(at time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.armed && !at.After(w.at) {
		return false
	}
	w.at = at
	w.armed = true
	return true
}

// Value returns the current watermark and whether it has been armed
func (w *Watermark) Value() (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.at, w.armed
}
