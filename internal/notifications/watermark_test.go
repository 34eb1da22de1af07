package notifications

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWatermark(t *testing.T) {
	var w Watermark

	_, armed := w.Value()
	assert.False(t, armed)

	w.Arm(base)
	at, armed := w.Value()
	assert.True(t, armed)
	assert.Equal(t, base, at)

	assert.False(t, w.Advance(base.Add(-time.Second)), "older")
	assert.False(t, w.Advance(base), "equal is not newer")
	assert.True(t, w.Advance(base.Add(5*time.Second)))
	assert.False(t, w.Advance(base.Add(2*time.Second)), "late response must not regress")

	at, _ = w.Value()
	assert.Equal(t, base.Add(5*time.Second), at)

	w.Arm(base)
	at, _ = w.Value()
	assert.Equal(t, base.Add(5*time.Second), at, "re-arming never regresses")
}

func TestWatermark_UnarmedAcceptsAnything(t *testing.T) {
	var w Watermark

	assert.True(t, w.Advance(base))
	at, armed := w.Value()
	assert.True(t, armed)
	assert.Equal(t, base, at)
}
