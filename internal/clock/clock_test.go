package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFixed(start)
	assert.Equal(t, start.UnixMilli(), c.NowMillis())

	c.Advance(30 * time.Second)
	assert.Equal(t, start.Add(30*time.Second), c.Now())
}

func TestRealMovesForward(t *testing.T) {
	var r Real
	a := r.NowMillis()
	time.Sleep(time.Millisecond)
	b := r.NowMillis()
	assert.GreaterOrEqual(t, b, a)
}
