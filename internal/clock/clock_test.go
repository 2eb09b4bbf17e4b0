package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFake(t *testing.T) {
	start := time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC)
	c := NewFake(start)

	assert.Equal(t, start, c.Now())

	c.Advance(48 * time.Hour)
	assert.Equal(t, start.Add(48*time.Hour), c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestReal_IsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, Real{}.Now().Location())
}

func TestManualTicker(t *testing.T) {
	tk := NewManualTicker()
	ts := time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC)

	received := make(chan time.Time, 1)
	go func() { received <- <-tk.C() }()

	assert.True(t, tk.Tick(ts))
	assert.Equal(t, ts, <-received)

	tk.Stop()
	tk.Stop()
	assert.True(t, tk.Stopped())
	assert.False(t, tk.Tick(ts), "tick after stop must not block")
}
