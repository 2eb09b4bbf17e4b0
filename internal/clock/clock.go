// Package clock abstracts wall-clock time and tickers so billing dates and the
// overdue sweep can be driven deterministically in tests.
package clock

import (
	"sync"
	"time"
)

// Clock tells the current time.
type Clock interface {
	Now() time.Time
}

// Ticker delivers ticks on C until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

// Real is the system clock, reported in UTC.
type Real struct{}

// Now returns the current UTC time.
func (Real) Now() time.Time { return time.Now().UTC() }

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewRealTicker wraps time.NewTicker.
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Fake is a manually advanced clock.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake returns a Fake clock set to t.
func NewFake(t time.Time) *Fake {
	return &Fake{now: t}
}

// Now returns the fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set moves the clock to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// ManualTicker is a Ticker that fires only when Tick is called.
type ManualTicker struct {
	ch   chan time.Time
	done chan struct{}
	once sync.Once
}

// NewManualTicker returns an unfired ManualTicker.
func NewManualTicker() *ManualTicker {
	return &ManualTicker{ch: make(chan time.Time), done: make(chan struct{})}
}

// C returns the tick channel.
func (m *ManualTicker) C() <-chan time.Time { return m.ch }

// Tick delivers one tick and blocks until it is received. It returns false
// if the ticker is stopped before the tick is taken.
func (m *ManualTicker) Tick(t time.Time) bool {
	select {
	case m.ch <- t:
		return true
	case <-m.done:
		return false
	}
}

// Stop marks the ticker stopped and releases any pending Tick.
func (m *ManualTicker) Stop() {
	m.once.Do(func() { close(m.done) })
}

// Stopped reports whether Stop has been called.
func (m *ManualTicker) Stopped() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

// Factory returns a TickerFactory that always hands out m.
func (m *ManualTicker) Factory() TickerFactory {
	return func(time.Duration) Ticker { return m }
}
