package testhelpers

import (
	"github.com/medcircle/medresident/internal/simulation"
	"sync"
	"testing"
	"time"
)

// ManualClock is a [simulation.Clock] whose tickers only fire when a test tells them to.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	created chan *ManualTicker
}

func NewManualClock() *ManualClock {
	return &ManualClock{
		mu:      sync.Mutex{},
		now:     time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
		created: make(chan *ManualTicker, 64), //nolint:mnd // plenty for a test
	}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves Now forward without firing any ticker.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *ManualClock) NewTicker(_ time.Duration) simulation.Ticker {
	t := &ManualTicker{
		c:       make(chan time.Time),
		stopped: make(chan struct{}),
		once:    sync.Once{},
		clock:   c,
	}
	c.created <- t
	return t
}

// NextTicker returns the next ticker created on the clock in creation order.
func (c *ManualClock) NextTicker(t *testing.T) *ManualTicker {
	t.Helper()
	select {
	case ticker := <-c.created:
		return ticker
	case <-time.After(time.Second):
		t.Fatal("no ticker created")
		return nil
	}
}

// NoTicker fails the test when a ticker has been created that was not consumed with NextTicker.
func (c *ManualClock) NoTicker(t *testing.T) {
	t.Helper()
	select {
	case <-c.created:
		t.Fatal("unexpected ticker created")
	default:
	}
}

// ManualTicker is a [simulation.Ticker] driven by Tick.
type ManualTicker struct {
	c       chan time.Time
	stopped chan struct{}
	once    sync.Once
	clock   *ManualClock
}

func (t *ManualTicker) C() <-chan time.Time {
	return t.c
}

func (t *ManualTicker) Stop() {
	t.once.Do(func() { close(t.stopped) })
}

// Tick advances the clock by one second and blocks until the ticker's consumer receives the tick. It returns false
// when the ticker was stopped instead.
func (t *ManualTicker) Tick() bool {
	t.clock.Advance(time.Second)
	select {
	case t.c <- t.clock.Now():
		return true
	case <-t.stopped:
		return false
	}
}

// Ticks calls Tick n times and reports whether every tick was delivered.
func (t *ManualTicker) Ticks(n int) bool {
	for range n {
		if !t.Tick() {
			return false
		}
	}
	return true
}

// WaitStopped blocks until Stop has been called. The countdown stops its ticker after its final callback returned.
func (t *ManualTicker) WaitStopped(tb testing.TB) {
	tb.Helper()
	select {
	case <-t.stopped:
	case <-time.After(time.Second):
		tb.Fatal("ticker not stopped")
	}
}
