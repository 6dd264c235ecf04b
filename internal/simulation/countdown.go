package simulation

import (
	"sync"
	"time"
)

// Ticker delivers ticks on C until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock is the time source of a session. Tests substitute a manually driven clock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type systemClock struct{}

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{} //nolint:gochecknoglobals // stateless

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{Ticker: time.NewTicker(d)}
}

type systemTicker struct {
	*time.Ticker
}

func (t systemTicker) C() <-chan time.Time { return t.Ticker.C }

// Token identifies one countdown. A session hands out a new token whenever the active decision point changes so that
// callbacks of a superseded countdown can be told apart.
type Token uint64

// Countdown counts the seconds of one timed decision point.
type Countdown struct {
	token  Token
	cancel chan struct{}
	once   sync.Once
	done   chan struct{}
}

// StartCountdown starts counting down from seconds. onTick receives the remaining seconds after every tick while time
// is left and onTimeout runs once when the remaining time reaches zero. Neither callback runs after Cancel returns
// unless it was already in progress.
func StartCountdown(
	clock Clock,
	token Token,
	seconds int,
	onTick func(token Token, remaining int),
	onTimeout func(token Token),
) *Countdown {
	c := &Countdown{
		token:  token,
		cancel: make(chan struct{}),
		once:   sync.Once{},
		done:   make(chan struct{}),
	}
	ticker := clock.NewTicker(time.Second)
	go c.run(ticker, seconds, onTick, onTimeout)
	return c
}

func (c *Countdown) run(ticker Ticker, remaining int, onTick func(Token, int), onTimeout func(Token)) {
	defer close(c.done)
	defer ticker.Stop()
	for {
		select {
		case <-c.cancel:
			return
		case <-ticker.C():
		}
		// A tick and a cancellation can be ready at the same time. Cancellation wins.
		select {
		case <-c.cancel:
			return
		default:
		}
		remaining--
		if remaining <= 0 {
			onTimeout(c.token)
			return
		}
		onTick(c.token, remaining)
	}
}

// Token returns the token the countdown was started with.
func (c *Countdown) Token() Token {
	return c.token
}

// Cancel stops the countdown. It is safe to call more than once and never blocks.
func (c *Countdown) Cancel() {
	c.once.Do(func() { close(c.cancel) })
}

// Done is closed once the countdown goroutine has exited.
func (c *Countdown) Done() <-chan struct{} {
	return c.done
}
