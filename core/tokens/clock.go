// Package tokens tracks bearer token lifetimes on the scheduler tick.
package tokens

import (
	"sync"
	"time"

	"github.com/koscakluka/ema-speechbot/core/sessions"
)

const DefaultSafetyMargin = 5 * time.Second

// Clock counts down to the moment a token should be refreshed.
//
// It does not own a goroutine; time only advances through Tick, which keeps
// it on the same scheduler as the rest of the session pair.
type Clock struct {
	mu       sync.Mutex
	margin   time.Duration
	deadline time.Duration
	elapsed  time.Duration
	running  bool

	elapsedSignal sessions.Signal[struct{}]
}

type ClockOption func(*Clock)

// WithSafetyMargin sets how long before expiry the clock fires.
func WithSafetyMargin(margin time.Duration) ClockOption {
	return func(c *Clock) {
		if margin >= 0 {
			c.margin = margin
		}
	}
}

func NewClock(opts ...ClockOption) *Clock {
	c := &Clock{margin: DefaultSafetyMargin}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start arms the clock for a token that expires in expiresIn. The clock fires
// once expiresIn minus the safety margin has elapsed; a token that is already
// inside the margin fires on the next tick.
func (c *Clock) Start(expiresIn time.Duration) {
	c.Reset(expiresIn - c.margin)
}

// Reset arms the clock to fire after exactly after has elapsed.
func (c *Clock) Reset(after time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.deadline = max(after, 0)
	c.elapsed = 0
	c.running = true
}

func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.running = false
	c.elapsed = 0
}

// Tick advances the clock and fires the elapsed handlers at most once per arm.
func (c *Clock) Tick(elapsed time.Duration) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.elapsed += elapsed
	if c.elapsed < c.deadline {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.elapsed = 0
	c.mu.Unlock()

	c.elapsedSignal.Emit(struct{}{})
}

func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Remaining reports the time left until the clock fires, zero when stopped.
func (c *Clock) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return 0
	}
	return max(c.deadline-c.elapsed, 0)
}

// OnElapsed subscribes to the clock firing.
func (c *Clock) OnElapsed(fn func()) (unsubscribe func()) {
	return c.elapsedSignal.Subscribe(func(struct{}) { fn() })
}
