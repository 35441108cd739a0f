// Package timing sequences the pre-roll countdown and the 30-second guess
// window for a room, independent of how audio is rendered. One cycle is
// active per room at a time; starting a new cycle supersedes any pending
// one, and every fire carries the generation it belongs to so consumers can
// drop stale fires from a superseded or finished cycle.
package timing

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	CountdownStart = 3
	TickInterval   = time.Second
	ClipDuration   = 30 * time.Second
)

type Kind string

const (
	KindTick Kind = "tick" // countdown step, playback stays paused
	KindPlay Kind = "play" // countdown done, start the clip
	KindStop Kind = "stop" // clip window elapsed, auto-stop
)

// Fire is one scheduled step of a cycle.
type Fire struct {
	Gen       int
	Kind      Kind
	Countdown int // set for KindTick
}

// Controller runs at most one countdown/auto-stop cycle. Safe for use from
// a single owner goroutine plus the cycle goroutine it spawns.
type Controller struct {
	clock clockwork.Clock

	mu     sync.Mutex
	gen    int
	cancel context.CancelFunc
}

func NewController(clock clockwork.Clock) *Controller {
	return &Controller{clock: clock}
}

// StartCycle supersedes any pending cycle and begins a new one, returning
// its generation. fire is called from the cycle goroutine for each step:
// ticks 3..1 one second apart, then play, then stop after the clip window.
func (c *Controller) StartCycle(parent context.Context, fire func(Fire)) int {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	go c.run(ctx, gen, fire)
	return gen
}

// Cancel stops any pending cycle. Fires already in flight still carry their
// old generation and are the consumer's to drop.
func (c *Controller) Cancel() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
}

func (c *Controller) run(ctx context.Context, gen int, fire func(Fire)) {
	for n := CountdownStart; n >= 1; n-- {
		fire(Fire{Gen: gen, Kind: KindTick, Countdown: n})
		if !c.sleep(ctx, TickInterval) {
			return
		}
	}
	fire(Fire{Gen: gen, Kind: KindPlay})
	if !c.sleep(ctx, ClipDuration) {
		return
	}
	fire(Fire{Gen: gen, Kind: KindStop})
}

func (c *Controller) sleep(ctx context.Context, d time.Duration) bool {
	timer := c.clock.NewTimer(d)
	defer stopAndDrain(timer)
	select {
	case <-timer.Chan():
		// A cancellation that raced the timer still wins.
		return ctx.Err() == nil
	case <-ctx.Done():
		return false
	}
}

// stopAndDrain follows the time.Timer.Stop documentation pattern so a
// cancelled cycle never leaks a pending channel send.
func stopAndDrain(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
