package peer

import (
	"math/rand/v2"
	"sync"
	"time"
)

// minIdleHold and maxIdleHold bound the IdleHoldTimer back-off (core
// spec §5, §8).
const (
	minIdleHold     = 4 * time.Second
	maxIdleHold     = 120 * time.Second
	initialIdleHold = 1 * time.Second

	courtesyHoldTimer  = 5 * time.Second
	stoppingHoldTimer  = 20 * time.Second
	jitterFraction     = 4 // reduce by up to 1/jitterFraction
)

// jitter reduces d by a uniform random amount in [0, d/jitterFraction),
// matching the core spec's "[0, 25%)" rule. A zero duration (timer
// disabled) and negative durations pass through unchanged.
func jitter(d time.Duration, enabled bool) time.Duration {
	if !enabled || d <= 0 {
		return d
	}
	span := int64(d) / jitterFraction
	if span <= 0 {
		return d
	}
	reduction := rand.Int64N(span)
	return d - time.Duration(reduction)
}

// nextIdleHold computes the back-off value for the IdleHoldTimer the
// next time a Connection falls back to Idle from an Open* state. The
// very first arming (prev == 0) uses initialIdleHold rather than the
// doubling formula, per the core spec's "unless this is the initial
// entry from Initial where it is >= 1s" invariant.
func nextIdleHold(prev time.Duration) time.Duration {
	if prev <= 0 {
		return initialIdleHold
	}
	next := prev * 2
	if next < minIdleHold {
		next = minIdleHold
	}
	if next > maxIdleHold {
		next = maxIdleHold
	}
	return next
}

// timerSlot is a one-shot timer that can be re-armed and disarmed. It
// backs every timer role the core spec describes (IdleHold,
// ConnectRetry, OpenHold, negotiated Hold, KeepAlive, NOTIFICATION
// courtesy) — the core spec allows an implementer to keep them
// distinct rather than literally sharing one slot, so each Connection
// holds two of these (hold, keepalive) per §3.
type timerSlot struct {
	mu    sync.Mutex
	timer *time.Timer
}

// arm starts (or restarts) the timer to fire after d, invoking fire in
// its own goroutine. A non-positive d disarms the timer instead,
// matching "setting interval to zero unsets the timer".
func (ts *timerSlot) arm(d time.Duration, fire func()) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.timer != nil {
		ts.timer.Stop()
		ts.timer = nil
	}
	if d <= 0 {
		return
	}
	ts.timer = time.AfterFunc(d, fire)
}

// disarm stops the timer without arming a replacement.
func (ts *timerSlot) disarm() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.timer != nil {
		ts.timer.Stop()
		ts.timer = nil
	}
}

// armed reports whether the timer currently has a pending fire.
func (ts *timerSlot) armed() bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.timer != nil
}
