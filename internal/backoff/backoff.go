// Package backoff implements the reconnect schedule for the realtime channel:
// exponential growth from a base delay, capped, with random jitter, an
// optional attempt limit, and an attempt reset once a connection has been
// stable for long enough.
package backoff

import (
	"math/rand/v2"
	"time"
)

// Policy configures a Backoff.
type Policy struct {
	BaseDelay   time.Duration // First retry delay
	MaxDelay    time.Duration // Cap applied after jitter
	Jitter      float64       // Extra random fraction of the delay, 0..1
	MaxAttempts int           // 0 = retry forever
	ResetAfter  time.Duration // Stable connection time that resets the attempt count (0 = reset on every connect)
}

// DefaultPolicy returns the schedule used by the web client: 1s doubling to 30s.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Jitter:      0.25,
		MaxAttempts: 0,
		ResetAfter:  60 * time.Second,
	}
}

// Backoff is the reconnect state machine. It is not safe for concurrent use;
// the session run loop owns it.
type Backoff struct {
	policy      Policy
	attempt     int
	connectedAt time.Time

	now   func() time.Time
	float func() float64
}

// New creates a Backoff for the given policy.
func New(p Policy) *Backoff {
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultPolicy().BaseDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	return &Backoff{
		policy: p,
		now:    time.Now,
		float:  rand.Float64,
	}
}

// Attempt returns the number of delays handed out since the last reset.
func (b *Backoff) Attempt() int {
	return b.attempt
}

// Next returns the delay before the next connection attempt.
// ok is false once MaxAttempts has been reached.
func (b *Backoff) Next() (delay time.Duration, ok bool) {
	if !b.connectedAt.IsZero() {
		if b.now().Sub(b.connectedAt) >= b.policy.ResetAfter {
			b.attempt = 0
		}
		b.connectedAt = time.Time{}
	}

	if b.policy.MaxAttempts > 0 && b.attempt >= b.policy.MaxAttempts {
		return 0, false
	}

	delay = b.policy.BaseDelay
	for i := 0; i < b.attempt && delay < b.policy.MaxDelay; i++ {
		delay *= 2
	}
	if b.policy.Jitter > 0 {
		delay += time.Duration(b.float() * b.policy.Jitter * float64(delay))
	}
	if delay > b.policy.MaxDelay {
		delay = b.policy.MaxDelay
	}

	b.attempt++
	return delay, true
}

// MarkConnected records a successful connection. The attempt count is reset
// by the next call to Next if the connection lasted at least ResetAfter.
func (b *Backoff) MarkConnected() {
	b.connectedAt = b.now()
}

// Reset clears all state, e.g. after a manual disconnect.
func (b *Backoff) Reset() {
	b.attempt = 0
	b.connectedAt = time.Time{}
}
