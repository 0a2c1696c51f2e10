// Package testutil provides deterministic time and id sources for tests.
package testutil

import (
	"sync"
	"time"
)

// DefaultEpoch is the first instant returned by a Clock created with a zero
// start.
var DefaultEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Clock is a deterministic time source that advances by a fixed step on
// every call to Now.
//
// Unlike time.Now, a Clock produces the same sequence on every run, which
// keeps stored timestamps and sort orders stable in tests.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Clock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	calls int64
}

// NewClock creates a clock starting at start (DefaultEpoch when zero) that
// advances by step (one second when zero).
//
// The first call to Now() returns start.
func NewClock(start time.Time, step time.Duration) *Clock {
	if start.IsZero() {
		start = DefaultEpoch
	}
	if step == 0 {
		step = time.Second
	}
	return &Clock{start: start.UTC(), step: step}
}

// Now returns the next instant and advances the clock.
//
// Monotonic: every call returns a strictly later time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.calls) * c.step)
	c.calls++
	return t
}

// Current returns the instant the next call to Now will return.
func (c *Clock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start.Add(time.Duration(c.calls) * c.step)
}

// Reset rewinds the clock to its start.
//
// Used for test reuse. After Reset(), the next call to Now() returns start.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = 0
}
