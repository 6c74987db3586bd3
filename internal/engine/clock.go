package engine

import "sync/atomic"

// Clock hands out action sequence numbers.
//
// Every action appended to a plan is stamped with a strictly increasing
// value from the run's clock, so sequence order is append order. Each run
// owns a fresh clock; clocks are never shared between runs.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next increments the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out, or 0.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
