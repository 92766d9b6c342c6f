package scheduler

import (
	"slices"
	"sync"
	"time"
)

// DefaultFrameInterval is roughly one display refresh at 60Hz.
const DefaultFrameInterval = 16 * time.Millisecond

// FrameClock schedules a callback for the next display frame.
// The returned cancel func reports whether it stopped the callback before it ran.
type FrameClock interface {
	RequestFrame(fn func()) (cancel func() bool)
}

// IntervalClock fires frame callbacks after a fixed interval.
type IntervalClock struct {
	Interval time.Duration
}

// NewIntervalClock returns a clock firing after interval, or after
// DefaultFrameInterval when interval is not positive.
func NewIntervalClock(interval time.Duration) *IntervalClock {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &IntervalClock{Interval: interval}
}

// RequestFrame runs fn on its own goroutine after the interval.
func (c *IntervalClock) RequestFrame(fn func()) func() bool {
	t := time.AfterFunc(c.Interval, fn)
	return t.Stop
}

// ManualClock holds frame callbacks until Tick is called.
// It is meant for tests and for display loops that drive their own frames.
type ManualClock struct {
	mu      sync.Mutex
	pending map[int]func()
	next    int
}

// NewManualClock creates a ManualClock.
func NewManualClock() *ManualClock {
	return &ManualClock{pending: make(map[int]func())}
}

// RequestFrame queues fn for the next Tick.
func (c *ManualClock) RequestFrame(fn func()) func() bool {
	c.mu.Lock()
	id := c.next
	c.next++
	c.pending[id] = fn
	c.mu.Unlock()

	return func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.pending[id]; !ok {
			return false
		}
		delete(c.pending, id)
		return true
	}
}

// Pending returns the number of queued frame callbacks.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Tick runs every queued callback, in request order, and reports how many ran.
func (c *ManualClock) Tick() int {
	c.mu.Lock()
	ids := make([]int, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	fns := make([]func(), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, c.pending[id])
		delete(c.pending, id)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns)
}
