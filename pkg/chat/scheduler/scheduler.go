// Package scheduler batches transcript transforms and commits them at most
// once per display frame, so the store is written at render rate rather
// than at network arrival rate.
package scheduler

import (
	"log/slog"
	"sync"

	"github.com/papercomputeco/agentconsole/pkg/chat/transcript"
	"github.com/papercomputeco/agentconsole/pkg/logger"
)

// Updater commits a batch of transforms as one change.
// *transcript.Store implements it.
type Updater interface {
	Update(fns ...transcript.Transform)
}

// Config is the scheduler configuration.
type Config struct {
	// Target receives the composed batch on every flush.
	Target Updater

	// Clock provides frame callbacks. Defaults to an IntervalClock with
	// DefaultFrameInterval. Clocks must never run the callback synchronously
	// from RequestFrame.
	Clock FrameClock

	Logger *slog.Logger
}

// Scheduler queues transforms and flushes them in FIFO order.
//
// A flush holds the scheduler lock while the target commits, so a target
// (or its subscribers) must not call back into the same Scheduler.
type Scheduler struct {
	mu     sync.Mutex
	target Updater
	clock  FrameClock
	logger *slog.Logger

	queue []transcript.Transform

	// cancelFrame is non-nil while a frame callback is outstanding.
	cancelFrame func() bool

	// gen identifies the outstanding frame. Flush and Cancel bump it so a
	// callback that was already running when it got cancelled does nothing.
	gen uint64
}

// New creates a Scheduler.
func New(c *Config) *Scheduler {
	clock := c.Clock
	if clock == nil {
		clock = NewIntervalClock(DefaultFrameInterval)
	}
	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Scheduler{
		target: c.Target,
		clock:  clock,
		logger: log,
	}
}

// Schedule queues fn and requests a frame if none is outstanding.
func (s *Scheduler) Schedule(fn transcript.Transform) {
	if fn == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue = append(s.queue, fn)
	if s.cancelFrame != nil {
		return
	}

	s.gen++
	gen := s.gen
	s.cancelFrame = s.clock.RequestFrame(func() {
		s.onFrame(gen)
	})
}

// Flush commits everything queued now and cancels the outstanding frame.
// It is used before terminal handling so no update is lost or reordered.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopFrameLocked()
	s.flushLocked()
}

// Cancel drops everything queued without applying it and returns how many
// transforms were discarded.
func (s *Scheduler) Cancel() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopFrameLocked()
	n := len(s.queue)
	s.queue = nil
	if n > 0 {
		s.logger.Debug("discarded pending updates", "count", n)
	}
	return n
}

// Pending returns the number of queued transforms.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Scheduler) onFrame(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.cancelFrame == nil {
		return
	}
	s.cancelFrame = nil
	s.flushLocked()
}

func (s *Scheduler) stopFrameLocked() {
	if s.cancelFrame == nil {
		return
	}
	s.cancelFrame()
	s.cancelFrame = nil
	s.gen++
}

func (s *Scheduler) flushLocked() {
	if len(s.queue) == 0 {
		return
	}

	batch := s.queue
	s.queue = nil

	s.logger.Debug("flushing updates", "count", len(batch))
	s.target.Update(batch...)
}
