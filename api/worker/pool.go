// Package worker provides an asynchronous worker pool for persisting
// finished chat turns using the provided storage.Driver and announcing them
// on the provided eventstream.Publisher.
//
// The pool decouples storage operations from the chat handler's streaming
// path so a slow database never delays the end of a response stream.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/agentconsole/pkg/chat/transcript"
	"github.com/papercomputeco/agentconsole/pkg/eventstream"
	"github.com/papercomputeco/agentconsole/pkg/logger"
	"github.com/papercomputeco/agentconsole/pkg/storage"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
	defaultJobTimeout        = 30 * time.Second
)

// Job is one finished turn to persist.
type Job struct {
	AgentID   string
	SessionID string

	// Status is how the response ended ("completed" or "failed").
	Status string

	User      transcript.Message
	Assistant transcript.Message
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for persisting messages.
	Driver storage.Driver

	// Publisher announces persisted turns. Optional.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	Logger *slog.Logger
}

// Pool processes storage jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, fmt.Errorf("worker pool requires a storage driver")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: log,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"session_id", job.SessionID,
			"status", job.Status,
		)
		return true
	default:
		p.logger.Warn("job not queued, queue full, job dropped",
			"session_id", job.SessionID,
			"status", job.Status,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the HTTP server has stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("storage worker stopped", "worker_id", id)
}

// processJob stores the turn and, once stored, publishes it.
func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultJobTimeout)
	defer cancel()

	if err := p.config.Driver.AppendMessages(ctx, job.SessionID, job.User, job.Assistant); err != nil {
		p.logger.Error("async turn storage failed",
			"session_id", job.SessionID,
			"error", err,
		)
		return
	}

	p.logger.Info("turn stored",
		"session_id", job.SessionID,
		"agent_id", job.AgentID,
		"status", job.Status,
	)

	if p.config.Publisher == nil {
		return
	}

	assistant := job.Assistant
	ev := eventstream.NewResponseFinishedEvent(job.AgentID, job.SessionID, job.Status, &assistant)
	if err := p.config.Publisher.PublishResponse(ctx, ev); err != nil {
		p.logger.Warn("failed to publish response event",
			"session_id", job.SessionID,
			"event_id", ev.EventID,
			"error", err,
		)
	}
}
