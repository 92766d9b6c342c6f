// Package session runs chat request/response cycles: it opens the
// transport, frames and decodes the stream, filters events by session and
// feeds them through the scheduler into the transcript store.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/agentconsole/pkg/chat/event"
	"github.com/papercomputeco/agentconsole/pkg/chat/reducer"
	"github.com/papercomputeco/agentconsole/pkg/chat/scheduler"
	"github.com/papercomputeco/agentconsole/pkg/chat/transcript"
	"github.com/papercomputeco/agentconsole/pkg/logger"
	"github.com/papercomputeco/agentconsole/pkg/sse"
)

// Finish describes a cycle that reached a terminal event, the end of the
// stream, or was stopped.
type Finish struct {
	SessionID string
	AgentID   string
	Status    Status

	// Message is the final assistant message. It is zero when a stopped
	// cycle had produced nothing.
	Message transcript.Message

	// Discarded counts events dropped because they belonged to another session.
	Discarded int
}

// Config is the controller configuration.
type Config struct {
	// AgentID is the virtual agent requests are addressed to.
	AgentID string

	// Transport opens response streams. Required.
	Transport Transport

	// Sessions creates a session before the first request and serves
	// Resume. Optional: without it the server assigns the session id.
	Sessions SessionService

	// Store is the transcript store. A new one is created when nil.
	Store *transcript.Store

	// Clock paces scheduler flushes. Defaults to a 16ms interval clock.
	Clock scheduler.FrameClock

	// Reducer folds events into the transcript. Defaults to reducer.New().
	Reducer *reducer.Reducer

	// Timeout bounds a whole cycle. Zero means no limit.
	Timeout time.Duration

	// Tee receives a verbatim copy of every response stream.
	Tee io.Writer

	Logger *slog.Logger

	// OnFinish is called once per cycle that completes, fails in-band or
	// is stopped.
	OnFinish func(Finish)

	// OnError is called once per cycle aborted by a transport error or
	// timeout.
	OnError func(error)
}

// Controller drives one chat. At most one cycle is active at a time.
//
// Store subscribers are notified synchronously from controller methods and
// must not call back into the Controller.
type Controller struct {
	mu      sync.Mutex
	agentID string
	state   State
	active  *cycle

	transport Transport
	sessions  SessionService
	store     *transcript.Store
	sched     *scheduler.Scheduler
	reducer   *reducer.Reducer
	timeout   time.Duration
	tee       io.Writer
	logger    *slog.Logger
	onFinish  func(Finish)
	onError   func(error)
}

// cycle is the state of one Send call.
type cycle struct {
	ctx    context.Context
	cancel context.CancelCauseFunc

	agentID string
	epoch   uint64
	handle  transcript.Handle

	// session is the id events must carry, frozen once known.
	session   string
	discarded int
}

// New creates a Controller.
func New(c *Config) (*Controller, error) {
	if c.Transport == nil {
		return nil, ErrNoTransport
	}

	store := c.Store
	if store == nil {
		store = transcript.NewStore()
	}
	red := c.Reducer
	if red == nil {
		red = reducer.New()
	}
	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Controller{
		agentID:   c.AgentID,
		transport: c.Transport,
		sessions:  c.Sessions,
		store:     store,
		sched: scheduler.New(&scheduler.Config{
			Target: store,
			Clock:  c.Clock,
			Logger: log,
		}),
		reducer:  red,
		timeout:  c.Timeout,
		tee:      c.Tee,
		logger:   log,
		onFinish: c.OnFinish,
		onError:  c.OnError,
	}, nil
}

// Store returns the transcript store the controller writes to.
func (c *Controller) Store() *transcript.Store {
	return c.store
}

// State returns the current cycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AgentID returns the agent requests are addressed to.
func (c *Controller) AgentID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agentID
}

// Busy reports whether a cycle is active.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// Send runs one request/response cycle for text and blocks until it ends.
//
// It returns ErrBusy without side effects while another cycle is active.
// A cycle that completes or fails in-band returns nil and reports through
// OnFinish; transport errors and timeouts are reported through OnError and
// returned.
func (c *Controller) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	cy, err := c.begin(ctx)
	if err != nil {
		return err
	}
	defer c.end(cy)

	turn := c.store.BeginTurn(text)
	cy.epoch = turn.Epoch
	cy.handle = turn.Handle
	cy.session = c.store.SessionID()

	if cy.session == "" && c.sessions != nil {
		id, err := c.sessions.CreateSession(cy.ctx, cy.agentID)
		switch {
		case context.Cause(cy.ctx) != nil:
			return c.interrupted(cy, err)
		case err != nil:
			c.logger.Warn("could not create session, continuing without one",
				"agent", cy.agentID, "error", err)
		default:
			c.bind(cy, id)
		}
	}

	return c.stream(cy, text)
}

func (c *Controller) begin(ctx context.Context) (*cycle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return nil, ErrBusy
	}

	cctx, cancel := context.WithCancelCause(ctx)
	cy := &cycle{ctx: cctx, cancel: cancel, agentID: c.agentID}
	if c.timeout > 0 {
		tctx, stop := context.WithTimeoutCause(cctx, c.timeout, ErrTimeout)
		cy.ctx = tctx
		cy.cancel = func(cause error) {
			cancel(cause)
			stop()
		}
	}

	c.active = cy
	c.state = Sending
	return cy, nil
}

func (c *Controller) end(cy *cycle) {
	cy.cancel(nil)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == cy {
		c.active = nil
		c.state = Idle
	}
}

func (c *Controller) setState(cy *cycle, s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == cy {
		c.state = s
	}
}

func (c *Controller) stream(cy *cycle, text string) error {
	req := Request{
		VirtualAgentID: cy.agentID,
		Message:        RequestMessage{Role: transcript.RoleUser, Content: text},
		Stream:         true,
		SessionID:      cy.session,
	}

	c.logger.Info("sending message", "agent", cy.agentID, "session", cy.session)

	body, err := c.transport.Open(cy.ctx, req)
	if err != nil {
		return c.interrupted(cy, err)
	}
	defer body.Close()

	// Unblock a pending read when the cycle is cancelled.
	stop := context.AfterFunc(cy.ctx, func() {
		body.Close()
	})
	defer stop()

	c.setState(cy, Streaming)

	opts := []sse.Option{}
	if c.tee != nil {
		opts = append(opts, sse.WithTee(c.tee))
	}
	framer := sse.NewFramer(body, opts...)

	for {
		if context.Cause(cy.ctx) != nil {
			return c.interrupted(cy, nil)
		}

		frame, err := framer.Next()
		if err != nil {
			return c.interrupted(cy, err)
		}
		if frame == nil {
			break
		}

		ev, err := event.Decode([]byte(frame.Data))
		if err != nil {
			c.logger.Debug("skipping frame", "error", err)
			continue
		}

		if !c.affine(cy, ev) {
			cy.discarded++
			c.logger.Debug("discarding event from another session",
				"kind", ev.Kind(), "event_session", ev.Session(), "session", cy.session)
			continue
		}

		c.logger.Debug("event", "kind", ev.Kind())

		switch e := ev.(type) {
		case event.ResponseCompleted:
			err := c.finish(cy, StatusCompleted, e)
			c.drain(cy, framer)
			return err
		case event.ResponseFailed:
			err := c.finish(cy, StatusFailed, e)
			c.drain(cy, framer)
			return err
		case event.Done:
			err := c.finish(cy, StatusCompleted, nil)
			c.drain(cy, framer)
			return err
		case event.SessionCreated:
			// Binding happened in affine.
		case event.OutputTextDelta, event.Error:
			c.sched.Schedule(c.reducer.Transform(cy.handle, ev))
			c.store.FinishLoading(cy.epoch)
		default:
			c.sched.Schedule(c.reducer.Transform(cy.handle, ev))
		}
	}

	if context.Cause(cy.ctx) != nil {
		return c.interrupted(cy, nil)
	}

	// The stream ended without a terminal event.
	return c.finish(cy, StatusCompleted, nil)
}

// drain copies what is left of a finished stream to the tee. Frames read
// here never reach the reducer.
func (c *Controller) drain(cy *cycle, framer *sse.Framer) {
	if c.tee == nil {
		return
	}
	for context.Cause(cy.ctx) == nil {
		frame, err := framer.Next()
		if err != nil {
			c.logger.Debug("stopped copying stream tail", "error", err)
			return
		}
		if frame == nil {
			return
		}
	}
}

// affine reports whether ev may be applied by cy. The first session id
// seen binds the conversation when none is bound yet.
func (c *Controller) affine(cy *cycle, ev event.Event) bool {
	if c.store.Epoch() != cy.epoch {
		return false
	}

	id := ev.Session()
	if id == "" {
		return true
	}
	if cy.session == "" {
		c.bind(cy, id)
	}
	return id == cy.session
}

func (c *Controller) bind(cy *cycle, id string) {
	if c.store.BindSession(cy.epoch, id) {
		c.logger.Debug("bound session", "session", id)
		cy.session = id
		return
	}
	if c.store.Epoch() == cy.epoch {
		cy.session = c.store.SessionID()
	}
}

// finish handles a terminal event, or the end of the stream when ev is nil.
func (c *Controller) finish(cy *cycle, status Status, ev event.Event) error {
	c.setState(cy, Finalizing)

	c.sched.Flush()
	c.store.Update(func(t transcript.Transcript) transcript.Transcript {
		if ev == nil {
			return c.reducer.Finalize(t, cy.handle)
		}
		return c.reducer.Apply(t, cy.handle, ev)
	})
	c.store.FinishLoading(cy.epoch)

	if c.store.Epoch() != cy.epoch {
		return ErrReset
	}

	c.report(cy, status)
	return nil
}

// interrupted handles a cycle that ended early: cancelled by Stop or Reset,
// timed out, or failed at the transport.
func (c *Controller) interrupted(cy *cycle, err error) error {
	cause := context.Cause(cy.ctx)

	switch {
	case errors.Is(cause, ErrReset):
		c.logger.Debug("cycle superseded by reset", "agent", cy.agentID)
		return ErrReset

	case errors.Is(cause, ErrStopped):
		c.sched.Flush()
		c.store.Update(func(t transcript.Transcript) transcript.Transcript {
			return reducer.PruneEmpty(t, cy.handle)
		})
		c.store.FinishLoading(cy.epoch)
		c.report(cy, StatusStopped)
		return ErrStopped

	case cause != nil:
		err = cause
	}

	return c.fail(cy, err)
}

func (c *Controller) fail(cy *cycle, err error) error {
	c.setState(cy, Failed)

	c.sched.Flush()
	c.store.Update(func(t transcript.Transcript) transcript.Transcript {
		return reducer.PruneEmpty(t, cy.handle)
	})
	c.store.FinishLoading(cy.epoch)

	err = fmt.Errorf("streaming response: %w", err)
	c.logger.Error("response failed", "agent", cy.agentID, "session", cy.session, "error", err)

	if c.onError != nil {
		c.onError(err)
	}
	return err
}

func (c *Controller) report(cy *cycle, status Status) {
	f := Finish{
		SessionID: cy.session,
		AgentID:   cy.agentID,
		Status:    status,
		Discarded: cy.discarded,
	}

	msgs := c.store.Messages()
	if i := msgs.Find(cy.handle); i >= 0 {
		f.Message = msgs[i]
	}
	if f.SessionID == "" {
		f.SessionID = c.store.SessionID()
	}

	if cy.discarded > 0 {
		c.logger.Warn("discarded events from other sessions", "count", cy.discarded, "session", f.SessionID)
	}
	c.logger.Info("response finished", "agent", cy.agentID, "session", f.SessionID, "status", status)

	if c.onFinish != nil {
		c.onFinish(f)
	}
}

// Stop aborts the active cycle. Content received so far is kept, an empty
// placeholder is removed and Send returns ErrStopped. It reports whether a
// cycle was active.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return false
	}
	c.active.cancel(ErrStopped)
	return true
}

// Reset abandons the active cycle, if any, and clears the conversation.
// The abandoned cycle makes no further visible changes.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

// SwitchAgent resets the conversation and addresses later requests to agentID.
func (c *Controller) SwitchAgent(agentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	c.agentID = agentID
}

func (c *Controller) resetLocked() {
	if c.active != nil {
		c.active.cancel(ErrReset)
		c.active = nil
	}
	c.sched.Cancel()
	c.store.Reset()
	c.state = Idle
}

// Resume replaces the conversation with the persisted history of session id.
func (c *Controller) Resume(ctx context.Context, id string) error {
	if c.sessions == nil {
		return ErrNoSessions
	}
	if c.Busy() {
		return ErrBusy
	}

	history, err := c.sessions.GetSession(ctx, id)
	if err != nil {
		return fmt.Errorf("fetching session %s: %w", id, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return ErrBusy
	}

	c.sched.Cancel()
	c.store.Reset()
	c.store.Load(history.Messages, history.ID)
	if history.VirtualAgentID != "" {
		c.agentID = history.VirtualAgentID
	}

	c.logger.Info("resumed session", "session", history.ID, "messages", len(history.Messages))
	return nil
}
