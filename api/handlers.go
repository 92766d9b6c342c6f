package api

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/agentconsole/api/worker"
	"github.com/papercomputeco/agentconsole/pkg/agent"
	"github.com/papercomputeco/agentconsole/pkg/chat/event"
	"github.com/papercomputeco/agentconsole/pkg/chat/session"
	"github.com/papercomputeco/agentconsole/pkg/chat/transcript"
	"github.com/papercomputeco/agentconsole/pkg/sse"
	"github.com/papercomputeco/agentconsole/pkg/storage"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateSessionRequest is the body of POST /v1/sessions.
type CreateSessionRequest struct {
	VirtualAgentID string `json:"virtualAgentId"`
}

// CreateSessionResponse is the reply to POST /v1/sessions.
type CreateSessionResponse struct {
	ID string `json:"id"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	var req CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.VirtualAgentID) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "virtualAgentId is required"})
	}

	created, err := s.storer.CreateSession(c.Context(), req.VirtualAgentID)
	if err != nil {
		s.logger.Error("failed to create session", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to create session"})
	}

	return c.Status(fiber.StatusCreated).JSON(CreateSessionResponse{ID: created.ID})
}

func (s *Server) handleListSessions(c *fiber.Ctx) error {
	list, err := s.storer.ListSessions(c.Context(), c.Query("agent"))
	if err != nil {
		s.logger.Error("failed to list sessions", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list sessions"})
	}
	return c.JSON(list)
}

func (s *Server) handleGetSession(c *fiber.Ctx) error {
	history, err := s.storer.GetSession(c.Context(), c.Params("id"))
	if err != nil {
		return s.sessionError(c, err)
	}
	if history.Messages == nil {
		history.Messages = transcript.Transcript{}
	}
	return c.JSON(history)
}

func (s *Server) sessionError(c *fiber.Ctx, err error) error {
	var notFound storage.NotFoundError
	if errors.As(err, &notFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "session not found"})
	}
	s.logger.Error("failed to load session", "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to load session"})
}

// handleChat streams the agent's answer to one user message as
// "data: <json>" records terminated by "data: [DONE]".
func (s *Server) handleChat(c *fiber.Ctx) error {
	var req session.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.VirtualAgentID) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "virtualAgentId is required"})
	}
	if strings.TrimSpace(req.Message.Content) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "message content is required"})
	}

	ctx := c.Context()
	turn := agent.Turn{SessionID: req.SessionID, Text: req.Message.Content}
	if turn.SessionID == "" {
		created, err := s.storer.CreateSession(ctx, req.VirtualAgentID)
		if err != nil {
			s.logger.Error("failed to create session", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to create session"})
		}
		turn.SessionID = created.ID
		turn.NewSession = true
	} else if _, err := s.storer.GetSession(ctx, turn.SessionID); err != nil {
		return s.sessionError(c, err)
	}

	s.logger.Info("chat stream started",
		"agent_id", req.VirtualAgentID,
		"session_id", turn.SessionID,
		"new_session", turn.NewSession,
	)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	// io.Pipe gives per-record flushing and backpressure; fasthttp writes
	// each chunk to the socket as the pipe is read.
	pr, pw := io.Pipe()
	go s.streamTurn(req.VirtualAgentID, turn, pw)

	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

// streamTurn runs the agent, writes its events to pw and folds them into
// the assistant message that is persisted once the stream is done.
func (s *Server) streamTurn(agentID string, turn agent.Turn, pw *io.PipeWriter) {
	defer pw.Close()

	now := time.Now().UTC()
	user := transcript.NewTextMessage(uuid.NewString(), transcript.RoleUser, turn.Text, now)
	assistant := transcript.Message{ID: uuid.NewString(), Role: transcript.RoleAssistant, Timestamp: now}
	folded := transcript.Transcript{assistant}
	handle := transcript.Handle(assistant.ID)
	status := string(session.StatusCompleted)

	emit := func(ev event.Event) error {
		folded = s.reducer.Apply(folded, handle, ev)
		if _, ok := ev.(event.ResponseFailed); ok {
			status = string(session.StatusFailed)
		}

		payload, err := event.Encode(ev)
		if err != nil {
			return err
		}
		return sse.WriteData(pw, payload)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.agent.Run(ctx, turn, emit); err != nil {
		s.logger.Warn("chat stream aborted",
			"session_id", turn.SessionID,
			"error", err,
		)
		return
	}

	if err := emit(event.Done{}); err != nil {
		s.logger.Warn("chat stream aborted before the end marker",
			"session_id", turn.SessionID,
			"error", err,
		)
		return
	}

	s.logger.Info("chat stream finished",
		"session_id", turn.SessionID,
		"status", status,
	)

	s.pool.Enqueue(worker.Job{
		AgentID:   agentID,
		SessionID: turn.SessionID,
		Status:    status,
		User:      user,
		Assistant: folded[0],
	})
}
