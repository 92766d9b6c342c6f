package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/agentconsole/pkg/chat/transcript"
	"github.com/papercomputeco/agentconsole/pkg/storage"
)

var (
	listSessionsToolName    = "list_sessions"
	listSessionsDescription = "List stored chat sessions, most recently updated first. Optionally filter by virtual agent id."

	sessionHistoryToolName    = "session_history"
	sessionHistoryDescription = "Return the messages of a stored chat session as role and text turns, including the tools the agent called."
)

const defaultListLimit = 20

// ListSessionsInput represents the input arguments for the list_sessions tool.
type ListSessionsInput struct {
	AgentID string `json:"agent_id,omitempty" jsonschema:"only list sessions of this virtual agent"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum number of sessions to return (default: 20)"`
}

// ListSessionsOutput represents the output of the list_sessions tool.
type ListSessionsOutput struct {
	Sessions []storage.SessionSummary `json:"sessions"`
	Count    int                      `json:"count"`
}

// SessionHistoryInput represents the input arguments for the session_history tool.
type SessionHistoryInput struct {
	SessionID string `json:"session_id" jsonschema:"the id of the session to read"`
}

// Turn represents a single message of a session.
type Turn struct {
	Role  string   `json:"role"`
	Text  string   `json:"text"`
	Tools []string `json:"tools,omitempty"`
}

// SessionHistoryOutput represents the output of the session_history tool.
type SessionHistoryOutput struct {
	SessionID string `json:"session_id"`
	AgentID   string `json:"agent_id"`
	Turns     []Turn `json:"turns"`
}

func (s *Server) handleListSessions(ctx context.Context, _ *mcp.CallToolRequest, input ListSessionsInput) (*mcp.CallToolResult, ListSessionsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	s.logger.Debug("MCP list sessions request",
		"agent_id", input.AgentID,
		"limit", limit,
	)

	list, err := s.config.Driver.ListSessions(ctx, input.AgentID)
	if err != nil {
		s.logger.Error("failed to list sessions", "error", err)
		return toolError(fmt.Sprintf("Failed to list sessions: %v", err)), ListSessionsOutput{}, nil
	}

	if len(list) > limit {
		list = list[:limit]
	}

	return nil, ListSessionsOutput{Sessions: list, Count: len(list)}, nil
}

func (s *Server) handleSessionHistory(ctx context.Context, _ *mcp.CallToolRequest, input SessionHistoryInput) (*mcp.CallToolResult, SessionHistoryOutput, error) {
	if input.SessionID == "" {
		return toolError("session_id is required"), SessionHistoryOutput{}, nil
	}

	history, err := s.config.Driver.GetSession(ctx, input.SessionID)
	if err != nil {
		var notFound storage.NotFoundError
		if errors.As(err, &notFound) {
			return toolError(fmt.Sprintf("Session %s not found", input.SessionID)), SessionHistoryOutput{}, nil
		}
		s.logger.Error("failed to load session", "session_id", input.SessionID, "error", err)
		return toolError(fmt.Sprintf("Failed to load session: %v", err)), SessionHistoryOutput{}, nil
	}

	out := SessionHistoryOutput{
		SessionID: history.ID,
		AgentID:   history.VirtualAgentID,
		Turns:     make([]Turn, 0, len(history.Messages)),
	}
	for _, m := range history.Messages {
		out.Turns = append(out.Turns, toTurn(m))
	}

	return nil, out, nil
}

func toTurn(m transcript.Message) Turn {
	t := Turn{Role: string(m.Role), Text: m.GetText()}
	for _, item := range m.Content {
		if item.Type == transcript.ContentToolCall {
			t.Tools = append(t.Tools, item.Name)
		}
	}
	return t
}

func toolError(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
