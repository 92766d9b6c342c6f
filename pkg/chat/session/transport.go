package session

import (
	"context"
	"io"

	"github.com/papercomputeco/agentconsole/pkg/chat/transcript"
)

// Request is the JSON body of a chat request.
type Request struct {
	VirtualAgentID string         `json:"virtualAgentId"`
	Message        RequestMessage `json:"message"`
	Stream         bool           `json:"stream"`
	SessionID      string         `json:"sessionId,omitempty"`
}

// RequestMessage is the user turn carried by a Request.
type RequestMessage struct {
	Role    transcript.Role `json:"role"`
	Content string          `json:"content"`
}

// Transport opens the response stream for a request.
// Implementations return an error for network failures, non-success
// statuses and missing bodies. The body is closed by the caller.
type Transport interface {
	Open(ctx context.Context, req Request) (io.ReadCloser, error)
}

// History is a persisted session and its messages.
type History struct {
	ID             string                `json:"id"`
	VirtualAgentID string                `json:"virtualAgentId"`
	Messages       transcript.Transcript `json:"messages"`
}

// SessionService creates and fetches persisted sessions.
type SessionService interface {
	CreateSession(ctx context.Context, agentID string) (string, error)
	GetSession(ctx context.Context, id string) (*History, error)
}
