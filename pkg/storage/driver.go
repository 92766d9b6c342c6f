// Package storage persists chat sessions and their messages for the
// development backend.
package storage

import (
	"context"
	"time"

	"github.com/papercomputeco/agentconsole/pkg/chat/session"
	"github.com/papercomputeco/agentconsole/pkg/chat/transcript"
)

// SessionSummary describes a stored session without its messages.
type SessionSummary struct {
	ID             string    `json:"id"`
	VirtualAgentID string    `json:"virtualAgentId"`
	MessageCount   int       `json:"messageCount"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Driver defines the interface for persisting and retrieving sessions in a
// storage backend.
type Driver interface {
	// CreateSession stores a new, empty session for the given agent.
	CreateSession(ctx context.Context, agentID string) (*SessionSummary, error)

	// GetSession returns a session with its messages in append order.
	// Returns NotFoundError when the session doesn't exist.
	GetSession(ctx context.Context, id string) (*session.History, error)

	// ListSessions returns the sessions of agentID, most recently updated
	// first. An empty agentID lists every session.
	ListSessions(ctx context.Context, agentID string) ([]SessionSummary, error)

	// AppendMessages appends messages to an existing session and bumps its
	// update time. Returns NotFoundError when the session doesn't exist.
	AppendMessages(ctx context.Context, id string, msgs ...transcript.Message) error

	// Close closes the store and releases any resources.
	Close() error
}
