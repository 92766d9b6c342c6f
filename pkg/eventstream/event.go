package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/agentconsole/pkg/chat/transcript"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeResponseFinished is emitted once per finished response stream.
	EventTypeResponseFinished = "agentconsole.response.finished"
)

// ResponseFinishedEvent is a transport-neutral event payload describing
// how one assistant response ended.
type ResponseFinishedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	AgentID   string `json:"agent_id"`
	SessionID string `json:"session_id,omitempty"`

	// Status is "completed", "failed" or "stopped".
	Status string `json:"status"`

	// Message is the final assistant message, absent when it was pruned.
	Message *transcript.Message `json:"message,omitempty"`

	// Discarded counts stream events dropped because they belonged to
	// another session.
	Discarded int `json:"discarded,omitempty"`
}

// NewResponseFinishedEvent fills in the envelope fields.
func NewResponseFinishedEvent(agentID, sessionID, status string, msg *transcript.Message) *ResponseFinishedEvent {
	return &ResponseFinishedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeResponseFinished,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		AgentID:       agentID,
		SessionID:     sessionID,
		Status:        status,
		Message:       msg,
	}
}
