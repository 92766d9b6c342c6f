// Package transcript holds the chat data model (messages and their typed
// content items) and the Store that exposes the ordered transcript to the
// display layer.
package transcript

import (
	"strings"
	"time"
)

// Role is the author of a Message. It never changes after creation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ContentType discriminates a ContentItem.
type ContentType string

const (
	ContentOutputText ContentType = "output_text"
	ContentReasoning  ContentType = "reasoning"
	ContentToolCall   ContentType = "tool_call"
)

// ToolStatus is the lifecycle state of a tool_call content item.
type ToolStatus string

const (
	ToolInProgress ToolStatus = "in_progress"
	ToolCompleted  ToolStatus = "completed"
	ToolFailed     ToolStatus = "failed"
)

// Message is one turn in the transcript.
// Ordering is array position; Timestamp is the last-modified time.
type Message struct {
	ID        string        `json:"id"`
	Role      Role          `json:"role"`
	Content   []ContentItem `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
}

// ContentItem is one typed fragment of a message body.
// The Type field determines which other fields are populated.
type ContentItem struct {
	Type ContentType `json:"type"` // "output_text", "reasoning", "tool_call"

	// Text content (type="output_text" or type="reasoning")
	Text string `json:"text,omitempty"`

	// ID is the upstream item id. Optional for output_text.
	ID string `json:"id,omitempty"`

	// ContentIndex is the upstream content index. Optional for output_text.
	ContentIndex *int `json:"contentIndex,omitempty"`

	// IsComplete marks a reasoning trace as finalized (type="reasoning")
	IsComplete bool `json:"isComplete,omitempty"`

	// Tool call (type="tool_call")
	Name        string     `json:"name,omitempty"`
	ServerLabel string     `json:"server_label,omitempty"`
	Arguments   string     `json:"arguments,omitempty"`
	Output      string     `json:"output,omitempty"`
	Error       string     `json:"error,omitempty"`
	Status      ToolStatus `json:"status,omitempty"`
}

// Index returns a pointer to i, for populating ContentItem.ContentIndex.
func Index(i int) *int {
	return &i
}

// Matches reports whether c has the identity key described by typ, id and
// index: (type, id, contentIndex) for text-like items, (type, id) for tool calls.
func (c ContentItem) Matches(typ ContentType, id string, index *int) bool {
	if c.Type != typ || c.ID != id {
		return false
	}

	if typ == ContentToolCall {
		return true
	}

	switch {
	case c.ContentIndex == nil && index == nil:
		return true
	case c.ContentIndex == nil || index == nil:
		return false
	default:
		return *c.ContentIndex == *index
	}
}

// NewTextMessage creates a message holding a single output_text item.
func NewTextMessage(id string, role Role, text string, at time.Time) Message {
	return Message{
		ID:        id,
		Role:      role,
		Content:   []ContentItem{{Type: ContentOutputText, Text: text}},
		Timestamp: at,
	}
}

// GetText returns the concatenated output_text content of the message.
func (m *Message) GetText() string {
	var b strings.Builder
	for _, item := range m.Content {
		if item.Type == ContentOutputText {
			b.WriteString(item.Text)
		}
	}
	return b.String()
}

// Clone returns a copy of m whose Content can be mutated without touching m.
func (m Message) Clone() Message {
	if m.Content != nil {
		content := make([]ContentItem, len(m.Content))
		copy(content, m.Content)
		m.Content = content
	}
	return m
}

// Handle identifies the open message a reducer is allowed to mutate.
// It is the message ID returned when the placeholder was appended.
type Handle string

// Transcript is the ordered sequence of messages.
type Transcript []Message

// Transform is a pure transcript update, as queued by the scheduler.
type Transform func(Transcript) Transcript

// Find returns the position of the message addressed by h, or -1.
// The search runs from the end since the open message is normally last.
func (t Transcript) Find(h Handle) int {
	if h == "" {
		return -1
	}
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].ID == string(h) {
			return i
		}
	}
	return -1
}

// Last returns a handle for the last message, or "" for an empty transcript.
func (t Transcript) Last() Handle {
	if len(t) == 0 {
		return ""
	}
	return Handle(t[len(t)-1].ID)
}

// Clone returns a deep copy of the transcript.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	out := make(Transcript, len(t))
	for i, m := range t {
		out[i] = m.Clone()
	}
	return out
}
