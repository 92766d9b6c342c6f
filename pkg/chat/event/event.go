// Package event defines the closed set of chat stream events carried in
// the "data:" frames of a response stream.
//
// Event is a sealed interface: only the types in this package implement it,
// so the reducer's type switch is the single place that decides what each
// kind does.
package event

// Kind is the wire discriminator carried in the "type" field.
type Kind string

const (
	KindOutputTextDelta      Kind = "response.output_text.delta"
	KindReasoningTextDelta   Kind = "response.reasoning_text.delta"
	KindReasoningTextDone    Kind = "response.reasoning_text.done"
	KindOutputItemAdded      Kind = "response.output_item.added"
	KindMCPCallArgumentsDone Kind = "response.mcp_call.arguments.done"
	KindOutputItemDone       Kind = "response.output_item.done"
	KindError                Kind = "error"
	KindResponseCompleted    Kind = "response.completed"
	KindResponseFailed       Kind = "response.failed"
	KindSessionCreated       Kind = "session.created"

	// KindDone is the transport-level end marker. It is not JSON on the wire.
	KindDone Kind = "[DONE]"
)

// DoneSentinel is the literal payload of the end-of-stream frame.
const DoneSentinel = "[DONE]"

// Event is one decoded stream event.
type Event interface {
	// Kind returns the wire discriminator.
	Kind() Kind

	// Session returns the session id the event is tagged with, or "".
	Session() string

	isEvent()
}

// Header carries the fields common to every JSON event.
type Header struct {
	SessionID string `json:"session_id,omitempty"`
}

// Session returns the session id the event is tagged with.
func (h Header) Session() string { return h.SessionID }

// OutputTextDelta appends a chunk of model output text.
type OutputTextDelta struct {
	Header
	ItemID       string `json:"item_id"`
	ContentIndex int    `json:"content_index"`
	Delta        string `json:"delta"`
}

// ReasoningTextDelta appends a chunk of the reasoning trace.
type ReasoningTextDelta struct {
	Header
	ItemID       string `json:"item_id"`
	ContentIndex int    `json:"content_index"`
	Delta        string `json:"delta"`
}

// ReasoningTextDone finalizes a reasoning trace. Text, when present,
// replaces the accumulated text.
type ReasoningTextDone struct {
	Header
	ItemID       string  `json:"item_id"`
	ContentIndex int     `json:"content_index"`
	Text         *string `json:"text,omitempty"`
}

// OutputItemAdded opens a tool call.
type OutputItemAdded struct {
	Header
	Item Item `json:"item"`
}

// MCPCallArgumentsDone finalizes the arguments of a tool call.
type MCPCallArgumentsDone struct {
	Header
	ItemID    string `json:"item_id"`
	Arguments string `json:"arguments"`
}

// OutputItemDone finishes a tool call, successfully or with an error.
type OutputItemDone struct {
	Header
	Item Item `json:"item"`
}

// Error is an in-band stream error.
type Error struct {
	Header
	Content string `json:"content,omitempty"`
	Message string `json:"message,omitempty"`
}

// Text returns the human readable error text.
func (e Error) Text() string {
	switch {
	case e.Content != "":
		return e.Content
	case e.Message != "":
		return e.Message
	default:
		return "unknown error"
	}
}

// ResponseCompleted terminates the response successfully.
type ResponseCompleted struct {
	Header
}

// ResponseFailed terminates the response with a failure.
type ResponseFailed struct {
	Header
	Response FailedResponse `json:"response"`
}

// FailedResponse is the "response" object of a response.failed event.
type FailedResponse struct {
	Error *FailureDetail `json:"error,omitempty"`
}

// FailureDetail describes why a response failed.
type FailureDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// SessionCreated announces the server-assigned session id.
type SessionCreated struct {
	Header
}

// Done is the "[DONE]" end-of-stream sentinel.
type Done struct{}

func (OutputTextDelta) Kind() Kind      { return KindOutputTextDelta }
func (ReasoningTextDelta) Kind() Kind   { return KindReasoningTextDelta }
func (ReasoningTextDone) Kind() Kind    { return KindReasoningTextDone }
func (OutputItemAdded) Kind() Kind      { return KindOutputItemAdded }
func (MCPCallArgumentsDone) Kind() Kind { return KindMCPCallArgumentsDone }
func (OutputItemDone) Kind() Kind       { return KindOutputItemDone }
func (Error) Kind() Kind                { return KindError }
func (ResponseCompleted) Kind() Kind    { return KindResponseCompleted }
func (ResponseFailed) Kind() Kind       { return KindResponseFailed }
func (SessionCreated) Kind() Kind       { return KindSessionCreated }
func (Done) Kind() Kind                 { return KindDone }

func (Done) Session() string { return "" }

func (OutputTextDelta) isEvent()      {}
func (ReasoningTextDelta) isEvent()   {}
func (ReasoningTextDone) isEvent()    {}
func (OutputItemAdded) isEvent()      {}
func (MCPCallArgumentsDone) isEvent() {}
func (OutputItemDone) isEvent()       {}
func (Error) isEvent()                {}
func (ResponseCompleted) isEvent()    {}
func (ResponseFailed) isEvent()       {}
func (SessionCreated) isEvent()       {}
func (Done) isEvent()                 {}

// Terminal reports whether ev ends the response cycle.
func Terminal(ev Event) bool {
	switch ev.(type) {
	case ResponseCompleted, ResponseFailed, Done:
		return true
	default:
		return false
	}
}
