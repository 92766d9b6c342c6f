// Package reducer folds chat stream events into a transcript.
//
// Every handler is a pure function of (transcript, handle, event): it never
// mutates its input, only touches the assistant message addressed by the
// handle, and returns the input unchanged when that message is missing or
// is not an assistant message.
package reducer

import (
	"strings"
	"time"

	"github.com/papercomputeco/agentconsole/pkg/chat/event"
	"github.com/papercomputeco/agentconsole/pkg/chat/transcript"
)

const (
	// WarningPrefix marks user-visible warning text.
	WarningPrefix = "⚠️ "

	// FallbackMessage is appended when a response ends with no visible text.
	FallbackMessage = WarningPrefix + "The agent finished without producing a response. Please try again."

	defaultFailureMessage = "The response failed."
)

// Option configures a Reducer.
type Option func(*Reducer)

// WithClock overrides the time source used to stamp mutated messages.
func WithClock(now func() time.Time) Option {
	return func(r *Reducer) {
		r.now = now
	}
}

// Reducer applies stream events to a transcript.
type Reducer struct {
	now func() time.Time
}

// New creates a Reducer.
func New(opts ...Option) *Reducer {
	r := &Reducer{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply dispatches ev to its handler. Events that do not change content
// (session announcements, the end sentinel) return t unchanged.
func (r *Reducer) Apply(t transcript.Transcript, h transcript.Handle, ev event.Event) transcript.Transcript {
	switch e := ev.(type) {
	case event.OutputTextDelta:
		return r.OutputTextDelta(t, h, e)
	case event.ReasoningTextDelta:
		return r.ReasoningTextDelta(t, h, e)
	case event.ReasoningTextDone:
		return r.ReasoningTextDone(t, h, e)
	case event.OutputItemAdded:
		return r.OutputItemAdded(t, h, e)
	case event.MCPCallArgumentsDone:
		return r.MCPCallArgumentsDone(t, h, e)
	case event.OutputItemDone:
		return r.OutputItemDone(t, h, e)
	case event.Error:
		return r.Error(t, h, e)
	case event.ResponseCompleted:
		return r.ResponseCompleted(t, h, e)
	case event.ResponseFailed:
		return r.ResponseFailed(t, h, e)
	case event.SessionCreated, event.Done:
		return t
	default:
		return t
	}
}

// Transform binds ev and h into a transform for the scheduler.
func (r *Reducer) Transform(h transcript.Handle, ev event.Event) transcript.Transform {
	return func(t transcript.Transcript) transcript.Transcript {
		return r.Apply(t, h, ev)
	}
}

// OutputTextDelta appends the delta to the matching output_text item, or
// appends a new item seeded with it.
func (r *Reducer) OutputTextDelta(t transcript.Transcript, h transcript.Handle, ev event.OutputTextDelta) transcript.Transcript {
	return r.mutate(t, h, func(m *transcript.Message) {
		appendDelta(m, transcript.ContentOutputText, ev.ItemID, ev.ContentIndex, ev.Delta)
	})
}

// ReasoningTextDelta appends the delta to the matching reasoning item, or
// appends a new item seeded with it.
func (r *Reducer) ReasoningTextDelta(t transcript.Transcript, h transcript.Handle, ev event.ReasoningTextDelta) transcript.Transcript {
	return r.mutate(t, h, func(m *transcript.Message) {
		appendDelta(m, transcript.ContentReasoning, ev.ItemID, ev.ContentIndex, ev.Delta)
	})
}

// ReasoningTextDone marks the matching reasoning item complete, replacing
// its text when the event carries one. Unmatched events are dropped.
func (r *Reducer) ReasoningTextDone(t transcript.Transcript, h transcript.Handle, ev event.ReasoningTextDone) transcript.Transcript {
	return r.mutate(t, h, func(m *transcript.Message) {
		i := indexOf(m, transcript.ContentReasoning, ev.ItemID, transcript.Index(ev.ContentIndex))
		if i < 0 {
			return
		}
		m.Content[i].IsComplete = true
		if ev.Text != nil {
			m.Content[i].Text = *ev.Text
		}
	})
}

// OutputItemAdded appends a new in-progress tool call. It never merges.
func (r *Reducer) OutputItemAdded(t transcript.Transcript, h transcript.Handle, ev event.OutputItemAdded) transcript.Transcript {
	if !ev.Item.IsToolCall() {
		return t
	}

	return r.mutate(t, h, func(m *transcript.Message) {
		item := transcript.ContentItem{
			Type:        transcript.ContentToolCall,
			ID:          ev.Item.ID,
			Name:        ev.Item.Name,
			ServerLabel: ev.Item.ServerLabel,
			Status:      transcript.ToolInProgress,
		}
		if ev.Item.Arguments != nil {
			item.Arguments = *ev.Item.Arguments
		}
		m.Content = append(m.Content, item)
	})
}

// MCPCallArgumentsDone replaces the arguments of the matching tool call.
// Unmatched events are dropped.
func (r *Reducer) MCPCallArgumentsDone(t transcript.Transcript, h transcript.Handle, ev event.MCPCallArgumentsDone) transcript.Transcript {
	return r.mutate(t, h, func(m *transcript.Message) {
		i := indexOf(m, transcript.ContentToolCall, ev.ItemID, nil)
		if i < 0 {
			return
		}
		m.Content[i].Arguments = ev.Arguments
	})
}

// OutputItemDone finishes the matching tool call: output and error are
// replaced, arguments only when supplied, and the status becomes failed
// when an error is present and completed otherwise. Unmatched events are
// dropped since the name of the call would be unknown.
func (r *Reducer) OutputItemDone(t transcript.Transcript, h transcript.Handle, ev event.OutputItemDone) transcript.Transcript {
	if !ev.Item.IsToolCall() {
		return t
	}

	return r.mutate(t, h, func(m *transcript.Message) {
		i := indexOf(m, transcript.ContentToolCall, ev.Item.ID, nil)
		if i < 0 {
			return
		}

		item := &m.Content[i]
		if ev.Item.Arguments != nil {
			item.Arguments = *ev.Item.Arguments
		}
		if ev.Item.Output != nil {
			item.Output = *ev.Item.Output
		}
		if ev.Item.Error != nil && *ev.Item.Error != "" {
			item.Error = string(*ev.Item.Error)
			item.Status = transcript.ToolFailed
		} else {
			item.Error = ""
			item.Status = transcript.ToolCompleted
		}
	})
}

// Error appends a warning item. Existing content is kept.
func (r *Reducer) Error(t transcript.Transcript, h transcript.Handle, ev event.Error) transcript.Transcript {
	return r.mutate(t, h, func(m *transcript.Message) {
		m.Content = append(m.Content, warning(ev.Text()))
	})
}

// ResponseCompleted guarantees the turn ends with visible output text.
func (r *Reducer) ResponseCompleted(t transcript.Transcript, h transcript.Handle, _ event.ResponseCompleted) transcript.Transcript {
	return r.mutate(t, h, ensureVisibleText)
}

// ResponseFailed replaces the content with the failure message when the
// event carries one, and otherwise applies the completion fallback.
func (r *Reducer) ResponseFailed(t transcript.Transcript, h transcript.Handle, ev event.ResponseFailed) transcript.Transcript {
	return r.mutate(t, h, func(m *transcript.Message) {
		if detail := ev.Response.Error; detail != nil {
			msg := detail.Message
			if strings.TrimSpace(msg) == "" {
				msg = defaultFailureMessage
			}
			m.Content = []transcript.ContentItem{warning(msg)}
			return
		}
		ensureVisibleText(m)
	})
}

// Finalize applies the completion fallback without an event. The session
// controller uses it when the stream ends with the sentinel or EOF.
func (r *Reducer) Finalize(t transcript.Transcript, h transcript.Handle) transcript.Transcript {
	return r.mutate(t, h, ensureVisibleText)
}

// mutate copies t and the addressed message, applies fn to the copy and
// refreshes its timestamp.
func (r *Reducer) mutate(t transcript.Transcript, h transcript.Handle, fn func(*transcript.Message)) transcript.Transcript {
	i := t.Find(h)
	if i < 0 || t[i].Role != transcript.RoleAssistant {
		return t
	}

	next := make(transcript.Transcript, len(t))
	copy(next, t)

	msg := t[i].Clone()
	fn(&msg)
	msg.Timestamp = r.now()
	next[i] = msg

	return next
}

// PruneEmpty removes the message addressed by h if it shows nothing.
// It is applied when a cycle aborts so no empty bubble is left behind.
func PruneEmpty(t transcript.Transcript, h transcript.Handle) transcript.Transcript {
	i := t.Find(h)
	if i < 0 || t[i].Role != transcript.RoleAssistant || HasVisibleContent(t[i]) {
		return t
	}

	next := make(transcript.Transcript, 0, len(t)-1)
	next = append(next, t[:i]...)
	return append(next, t[i+1:]...)
}

// HasVisibleText reports whether m has an output_text item with
// non-whitespace text.
func HasVisibleText(m transcript.Message) bool {
	for _, item := range m.Content {
		if item.Type == transcript.ContentOutputText && strings.TrimSpace(item.Text) != "" {
			return true
		}
	}
	return false
}

// HasVisibleContent reports whether m shows anything at all: text,
// reasoning or a tool call.
func HasVisibleContent(m transcript.Message) bool {
	for _, item := range m.Content {
		switch item.Type {
		case transcript.ContentToolCall:
			return true
		default:
			if strings.TrimSpace(item.Text) != "" {
				return true
			}
		}
	}
	return false
}

func appendDelta(m *transcript.Message, typ transcript.ContentType, id string, index int, delta string) {
	if i := indexOf(m, typ, id, &index); i >= 0 {
		m.Content[i].Text += delta
		return
	}

	m.Content = append(m.Content, transcript.ContentItem{
		Type:         typ,
		ID:           id,
		ContentIndex: transcript.Index(index),
		Text:         delta,
	})
}

func indexOf(m *transcript.Message, typ transcript.ContentType, id string, index *int) int {
	for i, item := range m.Content {
		if item.Matches(typ, id, index) {
			return i
		}
	}
	return -1
}

func ensureVisibleText(m *transcript.Message) {
	if HasVisibleText(*m) {
		return
	}

	kept := make([]transcript.ContentItem, 0, len(m.Content)+1)
	for _, item := range m.Content {
		if item.Type == transcript.ContentOutputText {
			continue
		}
		kept = append(kept, item)
	}
	m.Content = append(kept, transcript.ContentItem{
		Type: transcript.ContentOutputText,
		Text: FallbackMessage,
	})
}

func warning(text string) transcript.ContentItem {
	return transcript.ContentItem{
		Type: transcript.ContentOutputText,
		Text: WarningPrefix + text,
	}
}
