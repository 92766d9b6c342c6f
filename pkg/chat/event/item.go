package event

import (
	"bytes"
	"encoding/json"
)

// Item types. Message and reasoning content arrives through text and
// reasoning delta events; only mcp_call and function_call items, or items
// with no type at all, open tool calls. Anything else is ignored.
const (
	ItemTypeMessage      = "message"
	ItemTypeReasoning    = "reasoning"
	ItemTypeMCPCall      = "mcp_call"
	ItemTypeFunctionCall = "function_call"
)

// Item is the "item" object of output_item.added and output_item.done.
type Item struct {
	Type        string     `json:"type,omitempty"`
	ID          string     `json:"id"`
	Name        string     `json:"name,omitempty"`
	ServerLabel string     `json:"server_label,omitempty"`
	Arguments   *string    `json:"arguments,omitempty"`
	Output      *string    `json:"output,omitempty"`
	Error       *ErrorText `json:"error,omitempty"`
}

// IsToolCall reports whether the item describes a tool invocation.
func (i Item) IsToolCall() bool {
	switch i.Type {
	case "", ItemTypeMCPCall, ItemTypeFunctionCall:
		return true
	}
	return false
}

// ErrorText is an item error. Upstreams send either a bare string or an
// object with a "message" field; both decode to the message text.
type ErrorText string

// UnmarshalJSON accepts a JSON string or an object carrying "message".
func (e *ErrorText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = ErrorText(s)
		return nil
	}

	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = ErrorText(obj.Message)
	return nil
}
