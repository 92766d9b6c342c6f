package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Tool runs a built-in tool against its JSON arguments.
type Tool func(args json.RawMessage) (string, error)

// Registry maps tool names to tools.
type Registry map[string]Tool

// Names returns the registered tool names in sorted order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type textArgs struct {
	Text string `json:"text"`
}

func parseText(args json.RawMessage) (string, error) {
	if len(args) == 0 {
		return "", errors.New(`missing arguments, expected {"text": "..."}`)
	}

	var a textArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	return a.Text, nil
}

// DefaultTools returns the echo, upper and time tools.
func DefaultTools(now func() time.Time) Registry {
	return Registry{
		"echo": parseText,
		"upper": func(args json.RawMessage) (string, error) {
			text, err := parseText(args)
			if err != nil {
				return "", err
			}
			return strings.ToUpper(text), nil
		},
		"time": func(json.RawMessage) (string, error) {
			return now().UTC().Format(time.RFC3339), nil
		},
	}
}
