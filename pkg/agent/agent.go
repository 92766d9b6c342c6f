// Package agent is a scripted virtual agent. It answers a user turn with
// the same event stream a real agent backend produces: a session
// announcement, a reasoning trace, optional tool calls, text deltas and a
// terminal event.
//
// Commands at the start of a message select the script:
//
//	/tool <name> <json-args>   run a built-in tool and report its result
//	/error                     emit an in-band error, then reply
//	/fail                      fail the response
//	/silent                    complete without any text
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/agentconsole/pkg/chat/event"
	"github.com/papercomputeco/agentconsole/pkg/logger"
)

// ServerLabel tags the tool calls of the built-in registry.
const ServerLabel = "builtin"

// Turn is one user message addressed to the agent.
type Turn struct {
	SessionID string

	// NewSession makes the agent announce SessionID first.
	NewSession bool

	Text string
}

// Emit receives each event in order. Returning an error stops the script.
type Emit func(event.Event) error

// Config holds configuration for the Agent.
type Config struct {
	// Tools defaults to DefaultTools.
	Tools Registry

	// Delay is slept between text deltas to mimic a model streaming.
	Delay time.Duration

	// Now defaults to time.Now.
	Now func() time.Time

	// NewID defaults to a short random id.
	NewID func() string

	Logger *slog.Logger
}

// Agent plays the scripted responses.
type Agent struct {
	tools  Registry
	delay  time.Duration
	newID  func() string
	logger *slog.Logger
}

// New creates an Agent.
func New(c Config) *Agent {
	a := &Agent{
		tools:  c.Tools,
		delay:  c.Delay,
		newID:  c.NewID,
		logger: c.Logger,
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if a.tools == nil {
		a.tools = DefaultTools(c.Now)
	}
	if a.newID == nil {
		a.newID = func() string { return uuid.NewString()[:8] }
	}
	if a.logger == nil {
		a.logger = logger.Nop()
	}
	return a
}

// Tools returns the agent's tool registry.
func (a *Agent) Tools() Registry {
	return a.tools
}

// Run plays the script for turn, passing every event to emit. It returns
// the first error from emit or ctx.
func (a *Agent) Run(ctx context.Context, turn Turn, emit Emit) error {
	h := event.Header{SessionID: turn.SessionID}
	text := strings.TrimSpace(turn.Text)

	send := func(ev event.Event) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return emit(ev)
	}

	if turn.NewSession {
		if err := send(event.SessionCreated{Header: h}); err != nil {
			return err
		}
	}

	var command, rest string
	if strings.HasPrefix(text, "/") {
		command, rest = splitCommand(text)
	}
	a.logger.Debug("running script", "session_id", turn.SessionID, "command", command)

	if err := a.reason(h, command, send); err != nil {
		return err
	}

	var reply string
	switch command {
	case "/fail":
		return send(event.ResponseFailed{
			Header: h,
			Response: event.FailedResponse{
				Error: &event.FailureDetail{Code: "scripted_failure", Message: "The agent was asked to fail."},
			},
		})
	case "/silent":
		return send(event.ResponseCompleted{Header: h})
	case "/error":
		if err := send(event.Error{Header: h, Content: "The agent reported a recoverable error."}); err != nil {
			return err
		}
		reply = "Recovered after an error."
	case "/tool":
		var err error
		reply, err = a.callTool(h, rest, send)
		if err != nil {
			return err
		}
	default:
		reply = "You said: " + text
	}

	if err := a.stream(ctx, h, reply, send); err != nil {
		return err
	}

	return send(event.ResponseCompleted{Header: h})
}

func (a *Agent) reason(h event.Header, command string, send Emit) error {
	id := "rs_" + a.newID()
	steps := []string{"Reading the message. ", "Choosing a reply."}
	if command == "/tool" {
		steps[1] = "Calling a tool."
	}

	for _, step := range steps {
		if err := send(event.ReasoningTextDelta{Header: h, ItemID: id, Delta: step}); err != nil {
			return err
		}
	}
	return send(event.ReasoningTextDone{Header: h, ItemID: id})
}

// callTool plays a full tool-call round trip and returns the reply text.
func (a *Agent) callTool(h event.Header, command string, send Emit) (string, error) {
	name, args := splitCommand(command)
	id := "call_" + a.newID()

	item := event.Item{Type: event.ItemTypeMCPCall, ID: id, Name: name, ServerLabel: ServerLabel}
	if err := send(event.OutputItemAdded{Header: h, Item: item}); err != nil {
		return "", err
	}
	if err := send(event.MCPCallArgumentsDone{Header: h, ItemID: id, Arguments: args}); err != nil {
		return "", err
	}

	output, toolErr := a.runTool(name, args)

	done := item
	done.Arguments = &args
	if toolErr != nil {
		msg := event.ErrorText(toolErr.Error())
		done.Error = &msg
	} else {
		done.Output = &output
	}
	if err := send(event.OutputItemDone{Header: h, Item: done}); err != nil {
		return "", err
	}

	if toolErr != nil {
		return fmt.Sprintf("Tool %s failed: %v", name, toolErr), nil
	}
	return fmt.Sprintf("Tool %s returned: %s", name, output), nil
}

func (a *Agent) runTool(name, args string) (string, error) {
	tool, ok := a.tools[name]
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}

	var raw json.RawMessage
	if args != "" {
		raw = json.RawMessage(args)
	}
	return tool(raw)
}

// stream sends reply as word-sized output_text deltas.
func (a *Agent) stream(ctx context.Context, h event.Header, reply string, send Emit) error {
	id := "msg_" + a.newID()

	for i, word := range strings.SplitAfter(reply, " ") {
		if word == "" {
			continue
		}
		if i > 0 && a.delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(a.delay):
			}
		}
		if err := send(event.OutputTextDelta{Header: h, ItemID: id, Delta: word}); err != nil {
			return err
		}
	}
	return nil
}

// splitCommand splits s at its first space.
func splitCommand(s string) (string, string) {
	head, tail, _ := strings.Cut(strings.TrimSpace(s), " ")
	return head, strings.TrimSpace(tail)
}
