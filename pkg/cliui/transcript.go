package cliui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/papercomputeco/agentconsole/pkg/chat/transcript"
)

var (
	UserPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	AssistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")

	toolStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("111"))
	reasoningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
)

// RenderOptions controls RenderMessage.
type RenderOptions struct {
	// Width wraps markdown output. Zero means 80 columns.
	Width int

	// Markdown renders output_text through glamour.
	Markdown bool

	// Reasoning includes reasoning traces.
	Reasoning bool
}

// RenderMessage renders one transcript message for the terminal: a prompt,
// dim reasoning traces, one line per tool call and the output text.
func RenderMessage(m transcript.Message, opts RenderOptions) string {
	var b strings.Builder

	switch m.Role {
	case transcript.RoleUser:
		b.WriteString(UserPrompt)
		b.WriteString(m.GetText())
		b.WriteString("\n")
		return b.String()
	default:
		b.WriteString(AssistantPrompt)
		b.WriteString("\n")
	}

	var text strings.Builder
	flush := func() {
		if text.Len() == 0 {
			return
		}
		out := text.String()
		if opts.Markdown {
			if rendered, err := RenderMarkdown(out, opts.Width); err == nil {
				out = strings.TrimRight(rendered, "\n")
			}
		}
		b.WriteString(out)
		b.WriteString("\n")
		text.Reset()
	}

	for _, item := range m.Content {
		switch item.Type {
		case transcript.ContentOutputText:
			text.WriteString(item.Text)
		case transcript.ContentReasoning:
			if !opts.Reasoning || strings.TrimSpace(item.Text) == "" {
				continue
			}
			flush()
			b.WriteString(reasoningStyle.Render("  " + strings.TrimSpace(item.Text)))
			b.WriteString("\n")
		case transcript.ContentToolCall:
			flush()
			b.WriteString(RenderToolCall(item))
			b.WriteString("\n")
		}
	}
	flush()

	return b.String()
}

// RenderToolCall renders a tool call as a single status line.
func RenderToolCall(item transcript.ContentItem) string {
	name := item.Name
	if item.ServerLabel != "" {
		name = item.ServerLabel + "." + name
	}

	var mark, detail string
	switch item.Status {
	case transcript.ToolCompleted:
		mark, detail = SuccessMark, item.Output
	case transcript.ToolFailed:
		mark, detail = FailMark, item.Error
	default:
		mark = DimStyle.Render("…")
	}

	line := fmt.Sprintf("  %s %s", mark, toolStyle.Render(name))
	if item.Arguments != "" {
		line += " " + DimStyle.Render(item.Arguments)
	}
	if detail != "" {
		line += " " + DimStyle.Render("→ "+detail)
	}
	return line
}
