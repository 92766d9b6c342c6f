package chatcmder

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/papercomputeco/agentconsole/pkg/chat/transcript"
	"github.com/papercomputeco/agentconsole/pkg/cliui"
)

// printer writes the assistant message of the active turn incrementally
// from store snapshots: new output text as it arrives, finished reasoning
// traces and settled tool calls as dim annotation lines.
type printer struct {
	mu  sync.Mutex
	out io.Writer

	armed   bool
	skipID  string
	version uint64

	msgID   string
	text    string
	shown   map[string]bool
	midLine bool
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out}
}

// arm starts following the next assistant message after last, the id of
// the final message already on screen.
func (p *printer) arm(last string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.armed = true
	p.skipID = last
	p.msgID = ""
}

// disarm stops following and terminates an open line.
func (p *printer) disarm() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.armed = false
	if p.msgID != "" {
		p.newline()
	}
}

func (p *printer) onSnapshot(s transcript.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s.Version < p.version {
		return
	}
	p.version = s.Version

	if !p.armed || len(s.Messages) == 0 {
		return
	}
	m := s.Messages[len(s.Messages)-1]
	if m.Role != transcript.RoleAssistant || m.ID == p.skipID {
		return
	}

	if m.ID != p.msgID {
		p.msgID = m.ID
		p.text = ""
		p.shown = make(map[string]bool)
		fmt.Fprint(p.out, cliui.AssistantPrompt)
		p.midLine = true
	}

	for i, item := range m.Content {
		key := fmt.Sprintf("%s/%s/%d", item.Type, item.ID, i)
		if p.shown[key] {
			continue
		}

		switch item.Type {
		case transcript.ContentReasoning:
			text := strings.TrimSpace(item.Text)
			if !item.IsComplete || text == "" {
				continue
			}
			p.annotate(cliui.DimStyle.Render("  " + text))
		case transcript.ContentToolCall:
			if item.Status == transcript.ToolInProgress || item.Status == "" {
				continue
			}
			p.annotate(cliui.RenderToolCall(item))
		default:
			continue
		}
		p.shown[key] = true
	}

	text := m.GetText()
	switch {
	case text == p.text:
	case strings.HasPrefix(text, p.text):
		p.write(text[len(p.text):])
	default:
		// Earlier text was rewritten; print the message again in full.
		p.newline()
		p.write(text)
	}
	p.text = text
}

func (p *printer) annotate(line string) {
	p.newline()
	fmt.Fprintln(p.out, line)
}

func (p *printer) write(s string) {
	if s == "" {
		return
	}
	fmt.Fprint(p.out, s)
	p.midLine = !strings.HasSuffix(s, "\n")
}

func (p *printer) newline() {
	if p.midLine {
		fmt.Fprintln(p.out)
		p.midLine = false
	}
}
