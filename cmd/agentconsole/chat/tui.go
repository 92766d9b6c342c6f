package chatcmder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/papercomputeco/agentconsole/pkg/chat/session"
	"github.com/papercomputeco/agentconsole/pkg/chat/transcript"
	"github.com/papercomputeco/agentconsole/pkg/cliui"
	"github.com/papercomputeco/agentconsole/pkg/utils"
)

var (
	tuiTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	tuiMutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	tuiErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	tuiDividerChar = "─"
)

type chatKeyMap struct {
	Send   key.Binding
	Stop   key.Binding
	New    key.Binding
	Scroll key.Binding
	Quit   key.Binding
}

func (k chatKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Stop, k.New, k.Scroll, k.Quit}
}

func (k chatKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Send, k.Stop, k.New}, {k.Scroll, k.Quit}}
}

func defaultKeyMap() chatKeyMap {
	return chatKeyMap{
		Send:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		Stop:   key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "stop")),
		New:    key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "new chat")),
		Scroll: key.NewBinding(key.WithKeys("pgup", "pgdown"), key.WithHelp("pgup/pgdn", "scroll")),
		Quit:   key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

// snapshotMsg carries the latest committed store state.
type snapshotMsg transcript.Snapshot

// sendDoneMsg reports the end of a Send call.
type sendDoneMsg struct {
	err error
}

// mailbox hands store snapshots to the program. Only the latest snapshot
// is kept, so the screen repaints at most once per committed flush and the
// store's subscriber never blocks. Snapshots older than the one held are
// dropped: commits from the frame timer and from Send notify concurrently.
type mailbox struct {
	mu     sync.Mutex
	latest transcript.Snapshot
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

func (b *mailbox) put(s transcript.Snapshot) {
	b.mu.Lock()
	if s.Version < b.latest.Version {
		b.mu.Unlock()
		return
	}
	b.latest = s
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

func (b *mailbox) wait(ctx context.Context) bubbletea.Cmd {
	return func() bubbletea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case <-b.notify:
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		return snapshotMsg(b.latest)
	}
}

// renderedMessage caches the rendering of a message version.
type renderedMessage struct {
	key string
	out string
}

type chatModel struct {
	ctx    context.Context
	cmder  *chatCommander
	ctrl   *session.Controller
	box    *mailbox
	sends  *sync.WaitGroup
	snap   transcript.Snapshot
	status string
	failed bool

	sending bool
	width   int
	height  int

	input    textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	keys     chatKeyMap
	cache    map[string]renderedMessage
}

func (c *chatCommander) runTUI(ctx context.Context, resumed int) error {
	lipgloss.SetColorProfile(termenv.EnvColorProfile())

	box := newMailbox()
	unsubscribe := c.ctrl.Store().Subscribe(box.put)
	defer unsubscribe()

	sends := &sync.WaitGroup{}
	m := newChatModel(ctx, c, box, sends)
	if resumed > 0 {
		m.status = fmt.Sprintf("Resumed %d messages", resumed)
	}

	program := bubbletea.NewProgram(m, bubbletea.WithAltScreen(), bubbletea.WithContext(ctx))
	_, err := program.Run()

	// Let a response that is still streaming end as stopped, so its
	// session is remembered.
	c.ctrl.Stop()
	sends.Wait()

	if errors.Is(err, bubbletea.ErrProgramKilled) {
		return nil
	}
	return err
}

func newChatModel(ctx context.Context, c *chatCommander, box *mailbox, sends *sync.WaitGroup) chatModel {
	input := textarea.New()
	input.Placeholder = "Send a message..."
	input.ShowLineNumbers = false
	input.SetHeight(3)
	input.KeyMap.InsertNewline.SetEnabled(false)
	input.Focus()

	spin := spinner.New(spinner.WithSpinner(spinner.Dot))
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))

	return chatModel{
		ctx:      ctx,
		cmder:    c,
		ctrl:     c.ctrl,
		box:      box,
		sends:    sends,
		snap:     c.ctrl.Store().Snapshot(),
		input:    input,
		viewport: viewport.New(80, 20),
		spinner:  spin,
		help:     help.New(),
		keys:     defaultKeyMap(),
		cache:    make(map[string]renderedMessage),
	}
}

func (m chatModel) Init() bubbletea.Cmd {
	return bubbletea.Batch(textarea.Blink, m.box.wait(m.ctx))
}

func (m chatModel) Update(msg bubbletea.Msg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg := msg.(type) {
	case bubbletea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case snapshotMsg:
		m.snap = transcript.Snapshot(msg)
		m.refresh()
		cmds := []bubbletea.Cmd{m.box.wait(m.ctx)}
		if m.snap.Loading {
			cmds = append(cmds, m.spinner.Tick)
		}
		return m, bubbletea.Batch(cmds...)

	case sendDoneMsg:
		m.sending = false
		m.status, m.failed = "", false
		switch {
		case msg.err == nil, errors.Is(msg.err, session.ErrReset):
		case errors.Is(msg.err, session.ErrStopped):
			m.status = "Stopped"
		default:
			m.status, m.failed = msg.err.Error(), true
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd bubbletea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case bubbletea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd bubbletea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m chatModel) handleKey(msg bubbletea.KeyMsg) (bubbletea.Model, bubbletea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.ctrl.Stop()
		return m, bubbletea.Quit

	case key.Matches(msg, m.keys.Stop):
		m.ctrl.Stop()
		return m, nil

	case key.Matches(msg, m.keys.New):
		m.cmder.newChat()
		m.input.Reset()
		m.cache = make(map[string]renderedMessage)
		m.status, m.failed = "New conversation", false
		return m, nil

	case key.Matches(msg, m.keys.Scroll):
		var cmd bubbletea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case key.Matches(msg, m.keys.Send):
		return m.send()
	}

	var cmd bubbletea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.ctrl.Store().SetDraft(m.input.Value())
	return m, cmd
}

func (m chatModel) send() (bubbletea.Model, bubbletea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	if m.sending {
		m.status, m.failed = session.ErrBusy.Error(), true
		return m, nil
	}

	m.input.Reset()
	m.ctrl.Store().SetDraft("")
	m.sending = true
	m.status, m.failed = "", false

	ctrl, ctx, sends := m.ctrl, m.ctx, m.sends
	sends.Add(1)
	sendCmd := func() bubbletea.Msg {
		defer sends.Done()
		return sendDoneMsg{err: ctrl.Send(ctx, text)}
	}
	return m, bubbletea.Batch(sendCmd, m.spinner.Tick)
}

func (m chatModel) busy() bool {
	return m.sending || m.snap.Loading
}

// layout sizes the viewport and input to the window.
func (m *chatModel) layout() {
	const chrome = 1 + 1 + 1 + 3 + 1 // header, divider, status, input, help
	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-chrome, 1)
	m.input.SetWidth(m.width)
	m.help.Width = m.width
	m.cache = make(map[string]renderedMessage)
	m.refresh()
}

// refresh re-renders the transcript, following the tail when the view was
// already at the bottom.
func (m *chatModel) refresh() {
	follow := m.viewport.AtBottom() || m.busy()
	m.viewport.SetContent(m.renderTranscript())
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m *chatModel) renderTranscript() string {
	if len(m.snap.Messages) == 0 {
		return tuiMutedStyle.Render("\n  Say hello to " + m.ctrl.AgentID() + ".")
	}

	width := max(m.width-2, 20)
	last := len(m.snap.Messages) - 1
	parts := make([]string, 0, len(m.snap.Messages))

	for i, msg := range m.snap.Messages {
		streaming := i == last && m.busy()
		cacheKey := fmt.Sprintf("%d/%d/%t", msg.Timestamp.UnixNano(), width, streaming)

		if r, ok := m.cache[msg.ID]; ok && r.key == cacheKey {
			parts = append(parts, r.out)
			continue
		}

		// Markdown is rendered once a message stops changing.
		out := cliui.RenderMessage(msg, cliui.RenderOptions{
			Width:     width,
			Markdown:  !streaming,
			Reasoning: true,
		})
		m.cache[msg.ID] = renderedMessage{key: cacheKey, out: out}
		parts = append(parts, out)
	}

	return strings.Join(parts, "\n")
}

func (m chatModel) View() string {
	var b strings.Builder

	b.WriteString(m.viewHeader())
	b.WriteString("\n")
	b.WriteString(tuiMutedStyle.Render(strings.Repeat(tuiDividerChar, max(m.width, 1))))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.viewStatus())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))

	return b.String()
}

func (m chatModel) viewHeader() string {
	sessionID := m.snap.SessionID
	if sessionID == "" {
		sessionID = "new"
	}
	return fmt.Sprintf("%s  %s %s  %s %s",
		tuiTitleStyle.Render("agentconsole"),
		cliui.KeyStyle.Render("agent"),
		cliui.NameStyle.Render(m.ctrl.AgentID()),
		cliui.KeyStyle.Render("session"),
		cliui.HashStyle.Render(utils.Truncate(sessionID, 8)),
	)
}

func (m chatModel) viewStatus() string {
	switch {
	case m.snap.Loading:
		return m.spinner.View() + " " + tuiMutedStyle.Render("thinking...")
	case m.sending:
		return m.spinner.View() + " " + tuiMutedStyle.Render("streaming...")
	case m.failed:
		return cliui.FailMark + " " + tuiErrorStyle.Render(m.status)
	default:
		return tuiMutedStyle.Render(m.status)
	}
}
