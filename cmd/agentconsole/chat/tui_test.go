package chatcmder

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	bubbletea "github.com/charmbracelet/bubbletea"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/agentconsole/pkg/chat/session"
	"github.com/papercomputeco/agentconsole/pkg/chat/transcript"
	"github.com/papercomputeco/agentconsole/pkg/logger"
)

var _ = Describe("mailbox", func() {
	It("delivers only the latest snapshot", func() {
		box := newMailbox()
		box.put(transcript.Snapshot{Epoch: 1})
		box.put(transcript.Snapshot{Epoch: 2})

		msg := box.wait(context.Background())()
		Expect(msg).To(Equal(snapshotMsg(transcript.Snapshot{Epoch: 2})))
	})

	It("keeps a newer snapshot when an older one arrives late", func() {
		box := newMailbox()
		box.put(transcript.Snapshot{Version: 5, Loading: false})
		box.put(transcript.Snapshot{Version: 4, Loading: true})

		msg := box.wait(context.Background())()
		Expect(msg).To(Equal(snapshotMsg(transcript.Snapshot{Version: 5, Loading: false})))
	})

	It("returns nil once the context is done", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		Expect(newMailbox().wait(ctx)()).To(BeNil())
	})
})

var _ = Describe("chatModel", func() {
	var (
		c     *chatCommander
		box   *mailbox
		sends *sync.WaitGroup
		m     chatModel
	)

	BeforeEach(func() {
		target, _ := startBackend()
		c = &chatCommander{
			apiTarget:     target,
			agentID:       "demo",
			timeout:       10 * time.Second,
			frameInterval: time.Millisecond,
			configDir:     filepath.Join(GinkgoT().TempDir(), ".agentconsole"),
			logger:        logger.Nop(),
		}
		Expect(c.setup(nil)).To(Succeed())

		box = newMailbox()
		DeferCleanup(c.ctrl.Store().Subscribe(box.put))
		sends = &sync.WaitGroup{}
		m = newChatModel(context.Background(), c, box, sends)

		next, _ := m.Update(bubbletea.WindowSizeMsg{Width: 80, Height: 30})
		m = next.(chatModel)
	})

	update := func(msg bubbletea.Msg) bubbletea.Cmd {
		next, cmd := m.Update(msg)
		m = next.(chatModel)
		return cmd
	}

	typeText := func(s string) {
		update(bubbletea.KeyMsg{Type: bubbletea.KeyRunes, Runes: []rune(s)})
	}

	It("greets an empty conversation", func() {
		Expect(m.View()).To(ContainSubstring("Say hello to demo."))
		Expect(m.View()).To(ContainSubstring("session"))
	})

	It("mirrors the input into the store draft", func() {
		typeText("hel")
		Expect(c.ctrl.Store().Draft()).To(Equal("hel"))
	})

	It("sends on enter and renders the streamed reply", func() {
		typeText("hello")
		cmd := update(bubbletea.KeyMsg{Type: bubbletea.KeyEnter})
		Expect(cmd).NotTo(BeNil())
		Expect(m.sending).To(BeTrue())
		Expect(m.input.Value()).To(BeEmpty())

		// Run the send outside the program loop, as bubbletea would.
		done := make(chan bubbletea.Msg, 1)
		go func() { done <- sendCmdOf(cmd) }()

		var result bubbletea.Msg
		Eventually(done, 5*time.Second).Should(Receive(&result))
		update(box.wait(context.Background())())
		update(result)

		Expect(m.sending).To(BeFalse())
		Expect(m.failed).To(BeFalse())
		Expect(m.View()).To(ContainSubstring("You said: hello"))
	})

	It("refuses a second send while streaming", func() {
		m.sending = true
		typeText("again")
		update(bubbletea.KeyMsg{Type: bubbletea.KeyEnter})
		Expect(m.status).To(Equal(session.ErrBusy.Error()))
		Expect(m.failed).To(BeTrue())
	})

	It("starts a new conversation on ctrl+n", func() {
		c.ctrl.Store().Load(transcript.Transcript{
			transcript.NewTextMessage("u1", transcript.RoleUser, "earlier", time.Now()),
		}, "s1")
		update(box.wait(context.Background())())
		Expect(m.View()).To(ContainSubstring("earlier"))

		update(bubbletea.KeyMsg{Type: bubbletea.KeyCtrlN})
		update(box.wait(context.Background())())

		Expect(m.status).To(Equal("New conversation"))
		Expect(m.View()).To(ContainSubstring("Say hello to demo."))
	})

	It("shows transport errors", func() {
		update(sendDoneMsg{err: context.DeadlineExceeded})
		Expect(m.failed).To(BeTrue())
		Expect(m.View()).To(ContainSubstring("deadline exceeded"))
	})

	It("quits on ctrl+c", func() {
		cmd := update(bubbletea.KeyMsg{Type: bubbletea.KeyCtrlC})
		Expect(cmd()).To(Equal(bubbletea.Quit()))
	})
})

// sendCmdOf runs the batch returned for a send and returns its sendDoneMsg.
func sendCmdOf(cmd bubbletea.Cmd) bubbletea.Msg {
	batch, ok := cmd().(bubbletea.BatchMsg)
	if !ok {
		return nil
	}
	for _, c := range batch {
		if c == nil {
			continue
		}
		if msg, ok := c().(sendDoneMsg); ok {
			return msg
		}
	}
	return nil
}
