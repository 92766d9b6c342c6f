package chatcmder

import (
	"bytes"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/agentconsole/pkg/chat/transcript"
)

var _ = Describe("printer", func() {
	var (
		out *bytes.Buffer
		p   *printer
	)

	user := transcript.NewTextMessage("u1", transcript.RoleUser, "hi", time.Time{})

	assistant := func(items ...transcript.ContentItem) transcript.Message {
		return transcript.Message{ID: "a1", Role: transcript.RoleAssistant, Content: items}
	}
	text := func(s string) transcript.ContentItem {
		return transcript.ContentItem{Type: transcript.ContentOutputText, Text: s}
	}
	snapshot := func(msgs ...transcript.Message) transcript.Snapshot {
		return transcript.Snapshot{Messages: msgs}
	}

	BeforeEach(func() {
		out = &bytes.Buffer{}
		p = newPrinter(out)
	})

	It("ignores snapshots until armed", func() {
		p.onSnapshot(snapshot(user, assistant(text("old"))))
		Expect(out.String()).To(BeEmpty())
	})

	It("prints only new text", func() {
		p.arm("")
		p.onSnapshot(snapshot(user, assistant()))
		p.onSnapshot(snapshot(user, assistant(text("Hel"))))
		p.onSnapshot(snapshot(user, assistant(text("Hello"))))
		p.onSnapshot(snapshot(user, assistant(text("Hello"))))
		p.disarm()

		Expect(out.String()).To(HaveSuffix("Hello\n"))
		Expect(bytes.Count(out.Bytes(), []byte("Hel"))).To(Equal(1))
	})

	It("ignores a snapshot older than one already printed", func() {
		p.arm("")
		newer := snapshot(user, assistant(text("Hello")))
		newer.Version = 2
		older := snapshot(user, assistant(text("Hel")))
		older.Version = 1

		p.onSnapshot(newer)
		p.onSnapshot(older)
		p.disarm()

		Expect(bytes.Count(out.Bytes(), []byte("Hel"))).To(Equal(1))
		Expect(out.String()).To(HaveSuffix("Hello\n"))
	})

	It("skips the message that was last before arming", func() {
		p.arm("a1")
		p.onSnapshot(snapshot(user, assistant(text("old reply"))))
		Expect(out.String()).To(BeEmpty())
	})

	It("annotates finished reasoning and settled tool calls once", func() {
		p.arm("")

		reasoning := transcript.ContentItem{Type: transcript.ContentReasoning, ID: "r1", Text: "Thinking"}
		tool := transcript.ContentItem{Type: transcript.ContentToolCall, ID: "t1", Name: "echo", Status: transcript.ToolInProgress}
		p.onSnapshot(snapshot(user, assistant(reasoning, tool)))
		Expect(out.String()).NotTo(ContainSubstring("Thinking"))
		Expect(out.String()).NotTo(ContainSubstring("echo"))

		reasoning.IsComplete = true
		tool.Status = transcript.ToolCompleted
		tool.Output = "pong"
		p.onSnapshot(snapshot(user, assistant(reasoning, tool)))
		p.onSnapshot(snapshot(user, assistant(reasoning, tool, text("done"))))
		p.disarm()

		Expect(bytes.Count(out.Bytes(), []byte("Thinking"))).To(Equal(1))
		Expect(bytes.Count(out.Bytes(), []byte("pong"))).To(Equal(1))
		Expect(out.String()).To(HaveSuffix("done\n"))
	})

	It("reprints text that was rewritten", func() {
		p.arm("")
		p.onSnapshot(snapshot(user, assistant(text("draft"))))
		p.onSnapshot(snapshot(user, assistant(text("final"))))
		p.disarm()

		Expect(out.String()).To(ContainSubstring("draft\nfinal\n"))
	})
})
