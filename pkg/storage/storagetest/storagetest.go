// Package storagetest holds the behaviour every storage.Driver must share.
// Driver packages register it from their own test suites.
package storagetest

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/agentconsole/pkg/chat/transcript"
	"github.com/papercomputeco/agentconsole/pkg/storage"
)

// SteppingClock returns a clock that advances by one second per call.
func SteppingClock() func() time.Time {
	var (
		mu  sync.Mutex
		now = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

// DescribeDriver registers the shared driver tests. newDriver is called
// before each test; the driver is closed after it.
func DescribeDriver(newDriver func() storage.Driver) bool {
	return Describe("storage.Driver", func() {
		var (
			driver storage.Driver
			ctx    context.Context
		)

		BeforeEach(func() {
			ctx = context.Background()
			driver = nil
			driver = newDriver()
		})

		AfterEach(func() {
			if driver != nil {
				Expect(driver.Close()).To(Succeed())
			}
		})

		userMessage := func(id, text string) transcript.Message {
			return transcript.NewTextMessage(id, transcript.RoleUser, text, time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC))
		}

		Describe("CreateSession", func() {
			It("creates an empty session with a fresh id", func() {
				a, err := driver.CreateSession(ctx, "agent-a")
				Expect(err).NotTo(HaveOccurred())
				Expect(a.ID).NotTo(BeEmpty())
				Expect(a.VirtualAgentID).To(Equal("agent-a"))
				Expect(a.MessageCount).To(BeZero())

				b, err := driver.CreateSession(ctx, "agent-a")
				Expect(err).NotTo(HaveOccurred())
				Expect(b.ID).NotTo(Equal(a.ID))
			})
		})

		Describe("GetSession", func() {
			It("returns the session with no messages", func() {
				s, err := driver.CreateSession(ctx, "agent-a")
				Expect(err).NotTo(HaveOccurred())

				h, err := driver.GetSession(ctx, s.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(h.ID).To(Equal(s.ID))
				Expect(h.VirtualAgentID).To(Equal("agent-a"))
				Expect(h.Messages).To(BeEmpty())
			})

			It("returns NotFoundError for an unknown id", func() {
				_, err := driver.GetSession(ctx, "nonexistent")
				Expect(err).To(MatchError(storage.NotFoundError{ID: "nonexistent"}))
			})
		})

		Describe("AppendMessages", func() {
			It("appends messages in order across calls", func() {
				s, err := driver.CreateSession(ctx, "agent-a")
				Expect(err).NotTo(HaveOccurred())

				assistant := transcript.Message{
					ID:   "m2",
					Role: transcript.RoleAssistant,
					Content: []transcript.ContentItem{
						{Type: transcript.ContentReasoning, ID: "rs_1", ContentIndex: transcript.Index(0), Text: "thinking", IsComplete: true},
						{Type: transcript.ContentToolCall, ID: "call_1", Name: "echo", Arguments: `{"text":"hi"}`, Output: "hi", Status: transcript.ToolCompleted},
						{Type: transcript.ContentOutputText, Text: "hello"},
					},
					Timestamp: time.Date(2026, 3, 4, 5, 6, 8, 0, time.UTC),
				}

				Expect(driver.AppendMessages(ctx, s.ID, userMessage("m1", "hi"), assistant)).To(Succeed())
				Expect(driver.AppendMessages(ctx, s.ID, userMessage("m3", "again"))).To(Succeed())

				h, err := driver.GetSession(ctx, s.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(h.Messages).To(HaveLen(3))
				Expect(h.Messages[0].ID).To(Equal("m1"))
				Expect(h.Messages[0].GetText()).To(Equal("hi"))
				Expect(h.Messages[1].Role).To(Equal(transcript.RoleAssistant))
				Expect(h.Messages[1].Content).To(Equal(assistant.Content))
				Expect(h.Messages[1].Timestamp).To(BeTemporally("==", assistant.Timestamp))
				Expect(h.Messages[2].ID).To(Equal("m3"))
			})

			It("does not alias the caller's content", func() {
				s, err := driver.CreateSession(ctx, "agent-a")
				Expect(err).NotTo(HaveOccurred())

				m := userMessage("m1", "original")
				Expect(driver.AppendMessages(ctx, s.ID, m)).To(Succeed())
				m.Content[0].Text = "changed"

				h, err := driver.GetSession(ctx, s.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(h.Messages[0].GetText()).To(Equal("original"))
			})

			It("returns NotFoundError for an unknown session", func() {
				err := driver.AppendMessages(ctx, "nonexistent", userMessage("m1", "hi"))
				Expect(err).To(MatchError(storage.NotFoundError{ID: "nonexistent"}))
			})
		})

		Describe("ListSessions", func() {
			It("returns an empty list when nothing is stored", func() {
				list, err := driver.ListSessions(ctx, "")
				Expect(err).NotTo(HaveOccurred())
				Expect(list).To(BeEmpty())
			})

			It("filters by agent and orders by most recent update", func() {
				a, err := driver.CreateSession(ctx, "agent-a")
				Expect(err).NotTo(HaveOccurred())
				b, err := driver.CreateSession(ctx, "agent-a")
				Expect(err).NotTo(HaveOccurred())
				other, err := driver.CreateSession(ctx, "agent-b")
				Expect(err).NotTo(HaveOccurred())

				Expect(driver.AppendMessages(ctx, a.ID, userMessage("m1", "hi"), userMessage("m2", "there"))).To(Succeed())

				list, err := driver.ListSessions(ctx, "agent-a")
				Expect(err).NotTo(HaveOccurred())
				Expect(list).To(HaveLen(2))
				Expect(list[0].ID).To(Equal(a.ID))
				Expect(list[0].MessageCount).To(Equal(2))
				Expect(list[1].ID).To(Equal(b.ID))
				Expect(list[1].MessageCount).To(BeZero())

				all, err := driver.ListSessions(ctx, "")
				Expect(err).NotTo(HaveOccurred())
				Expect(all).To(HaveLen(3))

				ids := []string{all[0].ID, all[1].ID, all[2].ID}
				Expect(ids).To(ContainElement(other.ID))
			})
		})
	})
}
