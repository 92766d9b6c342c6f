package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/agentconsole/pkg/chat/transcript"
	"github.com/papercomputeco/agentconsole/pkg/storage/inmemory"
)

var _ = Describe("MCP Server", func() {
	var (
		server    *Server
		driver    *inmemory.Driver
		ctx       context.Context
		sessionID string
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()

		s, err := driver.CreateSession(ctx, "agent-1")
		Expect(err).NotTo(HaveOccurred())
		sessionID = s.ID

		at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		Expect(driver.AppendMessages(ctx, sessionID,
			transcript.NewTextMessage("m1", transcript.RoleUser, "run echo", at),
			transcript.Message{
				ID:   "m2",
				Role: transcript.RoleAssistant,
				Content: []transcript.ContentItem{
					{Type: transcript.ContentToolCall, ID: "call_1", Name: "echo", Status: transcript.ToolCompleted},
					{Type: transcript.ContentOutputText, Text: "done"},
				},
			},
		)).To(Succeed())

		_, err = driver.CreateSession(ctx, "agent-2")
		Expect(err).NotTo(HaveOccurred())

		server, err = NewServer(Config{Driver: driver})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("returns an error when storage driver is nil", func() {
			_, err := NewServer(Config{})
			Expect(err).To(MatchError(ContainSubstring("storage driver is required")))
		})

		It("returns an HTTP handler", func() {
			Expect(server.Handler()).NotTo(BeNil())
		})
	})

	Describe("list_sessions", func() {
		It("filters by agent", func() {
			result, out, err := server.handleListSessions(ctx, nil, ListSessionsInput{AgentID: "agent-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(BeNil())
			Expect(out.Count).To(Equal(1))
			Expect(out.Sessions[0].ID).To(Equal(sessionID))
			Expect(out.Sessions[0].MessageCount).To(Equal(2))
		})

		It("applies the limit", func() {
			_, out, err := server.handleListSessions(ctx, nil, ListSessionsInput{Limit: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Count).To(Equal(1))
		})
	})

	Describe("session_history", func() {
		It("returns turns with tool names", func() {
			result, out, err := server.handleSessionHistory(ctx, nil, SessionHistoryInput{SessionID: sessionID})
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(BeNil())
			Expect(out.AgentID).To(Equal("agent-1"))
			Expect(out.Turns).To(Equal([]Turn{
				{Role: "user", Text: "run echo"},
				{Role: "assistant", Text: "done", Tools: []string{"echo"}},
			}))
		})

		It("reports unknown sessions as a tool error", func() {
			result, _, err := server.handleSessionHistory(ctx, nil, SessionHistoryInput{SessionID: "missing"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
			Expect(result.Content[0].(*mcp.TextContent).Text).To(ContainSubstring("not found"))
		})

		It("requires a session id", func() {
			result, _, err := server.handleSessionHistory(ctx, nil, SessionHistoryInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})
	})

	Describe("over an MCP session", func() {
		It("lists the tools and calls them", func() {
			serverTransport, clientTransport := mcp.NewInMemoryTransports()

			ss, err := server.mcpServer.Connect(ctx, serverTransport, nil)
			Expect(err).NotTo(HaveOccurred())
			defer ss.Close()

			client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
			cs, err := client.Connect(ctx, clientTransport, nil)
			Expect(err).NotTo(HaveOccurred())
			defer cs.Close()

			tools, err := cs.ListTools(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			names := []string{}
			for _, t := range tools.Tools {
				names = append(names, t.Name)
			}
			Expect(names).To(ConsistOf("list_sessions", "session_history"))

			res, err := cs.CallTool(ctx, &mcp.CallToolParams{
				Name:      "session_history",
				Arguments: map[string]any{"session_id": sessionID},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())

			raw, err := json.Marshal(res.StructuredContent)
			Expect(err).NotTo(HaveOccurred())
			var out SessionHistoryOutput
			Expect(json.Unmarshal(raw, &out)).To(Succeed())
			Expect(out.Turns).To(HaveLen(2))
		})
	})
})
