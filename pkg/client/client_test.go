package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/agentconsole/pkg/chat/session"
	"github.com/papercomputeco/agentconsole/pkg/chat/transcript"
	"github.com/papercomputeco/agentconsole/pkg/client"
	"github.com/papercomputeco/agentconsole/pkg/storage"
)

var _ = Describe("Client", func() {
	var (
		server  *httptest.Server
		handler http.HandlerFunc
		c       *client.Client
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))

		var err error
		c, err = client.New(client.Config{BaseURL: server.URL + "/"})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("New", func() {
		It("requires a base URL", func() {
			_, err := client.New(client.Config{})
			Expect(err).To(MatchError(ContainSubstring("base URL is required")))
		})
	})

	Describe("Open", func() {
		It("posts the chat request and returns the stream body", func() {
			var (
				gotPath   string
				gotAccept string
				gotBody   session.Request
			)
			handler = func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotAccept = r.Header.Get("Accept")
				_ = json.NewDecoder(r.Body).Decode(&gotBody)

				w.Header().Set("Content-Type", "text/event-stream")
				_, _ = io.WriteString(w, "data: [DONE]\n\n")
			}

			body, err := c.Open(ctx, session.Request{
				VirtualAgentID: "agent-1",
				Message:        session.RequestMessage{Role: transcript.RoleUser, Content: "hi"},
				Stream:         true,
				SessionID:      "s-1",
			})
			Expect(err).NotTo(HaveOccurred())
			defer body.Close()

			data, err := io.ReadAll(body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("data: [DONE]\n\n"))

			Expect(gotPath).To(Equal("/v1/chat"))
			Expect(gotAccept).To(Equal("text/event-stream"))
			Expect(gotBody.VirtualAgentID).To(Equal("agent-1"))
			Expect(gotBody.Message.Content).To(Equal("hi"))
			Expect(gotBody.Stream).To(BeTrue())
			Expect(gotBody.SessionID).To(Equal("s-1"))
		})

		It("uses a custom chat path", func() {
			var gotPath string
			handler = func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				_, _ = io.WriteString(w, "data: [DONE]\n\n")
			}

			custom, err := client.New(client.Config{BaseURL: server.URL, ChatPath: "agents/stream"})
			Expect(err).NotTo(HaveOccurred())

			body, err := custom.Open(ctx, session.Request{VirtualAgentID: "a"})
			Expect(err).NotTo(HaveOccurred())
			body.Close()
			Expect(gotPath).To(Equal("/agents/stream"))
		})

		It("returns a StatusError for non-2xx responses", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, strings.Repeat("x", 2000), http.StatusBadGateway)
			}

			_, err := c.Open(ctx, session.Request{VirtualAgentID: "a"})

			var statusErr *client.StatusError
			Expect(errors.As(err, &statusErr)).To(BeTrue())
			Expect(statusErr.Code).To(Equal(http.StatusBadGateway))
			Expect(len(statusErr.Body)).To(BeNumerically("<=", 515))
			Expect(statusErr.Error()).To(ContainSubstring("status 502"))
		})

		It("returns ErrNoBody for an empty success response", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}

			_, err := c.Open(ctx, session.Request{VirtualAgentID: "a"})
			Expect(err).To(MatchError(client.ErrNoBody))
		})

		It("returns an error when the backend is unreachable", func() {
			server.Close()

			_, err := c.Open(ctx, session.Request{VirtualAgentID: "a"})
			Expect(err).To(MatchError(ContainSubstring("sending request")))
		})

		It("stops reading when the context is cancelled", func() {
			release := make(chan struct{})
			handler = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, "data: {}\n\n")
				w.(http.Flusher).Flush()
				<-release
			}
			defer close(release)

			cctx, cancel := context.WithCancel(ctx)
			body, err := c.Open(cctx, session.Request{VirtualAgentID: "a"})
			Expect(err).NotTo(HaveOccurred())
			defer body.Close()

			cancel()

			done := make(chan error, 1)
			go func() {
				_, err := io.ReadAll(body)
				done <- err
			}()
			Eventually(done, 2*time.Second).Should(Receive(HaveOccurred()))
		})
	})

	Describe("sessions", func() {
		It("creates a session", func() {
			var (
				got    map[string]string
				method string
				path   string
			)
			handler = func(w http.ResponseWriter, r *http.Request) {
				method, path = r.Method, r.URL.Path
				_ = json.NewDecoder(r.Body).Decode(&got)

				w.WriteHeader(http.StatusCreated)
				_, _ = io.WriteString(w, `{"id":"s-42"}`)
			}

			id, err := c.CreateSession(ctx, "agent-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal("s-42"))
			Expect(method).To(Equal(http.MethodPost))
			Expect(path).To(Equal("/v1/sessions"))
			Expect(got).To(HaveKeyWithValue("virtualAgentId", "agent-1"))
		})

		It("rejects a created session without an id", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{}`)
			}

			_, err := c.CreateSession(ctx, "agent-1")
			Expect(err).To(MatchError(ContainSubstring("no id")))
		})

		It("fetches a session history", func() {
			var path string
			handler = func(w http.ResponseWriter, r *http.Request) {
				path = r.URL.Path
				_, _ = io.WriteString(w, `{"id":"s-1","virtualAgentId":"agent-1","messages":[
					{"id":"m1","role":"user","content":[{"type":"output_text","text":"hi"}],"timestamp":"2026-01-02T03:04:05Z"}
				]}`)
			}

			h, err := c.GetSession(ctx, "s-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal("/v1/sessions/s-1"))
			Expect(h.VirtualAgentID).To(Equal("agent-1"))
			Expect(h.Messages).To(HaveLen(1))
			Expect(h.Messages[0].GetText()).To(Equal("hi"))
		})

		It("surfaces a missing session as a StatusError", func() {
			_, err := c.GetSession(ctx, "missing")

			var statusErr *client.StatusError
			Expect(errors.As(err, &statusErr)).To(BeTrue())
			Expect(statusErr.Code).To(Equal(http.StatusNotFound))
		})

		It("lists sessions filtered by agent", func() {
			var query string
			handler = func(w http.ResponseWriter, r *http.Request) {
				query = r.URL.Query().Get("agent")
				_ = json.NewEncoder(w).Encode([]storage.SessionSummary{
					{ID: "s-2", VirtualAgentID: "agent 1", MessageCount: 4},
				})
			}

			list, err := c.ListSessions(ctx, "agent 1")
			Expect(err).NotTo(HaveOccurred())
			Expect(query).To(Equal("agent 1"))
			Expect(list).To(HaveLen(1))
			Expect(list[0].MessageCount).To(Equal(4))
		})
	})
})
