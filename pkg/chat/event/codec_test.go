package event_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/agentconsole/pkg/chat/event"
)

var _ = Describe("Codec", func() {
	Describe("Decode", func() {
		It("decodes a text delta", func() {
			ev, err := event.Decode([]byte(`{"type":"response.output_text.delta","item_id":"m1","content_index":0,"delta":"Hel","session_id":"s1"}`))
			Expect(err).NotTo(HaveOccurred())

			delta, ok := ev.(event.OutputTextDelta)
			Expect(ok).To(BeTrue())
			Expect(delta.ItemID).To(Equal("m1"))
			Expect(delta.Delta).To(Equal("Hel"))
			Expect(delta.Session()).To(Equal("s1"))
			Expect(delta.Kind()).To(Equal(event.KindOutputTextDelta))
		})

		It("decodes the end sentinel", func() {
			ev, err := event.Decode([]byte(" [DONE] "))
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).To(Equal(event.Done{}))
			Expect(event.Terminal(ev)).To(BeTrue())
		})

		It("decodes a session announcement", func() {
			ev, err := event.Decode([]byte(`{"type":"session.created","session_id":"abc"}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Session()).To(Equal("abc"))
			Expect(event.Terminal(ev)).To(BeFalse())
		})

		It("decodes a failure with its error detail", func() {
			ev, err := event.Decode([]byte(`{"type":"response.failed","response":{"error":{"code":"rate_limit","message":"slow down"}}}`))
			Expect(err).NotTo(HaveOccurred())

			failed := ev.(event.ResponseFailed)
			Expect(failed.Response.Error).NotTo(BeNil())
			Expect(failed.Response.Error.Message).To(Equal("slow down"))
		})

		It("decodes a failure without an error object", func() {
			ev, err := event.Decode([]byte(`{"type":"response.failed"}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.(event.ResponseFailed).Response.Error).To(BeNil())
		})

		It("accepts item errors as a string", func() {
			ev, err := event.Decode([]byte(`{"type":"response.output_item.done","item":{"id":"t1","error":"boom"}}`))
			Expect(err).NotTo(HaveOccurred())

			item := ev.(event.OutputItemDone).Item
			Expect(item.Error).NotTo(BeNil())
			Expect(string(*item.Error)).To(Equal("boom"))
		})

		It("accepts item errors as an object", func() {
			ev, err := event.Decode([]byte(`{"type":"response.output_item.done","item":{"id":"t1","error":{"message":"boom"}}}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(*ev.(event.OutputItemDone).Item.Error)).To(Equal("boom"))
		})

		It("distinguishes missing from empty optional strings", func() {
			ev, err := event.Decode([]byte(`{"type":"response.output_item.done","item":{"id":"t1","output":""}}`))
			Expect(err).NotTo(HaveOccurred())

			item := ev.(event.OutputItemDone).Item
			Expect(item.Arguments).To(BeNil())
			Expect(item.Output).NotTo(BeNil())
			Expect(*item.Output).To(BeEmpty())
		})

		It("reports unknown kinds", func() {
			_, err := event.Decode([]byte(`{"type":"response.created"}`))
			Expect(err).To(MatchError(event.ErrUnknownKind))
		})

		It("reports malformed payloads", func() {
			_, err := event.Decode([]byte(`{not json`))
			Expect(err).To(MatchError(event.ErrMalformed))
		})

		It("reports payloads whose fields have the wrong type", func() {
			_, err := event.Decode([]byte(`{"type":"response.output_text.delta","delta":42}`))
			Expect(err).To(MatchError(event.ErrMalformed))
		})
	})

	Describe("Encode", func() {
		It("renders the sentinel verbatim", func() {
			out, err := event.Encode(event.Done{})
			Expect(err).NotTo(HaveOccurred())
			Expect(string(out)).To(Equal("[DONE]"))
		})

		It("prefixes the type discriminator", func() {
			out, err := event.Encode(event.OutputTextDelta{ItemID: "m1", Delta: "hi"})
			Expect(err).NotTo(HaveOccurred())

			var fields map[string]any
			Expect(json.Unmarshal(out, &fields)).To(Succeed())
			Expect(fields["type"]).To(Equal("response.output_text.delta"))
			Expect(fields["delta"]).To(Equal("hi"))
		})

		It("encodes events without fields", func() {
			out, err := event.Encode(event.ResponseCompleted{})
			Expect(err).NotTo(HaveOccurred())
			Expect(string(out)).To(Equal(`{"type":"response.completed"}`))
		})

		It("is decoded back to an equal event", func() {
			args := `{"q":"x"}`
			in := event.OutputItemAdded{
				Header: event.Header{SessionID: "s1"},
				Item:   event.Item{Type: event.ItemTypeMCPCall, ID: "t1", Name: "search", Arguments: &args},
			}

			out, err := event.Encode(in)
			Expect(err).NotTo(HaveOccurred())

			back, err := event.Decode(out)
			Expect(err).NotTo(HaveOccurred())
			Expect(back).To(Equal(in))
		})
	})

	Describe("Item", func() {
		It("treats message and reasoning items as non tool calls", func() {
			Expect(event.Item{Type: event.ItemTypeMessage}.IsToolCall()).To(BeFalse())
			Expect(event.Item{Type: event.ItemTypeReasoning}.IsToolCall()).To(BeFalse())
			Expect(event.Item{Type: event.ItemTypeMCPCall}.IsToolCall()).To(BeTrue())
			Expect(event.Item{}.IsToolCall()).To(BeTrue())
			Expect(event.Item{Type: event.ItemTypeFunctionCall}.IsToolCall()).To(BeTrue())
			Expect(event.Item{Type: "mcp_list_tools"}.IsToolCall()).To(BeFalse())
			Expect(event.Item{Type: "web_search_call"}.IsToolCall()).To(BeFalse())
		})
	})

	Describe("Error", func() {
		It("prefers content over message", func() {
			Expect(event.Error{Content: "a", Message: "b"}.Text()).To(Equal("a"))
			Expect(event.Error{Message: "b"}.Text()).To(Equal("b"))
			Expect(event.Error{}.Text()).To(Equal("unknown error"))
		})
	})
})
