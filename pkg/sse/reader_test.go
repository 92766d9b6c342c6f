package sse

import (
	"bytes"
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// collect reads every frame until the end of the stream.
func collect(f *Framer) []string {
	var out []string
	for {
		frame, err := f.Next()
		Expect(err).NotTo(HaveOccurred())
		if frame == nil {
			return out
		}
		out = append(out, frame.Data)
	}
}

// chunkedReader returns its chunks one Read at a time.
type chunkedReader struct {
	chunks []string
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if r.chunks[0] == "" {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

var _ = Describe("Framer", func() {
	var tee *bytes.Buffer

	BeforeEach(func() {
		tee = &bytes.Buffer{}
	})

	Describe("Next", func() {
		Context("with data records", func() {
			It("parses a single frame", func() {
				f := NewFramer(strings.NewReader("data: hello world\n\n"))

				frame, err := f.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(frame.Data).To(Equal("hello world"))

				frame, err = f.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(frame).To(BeNil())
			})

			It("parses a chat stream ending with the sentinel", func() {
				input := "data: {\"type\":\"response.output_text.delta\",\"delta\":\"Hel\"}\n\n" +
					"data: {\"type\":\"response.output_text.delta\",\"delta\":\"lo\"}\n\n" +
					"data: [DONE]\n\n"

				Expect(collect(NewFramer(strings.NewReader(input)))).To(Equal([]string{
					"{\"type\":\"response.output_text.delta\",\"delta\":\"Hel\"}",
					"{\"type\":\"response.output_text.delta\",\"delta\":\"lo\"}",
					"[DONE]",
				}))
			})

			It("treats each data line as its own payload", func() {
				input := "data: one\ndata: two\n\n"
				Expect(collect(NewFramer(strings.NewReader(input)))).To(Equal([]string{"one", "two"}))
			})

			It("handles a data field with no space after the colon", func() {
				Expect(collect(NewFramer(strings.NewReader("data:no-space\n")))).To(Equal([]string{"no-space"}))
			})

			It("strips carriage returns", func() {
				Expect(collect(NewFramer(strings.NewReader("data: crlf\r\n\r\n")))).To(Equal([]string{"crlf"}))
			})

			It("yields empty payloads for empty data fields", func() {
				Expect(collect(NewFramer(strings.NewReader("data:\ndata: \n")))).To(Equal([]string{"", ""}))
			})
		})

		Context("with other lines", func() {
			It("skips comments and other fields", func() {
				input := ": keep-alive\nevent: message\nid: 4\nretry: 3000\nevent\ndata: hello\n\n"
				Expect(collect(NewFramer(strings.NewReader(input)))).To(Equal([]string{"hello"}))
			})

			It("treats a bare data field name as an empty payload", func() {
				Expect(collect(NewFramer(strings.NewReader("data\ndata: hello\n")))).To(Equal([]string{"", "hello"}))
			})

			It("returns nil on input with only blank lines", func() {
				Expect(collect(NewFramer(strings.NewReader("\n\n\n")))).To(BeEmpty())
			})

			It("returns nil on empty input", func() {
				Expect(collect(NewFramer(strings.NewReader("")))).To(BeEmpty())
			})
		})

		Context("with partial lines", func() {
			It("waits for the newline when a line spans several reads", func() {
				src := &chunkedReader{chunks: []string{"da", "ta: {\"de", "lta\":1}", "\n\ndata: next\n"}}
				Expect(collect(NewFramer(src))).To(Equal([]string{"{\"delta\":1}", "next"}))
			})

			It("drops an unterminated line at end of stream", func() {
				src := strings.NewReader("data: complete\ndata: {\"trunc")
				Expect(collect(NewFramer(src))).To(Equal([]string{"complete"}))
			})
		})

		Context("with a tee", func() {
			It("forwards all bytes verbatim", func() {
				input := ": comment\ndata: first\r\n\r\ndata: second\n\ndata: part"
				Expect(collect(NewFramer(strings.NewReader(input), WithTee(tee)))).To(Equal([]string{"first", "second"}))
				Expect(tee.String()).To(Equal(input))
			})

			It("surfaces write errors", func() {
				f := NewFramer(strings.NewReader("data: x\n"), WithTee(failingWriter{}))
				_, err := f.Next()
				Expect(err).To(MatchError(io.ErrShortWrite))
			})
		})

		It("reports lines longer than the buffer limit", func() {
			long := "data: " + strings.Repeat("x", maxLineSize+1) + "\n"
			_, err := NewFramer(strings.NewReader(long)).Next()
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("WriteData", func() {
		It("writes a record the framer reads back", func() {
			var buf bytes.Buffer
			Expect(WriteData(&buf, []byte(`{"a":1}`))).To(Succeed())
			Expect(WriteComment(&buf, "ping")).To(Succeed())
			Expect(WriteData(&buf, []byte("[DONE]"))).To(Succeed())

			Expect(buf.String()).To(Equal("data: {\"a\":1}\n\n: ping\n\ndata: [DONE]\n\n"))
			Expect(collect(NewFramer(&buf))).To(Equal([]string{`{"a":1}`, "[DONE]"}))
		})
	})
})

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, io.ErrShortWrite
}
