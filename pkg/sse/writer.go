package sse

import "io"

// WriteData writes payload as a single "data:" record followed by the blank
// line that ends it. payload must not contain newlines.
func WriteData(w io.Writer, payload []byte) error {
	buf := make([]byte, 0, len(payload)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, payload...)
	buf = append(buf, "\n\n"...)

	_, err := w.Write(buf)
	return err
}

// WriteComment writes a comment line, typically as a keep-alive.
func WriteComment(w io.Writer, text string) error {
	_, err := io.WriteString(w, ": "+text+"\n\n")
	return err
}
