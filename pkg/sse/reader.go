package sse

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

const (
	initialBufferSize = 64 * 1024
	maxLineSize       = 1024 * 1024
)

// Option configures a Framer.
type Option func(*Framer)

// WithTee writes every raw line, terminator included, to w as it is read.
// A trailing partial line at end of stream is written too, even though it
// never yields a frame.
func WithTee(w io.Writer) Option {
	return func(f *Framer) {
		f.tee = w
	}
}

// Framer splits a byte stream into frames.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌────────────────┐
// │  Framer.Next()   │──▶│ tee io.Writer  │
// └──────────────────┘   └────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Frame       │
// └──────────────────┘
//
// Only newline-terminated lines are parsed. Bytes after the last newline are
// held until more input arrives, and dropped if the stream ends first.
type Framer struct {
	scanner *bufio.Scanner
	tee     io.Writer
}

// NewFramer returns a Framer reading from src.
func NewFramer(src io.Reader, opts ...Option) *Framer {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, initialBufferSize), maxLineSize)
	scanner.Split(scanRawLines)

	f := &Framer{scanner: scanner}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Next blocks until the next "data:" line is complete and returns its frame.
// Next returns nil, nil when the source is exhausted.
func (f *Framer) Next() (*Frame, error) {
	for f.scanner.Scan() {
		raw := f.scanner.Bytes()

		if f.tee != nil {
			if _, err := f.tee.Write(raw); err != nil {
				return nil, err
			}
		}

		// Partial line at end of stream.
		if raw[len(raw)-1] != '\n' {
			continue
		}

		line := strings.TrimRight(string(raw), "\r\n")
		if data, ok := parseData(line); ok {
			return &Frame{Data: data}, nil
		}
	}

	if err := f.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}

// parseData extracts the value of a "data" field line. Blank lines,
// comments and any other field report false.
func parseData(line string) (string, bool) {
	if line == "" || strings.HasPrefix(line, ":") {
		return "", false
	}

	field, value, _ := strings.Cut(line, ":")
	if field != "data" {
		return "", false
	}
	return strings.TrimPrefix(value, " "), true
}

// scanRawLines is a bufio.SplitFunc yielding lines with their terminator.
// Unlike bufio.ScanLines it keeps the "\n" so callers can tell a complete
// line from the unterminated remainder returned at EOF.
func scanRawLines(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[:i+1], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}
