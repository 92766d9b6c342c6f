// Package sse frames the line-oriented "data:" streams produced by chat
// backends. Each "data:" line carries one complete payload; blank lines,
// comments and other fields are skipped.
//
// Wire format follows the HTML Living Standard event stream section:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Frame is one "data:" payload read from the stream.
type Frame struct {
	// Data is the line content after "data:" with one leading space removed.
	Data string
}
