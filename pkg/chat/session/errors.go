package session

import "errors"

var (
	// ErrBusy is returned by Send while another cycle is active.
	ErrBusy = errors.New("a response is already streaming")

	// ErrEmptyMessage is returned by Send for blank input.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrStopped is returned by Send when the cycle was stopped by Stop.
	ErrStopped = errors.New("response stopped")

	// ErrReset is returned by Send when the conversation was reset or the
	// agent switched while the cycle was active.
	ErrReset = errors.New("conversation reset")

	// ErrTimeout is reported when a cycle exceeds the configured timeout.
	ErrTimeout = errors.New("response timed out")

	// ErrNoSessions is returned by Resume when no session service is configured.
	ErrNoSessions = errors.New("no session service configured")

	// ErrNoTransport is returned by New when the config has no Transport.
	ErrNoTransport = errors.New("transport is required")
)
