package event

import "errors"

var (
	// ErrUnknownKind indicates a well-formed payload of a kind this client
	// does not handle. Callers ignore such events.
	ErrUnknownKind = errors.New("unknown event kind")

	// ErrMalformed indicates a payload that could not be decoded.
	ErrMalformed = errors.New("malformed event payload")
)
