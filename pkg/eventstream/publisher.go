package eventstream

import "context"

// Publisher publishes response events to an event stream backend.
type Publisher interface {
	PublishResponse(ctx context.Context, event *ResponseFinishedEvent) error
	Close() error
}
