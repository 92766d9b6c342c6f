// Package nop provides the publisher used when event streaming is disabled.
package nop

import (
	"context"

	"github.com/papercomputeco/agentconsole/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishResponse validates input and otherwise does nothing.
func (p *Publisher) PublishResponse(_ context.Context, event *eventstream.ResponseFinishedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}

var _ eventstream.Publisher = (*Publisher)(nil)
