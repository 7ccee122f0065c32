package eventstream

import "context"

// Publisher publishes index events to an event stream backend.
type Publisher interface {
	PublishIndexEvent(ctx context.Context, event *IndexEvent) error
	Close() error
}
