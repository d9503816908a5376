// Package notifiers announces published posts to downstream sinks (webhooks and cloud queues).
package notifiers

import "context"

// Notifier delivers announcement events to a downstream sink.
type Notifier interface {
	ID() string
	Type() string
	Notify(ctx context.Context, evt Event) error
}
