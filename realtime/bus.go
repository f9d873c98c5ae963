package realtime

import "context"

// Bus carries room messages between instances. Every instance runs a forwarder
// that hands received messages to its local hub.
type Bus interface {
	Publish(ctx context.Context, msg Message) error
	StartForwarder(ctx context.Context, onMsg func(m Message)) error
	Close() error
}
