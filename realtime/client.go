package realtime

import (
	"sync"

	"github.com/google/uuid"

	"article-cms/logger"
)

// Client is one open stream. Its ID is the connection id used by the lock
// protocol.
type Client struct {
	ID         string
	ActorID    uint
	ActorEmail string
	Rooms      map[string]bool
	Outbound   chan Message

	done      chan struct{}
	closeOnce sync.Once
	Logger    *logger.Logger
}

func newClient(actorID uint, actorEmail string, buffer int, log *logger.Logger) *Client {
	id := uuid.New().String()
	return &Client{
		ID:         id,
		ActorID:    actorID,
		ActorEmail: actorEmail,
		Rooms:      make(map[string]bool),
		Outbound:   make(chan Message, buffer),
		done:       make(chan struct{}),
		Logger:     log.With("connection_id", id),
	}
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}
