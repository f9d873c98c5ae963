package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"article-cms/logger"
)

var ErrUnknownConnection = errors.New("unknown connection")

// DisconnectFunc is called after a client is closed with the rooms it had
// joined.
type DisconnectFunc func(ctx context.Context, connectionID string, rooms []string)

// Hub multicasts messages to the clients subscribed to a room. Delivery is
// ordered per client; a client whose buffer is full misses messages.
type Hub struct {
	mu      sync.RWMutex
	log     *logger.Logger
	clients map[string]*Client
	rooms   map[string]map[*Client]bool

	bus          Bus
	buffer       int
	heartbeat    time.Duration
	onDisconnect []DisconnectFunc
}

func NewHub(log *logger.Logger, buffer int) *Hub {
	if buffer < 1 {
		buffer = 16
	}
	return &Hub{
		log:       log.With("component", "RoomHub"),
		clients:   make(map[string]*Client),
		rooms:     make(map[string]map[*Client]bool),
		buffer:    buffer,
		heartbeat: 15 * time.Second,
	}
}

// UseBus routes Send through bus and starts delivering what it forwards.
func (hub *Hub) UseBus(ctx context.Context, bus Bus) error {
	if err := bus.StartForwarder(ctx, hub.Deliver); err != nil {
		return fmt.Errorf("start bus forwarder: %w", err)
	}
	hub.mu.Lock()
	hub.bus = bus
	hub.mu.Unlock()
	return nil
}

func (hub *Hub) OnDisconnect(fn DisconnectFunc) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.onDisconnect = append(hub.onDisconnect, fn)
}

func (hub *Hub) NewClient(actorID uint, actorEmail string) *Client {
	client := newClient(actorID, actorEmail, hub.buffer, hub.log)

	hub.mu.Lock()
	hub.clients[client.ID] = client
	hub.mu.Unlock()

	hub.log.Debug("client connected", "connection_id", client.ID, "actor", actorEmail)
	return client
}

func (hub *Hub) Client(connectionID string) (*Client, bool) {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	c, ok := hub.clients[connectionID]
	return c, ok
}

func (hub *Hub) AddToGroup(connectionID, room string) error {
	room = strings.TrimSpace(room)
	if room == "" {
		return fmt.Errorf("empty room")
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()

	client, ok := hub.clients[connectionID]
	if !ok {
		return ErrUnknownConnection
	}
	client.Rooms[room] = true

	members, exists := hub.rooms[room]
	if !exists {
		members = make(map[*Client]bool)
		hub.rooms[room] = members
	}
	members[client] = true

	hub.log.Debug("client joined room", "connection_id", connectionID, "room", room)
	return nil
}

func (hub *Hub) RemoveFromGroup(connectionID, room string) error {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	client, ok := hub.clients[connectionID]
	if !ok {
		return ErrUnknownConnection
	}
	hub.leave(client, room)
	hub.log.Debug("client left room", "connection_id", connectionID, "room", room)
	return nil
}

// leave must be called with mu held.
func (hub *Hub) leave(client *Client, room string) {
	delete(client.Rooms, room)
	if members, ok := hub.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(hub.rooms, room)
		}
	}
}

func (hub *Hub) RoomsOf(connectionID string) []string {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	client, ok := hub.clients[connectionID]
	if !ok {
		return nil
	}
	rooms := make([]string, 0, len(client.Rooms))
	for room := range client.Rooms {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

func (hub *Hub) MemberCount(room string) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.rooms[room])
}

// Send broadcasts payload to room. With a bus attached the message goes out
// through the bus and comes back through the forwarder; if publishing fails
// it is delivered locally.
func (hub *Hub) Send(ctx context.Context, room string, event Event, payload any) error {
	msg, err := NewMessage(room, event, payload)
	if err != nil {
		return err
	}

	hub.mu.RLock()
	bus := hub.bus
	hub.mu.RUnlock()

	if bus != nil {
		err := bus.Publish(ctx, msg)
		if err == nil {
			return nil
		}
		hub.log.Warn("bus publish failed, delivering locally", "room", room, "error", err)
	}
	hub.Deliver(msg)
	return nil
}

// Deliver hands msg to the local members of its room.
func (hub *Hub) Deliver(msg Message) {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	for c := range hub.rooms[msg.Room] {
		select {
		case c.Outbound <- msg:
		default:
			hub.log.Warn("dropping room message; outbound buffer full", "connection_id", c.ID, "room", msg.Room)
		}
	}
}

// CloseClient unsubscribes the client everywhere, closes its stream and runs
// the disconnect callbacks. Closing twice is a no-op.
func (hub *Hub) CloseClient(ctx context.Context, client *Client) {
	closed := false
	client.closeOnce.Do(func() { closed = true })
	if !closed {
		return
	}

	hub.mu.Lock()
	rooms := make([]string, 0, len(client.Rooms))
	for room := range client.Rooms {
		rooms = append(rooms, room)
	}
	for _, room := range rooms {
		hub.leave(client, room)
	}
	delete(hub.clients, client.ID)
	callbacks := append([]DisconnectFunc(nil), hub.onDisconnect...)
	hub.mu.Unlock()

	close(client.done)
	close(client.Outbound)
	sort.Strings(rooms)

	hub.log.Debug("client disconnected", "connection_id", client.ID, "rooms", rooms)
	for _, fn := range callbacks {
		fn(ctx, client.ID, rooms)
	}
}

// ServeSSE streams the client's messages until the request ends or the client
// is closed. The first event carries the connection id.
func (hub *Hub) ServeSSE(w http.ResponseWriter, r *http.Request, client *Client) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	hello, err := NewMessage("", EventConnected, Connected{ConnectionID: client.ID})
	if err == nil {
		writeEvent(w, hello)
		flusher.Flush()
	}

	ctx := r.Context()
	heartbeat := time.NewTicker(hub.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			client.Logger.Debug("stream context done", "err", ctx.Err())
			return
		case <-client.done:
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg, ok := <-client.Outbound:
			if !ok {
				return
			}
			if err := writeEvent(w, msg); err != nil {
				client.Logger.Warn("failed to write room message", "error", err)
				continue
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, raw)
	return err
}
