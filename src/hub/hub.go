package hub

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Hub is the live connection registry. One RWMutex guards the client table
// and its reverse indices by user and by room.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	byUser  map[string]map[string]*Client // user ID -> client ID -> client
	rooms   map[string]map[string]*Client // room -> client ID -> client

	hooks     sync.RWMutex
	handlers  []Handler
	onConnect []func(*Client)
	onDisconn []func(*Client)

	logger zerolog.Logger
}

// New creates a new Hub instance.
func New(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		byUser:  make(map[string]map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		logger:  logger.With().Str("component", "hub").Logger(),
	}
}

// Register inserts an authenticated client with no rooms and liveness set.
// Registering the same client twice is a programming error and panics.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if _, exists := h.clients[c.ID]; exists {
		h.mu.Unlock()
		panic(fmt.Sprintf("hub: client %s already registered", c.ID))
	}
	h.clients[c.ID] = c
	if h.byUser[c.User.ID] == nil {
		h.byUser[c.User.ID] = make(map[string]*Client)
	}
	h.byUser[c.User.ID][c.ID] = c
	c.alive.Store(true)
	h.mu.Unlock()

	h.logger.Info().Str("client_id", c.ID).Str("user_id", c.User.ID).Msg("client registered")

	for _, cb := range h.connectHooks() {
		cb(c)
	}
}

// Unregister removes a client from every index and closes it. Calling it
// again for the same client is a no-op.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID)

	if subs := h.byUser[c.User.ID]; subs != nil {
		delete(subs, c.ID)
		if len(subs) == 0 {
			delete(h.byUser, c.User.ID)
		}
	}
	for _, room := range c.roomList() {
		if subs := h.rooms[room]; subs != nil {
			delete(subs, c.ID)
			if len(subs) == 0 {
				delete(h.rooms, room)
			}
		}
		c.removeRoom(room)
	}
	h.mu.Unlock()

	c.Close()
	h.logger.Info().Str("client_id", c.ID).Str("user_id", c.User.ID).Msg("client unregistered")

	for _, cb := range h.disconnectHooks() {
		cb(c)
	}
}

// LookupByUser returns every registered client owned by userID.
func (h *Hub) LookupByUser(userID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return collect(h.byUser[userID])
}

// LookupByRoom returns every registered client that joined room.
func (h *Hub) LookupByRoom(room string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return collect(h.rooms[room])
}

// JoinRoom adds a registered client to room.
func (h *Hub) JoinRoom(c *Client, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.ID]; !ok {
		return false
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*Client)
	}
	h.rooms[room][c.ID] = c
	c.addRoom(room)
	return true
}

// LeaveRoom removes a client from room.
func (h *Hub) LeaveRoom(c *Client, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.rooms[room]
	if !ok {
		return false
	}
	if _, member := subs[c.ID]; !member {
		return false
	}
	delete(subs, c.ID)
	if len(subs) == 0 {
		delete(h.rooms, room)
	}
	c.removeRoom(room)
	return true
}

// MarkAlive records responsive traffic from c.
func (h *Hub) MarkAlive(c *Client) {
	c.alive.Store(true)
}

// MarkPending clears the liveness flag ahead of a probe and returns the
// value it held before.
func (h *Hub) MarkPending(c *Client) bool {
	return c.alive.Swap(false)
}

// Registered reports whether c is currently in the registry.
func (h *Hub) Registered(c *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[c.ID]
	return ok
}

// Close terminates every client and empties the registry.
func (h *Hub) Close() {
	h.mu.RLock()
	all := collect(h.clients)
	h.mu.RUnlock()

	for _, c := range all {
		c.terminate()
		h.Unregister(c)
	}
}

func (h *Hub) connectHooks() []func(*Client) {
	h.hooks.RLock()
	defer h.hooks.RUnlock()
	return h.onConnect
}

func (h *Hub) disconnectHooks() []func(*Client) {
	h.hooks.RLock()
	defer h.hooks.RUnlock()
	return h.onDisconn
}

func collect(m map[string]*Client) []*Client {
	out := make([]*Client, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	return out
}
