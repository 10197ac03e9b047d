package hub

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/orchestra-mcp/relay/src/types"
)

const sendBuffer = 256

// Client wraps a WebSocket connection and manages message flow.
type Client struct {
	ID   string
	User types.User

	conn        types.Conn
	hub         *Hub
	send        chan types.Outbound
	connectedAt time.Time
	userAgent   string
	alive       atomic.Bool

	mu      sync.RWMutex
	rooms   map[string]bool
	done    chan struct{}
	stopped chan struct{}
	closed  bool
}

// NewClient creates a client owned by an already authenticated user.
func NewClient(id string, user types.User, conn types.Conn, h *Hub) *Client {
	c := &Client{
		ID:          id,
		User:        user,
		conn:        conn,
		hub:         h,
		send:        make(chan types.Outbound, sendBuffer),
		connectedAt: time.Now(),
		rooms:       make(map[string]bool),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	c.alive.Store(true)
	conn.SetPongHandler(func() { h.MarkAlive(c) })
	return c
}

// SetUserAgent records the handshake user agent for inspection.
func (c *Client) SetUserAgent(ua string) { c.userAgent = ua }

// Info returns metadata about this client.
func (c *Client) Info() types.ClientInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rooms := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		rooms = append(rooms, r)
	}
	return types.ClientInfo{
		ID:          c.ID,
		UserID:      c.User.ID,
		ConnectedAt: c.connectedAt,
		Rooms:       rooms,
		Alive:       c.alive.Load(),
		UserAgent:   c.userAgent,
	}
}

// InRoom reports whether the client is a member of room.
func (c *Client) InRoom(room string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rooms[room]
}

func (c *Client) addRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[room] = true
}

func (c *Client) removeRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, room)
}

func (c *Client) roomList() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rooms := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// enqueue places ev on the send queue. It reports false when the client is
// closed or its queue is full.
func (c *Client) enqueue(ev types.Outbound) (sent, full bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false, false
	}
	select {
	case c.send <- ev:
		return true, false
	default:
		return false, true
	}
}

// ReadPump reads frames from the WebSocket and routes them to the hub.
func (c *Client) ReadPump() {
	defer c.hub.Unregister(c)

	for {
		raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.hub.MarkAlive(c)
		c.hub.Dispatch(c, raw)
	}
}

// WritePump writes queued events to the WebSocket in FIFO order. The
// connection is closed before Stopped fires.
func (c *Client) WritePump() {
	defer close(c.stopped)
	defer c.conn.Close()

	for {
		select {
		case ev := <-c.send:
			if err := c.conn.WriteJSON(types.Wrap(ev)); err != nil {
				c.hub.Unregister(c)
				return
			}
		case <-c.done:
			c.drain()
			return
		}
	}
}

// drain flushes events queued before the client closed.
func (c *Client) drain() {
	for {
		select {
		case ev := <-c.send:
			if err := c.conn.WriteJSON(types.Wrap(ev)); err != nil {
				return
			}
		default:
			return
		}
	}
}

// Close signals the client to stop its pumps.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

// Stopped is closed once WritePump has returned and the connection is
// closed. The transport must outlive every write, so the upgrade handler
// waits on it.
func (c *Client) Stopped() <-chan struct{} { return c.stopped }

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// terminate drops the transport without a close handshake.
func (c *Client) terminate() {
	c.Close()
	_ = c.conn.Close()
}
