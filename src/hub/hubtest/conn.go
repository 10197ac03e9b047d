// Package hubtest provides an in-memory types.Conn for exercising the hub
// without a real WebSocket.
package hubtest

import (
	"errors"
	"sync"

	"github.com/orchestra-mcp/relay/src/types"
)

// ErrClosed is returned by reads and writes after Close.
var ErrClosed = errors.New("connection closed")

// Conn implements types.Conn for testing without a real WebSocket.
type Conn struct {
	mu       sync.Mutex
	written  []types.Envelope
	readCh   chan []byte
	closed   bool
	closedCh chan struct{}
	pings    int
	pong     func()

	// AutoPong answers every ping immediately when set.
	AutoPong bool

	CloseCode   int
	CloseReason string
}

// NewConn returns an open mock connection.
func NewConn() *Conn {
	return &Conn{
		readCh:   make(chan []byte, 16),
		closedCh: make(chan struct{}),
	}
}

func (m *Conn) WriteJSON(v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	env, ok := v.(types.Envelope)
	if !ok {
		return errors.New("unexpected frame type")
	}
	m.written = append(m.written, env)
	return nil
}

func (m *Conn) ReadMessage() ([]byte, error) {
	select {
	case raw := <-m.readCh:
		return raw, nil
	case <-m.closedCh:
		return nil, ErrClosed
	}
}

func (m *Conn) Ping() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.pings++
	pong, auto := m.pong, m.AutoPong
	m.mu.Unlock()

	if auto && pong != nil {
		pong()
	}
	return nil
}

func (m *Conn) SetPongHandler(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pong = fn
}

func (m *Conn) CloseWith(code int, reason string) error {
	m.mu.Lock()
	m.CloseCode = code
	m.CloseReason = reason
	m.mu.Unlock()
	return m.Close()
}

func (m *Conn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.closedCh)
	}
	return nil
}

// Deliver queues a raw inbound frame for ReadMessage.
func (m *Conn) Deliver(raw string) {
	m.readCh <- []byte(raw)
}

// Pong simulates a pong control frame from the peer.
func (m *Conn) Pong() {
	m.mu.Lock()
	pong := m.pong
	m.mu.Unlock()
	if pong != nil {
		pong()
	}
}

// Written returns a copy of every envelope written so far.
func (m *Conn) Written() []types.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]types.Envelope, len(m.written))
	copy(cp, m.written)
	return cp
}

// ServerMessages returns the server_message payloads written so far.
func (m *Conn) ServerMessages() []types.ServerMessage {
	var out []types.ServerMessage
	for _, env := range m.Written() {
		if sm, ok := env.Data.(types.ServerMessage); ok {
			out = append(out, sm)
		}
	}
	return out
}

// Errors returns the error payloads written so far.
func (m *Conn) Errors() []types.Error {
	var out []types.Error
	for _, env := range m.Written() {
		if e, ok := env.Data.(types.Error); ok {
			out = append(out, e)
		}
	}
	return out
}

// Pings returns the number of pings received.
func (m *Conn) Pings() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pings
}

// IsClosed reports whether Close was called.
func (m *Conn) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
