package types

import "time"

// User is the identity attached to a connection once admission succeeds.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
}

// Room returns the reserved multi-device room for this user.
func (u User) Room() string { return UserRoom(u.ID) }

// UserRoom builds the reserved room name for a user ID.
func UserRoom(userID string) string { return "user:" + userID }

// ClientInfo holds metadata about a connected WebSocket client.
type ClientInfo struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ConnectedAt time.Time `json:"connected_at"`
	Rooms       []string  `json:"rooms"`
	Alive       bool      `json:"alive"`
	UserAgent   string    `json:"user_agent,omitempty"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	WriteJSON(v any) error
	ReadMessage() ([]byte, error)
	// Ping writes a transport-level ping control frame.
	Ping() error
	// SetPongHandler installs fn to run whenever a pong control frame is read.
	SetPongHandler(fn func())
	// CloseWith sends a close frame carrying code and reason, then closes.
	CloseWith(code int, reason string) error
	// Close drops the transport without a close handshake.
	Close() error
}
