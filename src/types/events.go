package types

// Outbound event names.
const (
	EventConnected     = "connected"
	EventServerMessage = "server_message"
	EventError         = "error"
	EventJoined        = "joined"
	EventLeft          = "left"
)

// server_message subtypes.
const (
	SubtypeUserSync = "user_sync"
	SubtypeStart    = "start"
	SubtypeChunk    = "chunk"
	SubtypeDone     = "done"
)

// Envelope is the JSON frame written to a connection.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Outbound is the closed set of events the server sends to clients.
type Outbound interface {
	EventName() string
}

// Connected acknowledges a successful admission.
type Connected struct {
	Message string `json:"message"`
}

// ServerMessage carries one step of a conversational turn.
type ServerMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	ID      int64  `json:"id,omitempty"`
}

// Error reports a failure in a human readable form.
type Error struct {
	Message string `json:"message"`
}

// Joined confirms a room join.
type Joined struct {
	Room string `json:"room"`
}

// Left confirms a room leave.
type Left struct {
	Room string `json:"room"`
}

func (Connected) EventName() string     { return EventConnected }
func (ServerMessage) EventName() string { return EventServerMessage }
func (Error) EventName() string         { return EventError }
func (Joined) EventName() string        { return EventJoined }
func (Left) EventName() string          { return EventLeft }

// Wrap builds the wire envelope for an outbound event.
func Wrap(ev Outbound) Envelope {
	return Envelope{Event: ev.EventName(), Data: ev}
}

func UserSync(content string, id int64) ServerMessage {
	return ServerMessage{Type: SubtypeUserSync, Content: content, ID: id}
}

func Start() ServerMessage { return ServerMessage{Type: SubtypeStart} }

func Chunk(content string) ServerMessage {
	return ServerMessage{Type: SubtypeChunk, Content: content}
}

func Done() ServerMessage { return ServerMessage{Type: SubtypeDone} }
