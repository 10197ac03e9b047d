package types

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Inbound event names.
const (
	EventClientMessage = "client_message"
	EventJoinRoom      = "join_room"
	EventLeaveRoom     = "leave_room"
)

// ErrMalformedFrame is returned when an inbound frame does not have the
// {event, data} shape or its payload does not match the event.
var ErrMalformedFrame = errors.New("malformed frame")

// Inbound is the closed set of events a client may send.
type Inbound interface {
	Name() string
}

// ClientMessage starts a conversational turn.
type ClientMessage struct {
	Content string `json:"content"`
}

// JoinRoom asks to add the connection to a room.
type JoinRoom struct {
	Room string `json:"room"`
}

// LeaveRoom asks to remove the connection from a room.
type LeaveRoom struct {
	Room string `json:"room"`
}

// Unknown preserves frames whose event name is not part of the vocabulary.
type Unknown struct {
	Event string
	Raw   json.RawMessage
}

func (ClientMessage) Name() string { return EventClientMessage }
func (JoinRoom) Name() string      { return EventJoinRoom }
func (LeaveRoom) Name() string     { return EventLeaveRoom }
func (u Unknown) Name() string     { return u.Event }

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ParseInbound decodes a raw frame into its typed event.
func ParseInbound(raw []byte) (Inbound, error) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, ErrMalformedFrame
	}
	if frame.Event == "" {
		return nil, ErrMalformedFrame
	}

	switch frame.Event {
	case EventClientMessage:
		var ev ClientMessage
		if err := decodeData(frame.Data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventJoinRoom:
		var ev JoinRoom
		if err := decodeData(frame.Data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventLeaveRoom:
		var ev LeaveRoom
		if err := decodeData(frame.Data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return Unknown{Event: frame.Event, Raw: frame.Data}, nil
	}
}

// decodeData requires data to be a JSON object (or absent) whose fields
// match the target's types.
func decodeData(data json.RawMessage, target any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] != '{' {
		return ErrMalformedFrame
	}
	if err := json.Unmarshal(trimmed, target); err != nil {
		return ErrMalformedFrame
	}
	return nil
}
