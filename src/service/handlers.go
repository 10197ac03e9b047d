package service

import (
	"strings"

	"github.com/orchestra-mcp/relay/src/hub"
	"github.com/orchestra-mcp/relay/src/relay"
	"github.com/orchestra-mcp/relay/src/types"
)

// Room errors sent back to the requesting connection.
const (
	MsgRoomRequired  = "room is required"
	MsgRoomForbidden = "cannot join another user's room"
	MsgRoomOwn       = "cannot leave your own user room"
	MsgNotInRoom     = "not in room"
)

const userRoomPrefix = "user:"

func (s *Service) handle(c *hub.Client, ev types.Inbound) error {
	switch ev := ev.(type) {
	case types.ClientMessage:
		s.relay.Submit(relay.Turn{User: c.User, Content: ev.Content, Origin: c})
	case types.JoinRoom:
		s.joinRoom(c, strings.TrimSpace(ev.Room))
	case types.LeaveRoom:
		s.leaveRoom(c, strings.TrimSpace(ev.Room))
	default:
		s.logger.Debug().Str("client_id", c.ID).Str("event", ev.Name()).Msg("ignoring unknown event")
	}
	return nil
}

func (s *Service) joinRoom(c *hub.Client, room string) {
	switch {
	case room == "":
		s.hub.Send(c, types.Error{Message: MsgRoomRequired})
		return
	case strings.HasPrefix(room, userRoomPrefix) && room != c.User.Room():
		s.logger.Warn().Str("client_id", c.ID).Str("room", room).Msg("refused foreign user room")
		s.hub.Send(c, types.Error{Message: MsgRoomForbidden})
		return
	}
	if s.hub.JoinRoom(c, room) {
		s.hub.Send(c, types.Joined{Room: room})
	}
}

func (s *Service) leaveRoom(c *hub.Client, room string) {
	switch {
	case room == "":
		s.hub.Send(c, types.Error{Message: MsgRoomRequired})
	case room == c.User.Room():
		s.hub.Send(c, types.Error{Message: MsgRoomOwn})
	case s.hub.LeaveRoom(c, room):
		s.hub.Send(c, types.Left{Room: room})
	default:
		s.hub.Send(c, types.Error{Message: MsgNotInRoom})
	}
}
