package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInboundClientMessage(t *testing.T) {
	ev, err := ParseInbound([]byte(`{"event":"client_message","data":{"content":"hi"}}`))
	require.NoError(t, err)

	msg, ok := ev.(ClientMessage)
	require.True(t, ok)
	assert.Equal(t, "hi", msg.Content)
	assert.Equal(t, EventClientMessage, ev.Name())
}

func TestParseInboundMissingDataIsEmptyMessage(t *testing.T) {
	ev, err := ParseInbound([]byte(`{"event":"client_message"}`))
	require.NoError(t, err)
	assert.Equal(t, ClientMessage{}, ev)
}

func TestParseInboundRooms(t *testing.T) {
	ev, err := ParseInbound([]byte(`{"event":"join_room","data":{"room":"lobby"}}`))
	require.NoError(t, err)
	assert.Equal(t, JoinRoom{Room: "lobby"}, ev)

	ev, err = ParseInbound([]byte(`{"event":"leave_room","data":{"room":"lobby"}}`))
	require.NoError(t, err)
	assert.Equal(t, LeaveRoom{Room: "lobby"}, ev)
}

func TestParseInboundUnknownKeepsRaw(t *testing.T) {
	ev, err := ParseInbound([]byte(`{"event":"typing","data":{"on":true}}`))
	require.NoError(t, err)

	u, ok := ev.(Unknown)
	require.True(t, ok)
	assert.Equal(t, "typing", u.Name())
	assert.JSONEq(t, `{"on":true}`, string(u.Raw))
}

func TestParseInboundMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":        `not-json`,
		"no event":        `{"data":{}}`,
		"data not object": `{"event":"client_message","data":"hi"}`,
		"content not str": `{"event":"client_message","data":{"content":42}}`,
		"array":           `[1,2]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseInbound([]byte(raw))
			assert.ErrorIs(t, err, ErrMalformedFrame)
		})
	}
}

func TestWrapServerMessage(t *testing.T) {
	data, err := json.Marshal(Wrap(Chunk("a")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"server_message","data":{"type":"chunk","content":"a"}}`, string(data))

	data, err = json.Marshal(Wrap(UserSync("hi", 7)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"server_message","data":{"type":"user_sync","content":"hi","id":7}}`, string(data))

	data, err = json.Marshal(Wrap(Error{Message: "malformed frame"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"error","data":{"message":"malformed frame"}}`, string(data))
}

func TestUserRoom(t *testing.T) {
	assert.Equal(t, "user:42", User{ID: "42"}.Room())
}
