package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchestra-mcp/relay/src/auth"
	"github.com/orchestra-mcp/relay/src/generator"
	"github.com/orchestra-mcp/relay/src/hub"
	"github.com/orchestra-mcp/relay/src/hub/hubtest"
	"github.com/orchestra-mcp/relay/src/service"
	"github.com/orchestra-mcp/relay/src/store"
	"github.com/orchestra-mcp/relay/src/store/db/sqlite"
	"github.com/orchestra-mcp/relay/src/types"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

func newTestService(t *testing.T) *service.Service {
	t.Helper()
	driver, err := sqlite.NewDB(":memory:")
	require.NoError(t, err)
	st := store.New(driver)
	require.NoError(t, st.Migrate(context.Background()))

	tokens, err := auth.NewTokens("test-secret", time.Hour)
	require.NoError(t, err)

	svc := service.New(hub.New(zerolog.Nop()), st, tokens, generator.NewMock(0, 0), zerolog.Nop())
	t.Cleanup(func() {
		svc.Close()
		st.Close()
	})
	return svc
}

func register(t *testing.T, svc *service.Service, email string) *service.Session {
	t.Helper()
	sess, err := svc.Register(context.Background(), email, "secret123", "Test User")
	require.NoError(t, err)
	return sess
}

func connect(t *testing.T, svc *service.Service, id string, user types.User) (*hub.Client, *hubtest.Conn) {
	t.Helper()
	conn := hubtest.NewConn()
	c := hub.NewClient(id, user, conn, svc.Hub())
	svc.Hub().Register(c)
	go c.WritePump()
	go c.ReadPump()
	return c, conn
}

func lastType(conn *hubtest.Conn) string {
	msgs := conn.ServerMessages()
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Type
}

func TestConnectionJoinsUserRoomAndIsWelcomed(t *testing.T) {
	svc := newTestService(t)
	alice := register(t, svc, "alice@example.com").User

	c, conn := connect(t, svc, "d1", alice)

	assert.True(t, c.InRoom(alice.Room()))
	require.Eventually(t, func() bool { return len(conn.Written()) == 1 }, waitFor, tick)
	assert.Equal(t, types.Wrap(types.Connected{Message: service.WelcomeMessage}), conn.Written()[0])
}

func TestClientMessageStreamsToAllDevices(t *testing.T) {
	svc := newTestService(t)
	alice := register(t, svc, "alice@example.com").User
	_, conn1 := connect(t, svc, "d1", alice)
	_, conn2 := connect(t, svc, "d2", alice)

	conn1.Deliver(`{"event":"client_message","data":{"content":"hi"}}`)

	require.Eventually(t, func() bool {
		return lastType(conn1) == types.SubtypeDone && lastType(conn2) == types.SubtypeDone
	}, waitFor, tick)

	var sb strings.Builder
	for _, m := range conn2.ServerMessages() {
		if m.Type == types.SubtypeChunk {
			sb.WriteString(m.Content)
		}
	}
	assert.Equal(t, generator.Reply("hi"), sb.String())
	assert.Equal(t, types.SubtypeUserSync, conn2.ServerMessages()[0].Type)
	assert.Equal(t, types.SubtypeStart, conn1.ServerMessages()[0].Type)

	history, err := svc.Messages(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, store.RoleUser, history[0].Role)
	assert.Equal(t, "hi", history[0].Content)
	assert.Equal(t, generator.Reply("hi"), history[1].Content)
	assert.Equal(t, history[0].ID, conn2.ServerMessages()[0].ID)
}

func TestEmptyClientMessageIsAnError(t *testing.T) {
	svc := newTestService(t)
	alice := register(t, svc, "alice@example.com").User
	_, conn := connect(t, svc, "d1", alice)

	conn.Deliver(`{"event":"client_message","data":{"content":""}}`)

	require.Eventually(t, func() bool { return len(conn.Errors()) == 1 }, waitFor, tick)
	assert.Equal(t, "content is required", conn.Errors()[0].Message)
}

func TestRoomEvents(t *testing.T) {
	svc := newTestService(t)
	alice := register(t, svc, "alice@example.com").User
	c, conn := connect(t, svc, "d1", alice)

	conn.Deliver(`{"event":"join_room","data":{"room":"lobby"}}`)
	require.Eventually(t, func() bool { return c.InRoom("lobby") }, waitFor, tick)

	conn.Deliver(`{"event":"leave_room","data":{"room":"lobby"}}`)
	require.Eventually(t, func() bool { return !c.InRoom("lobby") }, waitFor, tick)

	require.Eventually(t, func() bool { return len(conn.Written()) == 3 }, waitFor, tick)
	written := conn.Written()
	assert.Equal(t, types.Wrap(types.Joined{Room: "lobby"}), written[1])
	assert.Equal(t, types.Wrap(types.Left{Room: "lobby"}), written[2])
}

func TestRoomRefusals(t *testing.T) {
	svc := newTestService(t)
	alice := register(t, svc, "alice@example.com").User
	bob := register(t, svc, "bob@example.com").User
	c, conn := connect(t, svc, "d1", alice)

	conn.Deliver(`{"event":"join_room","data":{"room":"` + bob.Room() + `"}}`)
	conn.Deliver(`{"event":"leave_room","data":{"room":"` + alice.Room() + `"}}`)
	conn.Deliver(`{"event":"leave_room","data":{"room":"nowhere"}}`)
	conn.Deliver(`{"event":"join_room","data":{}}`)

	require.Eventually(t, func() bool { return len(conn.Errors()) == 4 }, waitFor, tick)
	errs := conn.Errors()
	assert.Equal(t, service.MsgRoomForbidden, errs[0].Message)
	assert.Equal(t, service.MsgRoomOwn, errs[1].Message)
	assert.Equal(t, service.MsgNotInRoom, errs[2].Message)
	assert.Equal(t, service.MsgRoomRequired, errs[3].Message)
	assert.False(t, c.InRoom(bob.Room()))
	assert.True(t, c.InRoom(alice.Room()))
}

func TestUnknownEventIsIgnored(t *testing.T) {
	svc := newTestService(t)
	alice := register(t, svc, "alice@example.com").User
	c, conn := connect(t, svc, "d1", alice)

	conn.Deliver(`{"event":"typing","data":{}}`)
	conn.Deliver(`{"event":"join_room","data":{"room":"after"}}`)

	require.Eventually(t, func() bool { return c.InRoom("after") }, waitFor, tick)
	assert.Empty(t, conn.Errors())
}
