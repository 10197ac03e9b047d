package hub_test

import (
	"context"
	"testing"
	"time"

	"github.com/orchestra-mcp/relay/src/hub"
	"github.com/orchestra-mcp/relay/src/hub/hubtest"
	"github.com/orchestra-mcp/relay/src/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeartbeatTerminatesSilentClient(t *testing.T) {
	h := newTestHub(t)
	hb := hub.NewHeartbeat(h, time.Hour, zerolog.Nop())

	silent, silentConn := registerClient(t, h, "silent", "u1")
	h.JoinRoom(silent, "user:u1")

	probed, terminated := hb.Sweep()
	assert.Equal(t, 1, probed)
	assert.Equal(t, 0, terminated)
	assert.Equal(t, 1, silentConn.Pings())
	assert.True(t, h.Registered(silent))

	_, terminated = hb.Sweep()
	assert.Equal(t, 1, terminated)
	assert.False(t, h.Registered(silent))
	assert.True(t, silentConn.IsClosed())
	assert.Empty(t, h.LookupByUser("u1"))
	assert.Empty(t, h.LookupByRoom("user:u1"))
	assert.Zero(t, silentConn.CloseCode, "terminate skips the close handshake")

	probed, terminated = hb.Sweep()
	assert.Zero(t, probed)
	assert.Zero(t, terminated)
}

func TestHeartbeatKeepsResponsiveClient(t *testing.T) {
	h := newTestHub(t)
	hb := hub.NewHeartbeat(h, time.Hour, zerolog.Nop())

	conn := hubtest.NewConn()
	conn.AutoPong = true
	c := hub.NewClient("chatty", types.User{ID: "u1"}, conn, h)
	h.Register(c)

	for i := 0; i < 5; i++ {
		_, terminated := hb.Sweep()
		assert.Zero(t, terminated)
	}
	assert.True(t, h.Registered(c))
	assert.Equal(t, 5, conn.Pings())
}

func TestPongBetweenSweepsRestoresLiveness(t *testing.T) {
	h := newTestHub(t)
	hb := hub.NewHeartbeat(h, time.Hour, zerolog.Nop())
	c, conn := registerClient(t, h, "late", "u1")

	hb.Sweep()
	assert.False(t, c.Info().Alive)

	conn.Pong()
	assert.True(t, c.Info().Alive)

	_, terminated := hb.Sweep()
	assert.Zero(t, terminated)
	assert.True(t, h.Registered(c))
}

func TestMarkPendingReturnsPrevious(t *testing.T) {
	h := newTestHub(t)
	c, _ := registerClient(t, h, "c1", "u1")

	assert.True(t, h.MarkPending(c))
	assert.False(t, h.MarkPending(c))
	h.MarkAlive(c)
	assert.True(t, h.MarkPending(c))
}

func TestHeartbeatRunStopsWithContext(t *testing.T) {
	h := newTestHub(t)
	hb := hub.NewHeartbeat(h, 10*time.Millisecond, zerolog.Nop())
	c, _ := registerClient(t, h, "c1", "u1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hb.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return !h.Registered(c) }, waitFor, tick)
	cancel()
	<-done
}
