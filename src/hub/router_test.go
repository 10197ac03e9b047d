package hub_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/orchestra-mcp/relay/src/hub"
	"github.com/orchestra-mcp/relay/src/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMalformedFrameAnswersSenderOnly(t *testing.T) {
	h := newTestHub(t)

	var mu sync.Mutex
	var got []string
	h.OnMessage(func(c *hub.Client, ev types.Inbound) error {
		mu.Lock()
		defer mu.Unlock()
		if msg, ok := ev.(types.ClientMessage); ok {
			got = append(got, msg.Content)
		}
		return nil
	})

	sender, conn := registerClient(t, h, "sender", "u1")
	_, peer := registerClient(t, h, "peer", "u1")

	conn.Deliver("not-json")
	require.Eventually(t, func() bool { return len(conn.Errors()) == 1 }, waitFor, tick)
	assert.Equal(t, "malformed frame", conn.Errors()[0].Message)
	assert.Empty(t, peer.Written())
	assert.True(t, h.Registered(sender))

	conn.Deliver(`{"event":"client_message","data":{"content":"still here"}}`)
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0] == "still here"
	}, waitFor, tick)
}

func TestHandlersRunInOrderAndFailuresAreIsolated(t *testing.T) {
	h := newTestHub(t)

	var mu sync.Mutex
	var order []string
	record := func(name string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, name)
	}

	h.OnMessage(func(c *hub.Client, ev types.Inbound) error {
		record("first")
		panic("boom")
	})
	h.OnMessage(func(c *hub.Client, ev types.Inbound) error {
		record("second")
		return errors.New("handler failed")
	})
	h.OnMessage(func(c *hub.Client, ev types.Inbound) error {
		record("third")
		return nil
	})

	c, conn := registerClient(t, h, "c1", "u1")
	conn.Deliver(`{"event":"typing","data":{}}`)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, waitFor, tick)
	assert.Equal(t, []string{"first", "second", "third"}, order)
	assert.True(t, h.Registered(c))
	assert.False(t, conn.IsClosed())
	assert.Empty(t, conn.Errors(), "handler failures are not reported to the client")
}

func TestUnknownEventReachesHandlers(t *testing.T) {
	h := newTestHub(t)

	seen := make(chan types.Inbound, 1)
	h.OnMessage(func(c *hub.Client, ev types.Inbound) error {
		seen <- ev
		return nil
	})

	_, conn := registerClient(t, h, "c1", "u1")
	conn.Deliver(`{"event":"presence","data":{"status":"away"}}`)

	ev := <-seen
	unknown, ok := ev.(types.Unknown)
	require.True(t, ok)
	assert.Equal(t, "presence", unknown.Event)
}
