package hub

import (
	"github.com/orchestra-mcp/relay/src/types"
)

// Send delivers ev to one client. Sends to a closed client are dropped
// silently; a full queue is logged and dropped.
func (h *Hub) Send(c *Client, ev types.Outbound) {
	if c == nil {
		return
	}
	if _, full := c.enqueue(ev); full {
		h.logger.Warn().
			Str("client_id", c.ID).
			Str("event", ev.EventName()).
			Msg("send buffer full, dropping")
	}
}

// BroadcastAll sends ev to every registered client except exclude.
func (h *Hub) BroadcastAll(ev types.Outbound, exclude *Client) {
	h.mu.RLock()
	targets := collect(h.clients)
	h.mu.RUnlock()
	h.fanout(targets, ev, exclude)
}

// BroadcastRoom sends ev to every member of room except exclude.
func (h *Hub) BroadcastRoom(room string, ev types.Outbound, exclude *Client) {
	h.fanout(h.LookupByRoom(room), ev, exclude)
}

// BroadcastUser sends ev to every connection owned by userID except exclude.
func (h *Hub) BroadcastUser(userID string, ev types.Outbound, exclude *Client) {
	h.fanout(h.LookupByUser(userID), ev, exclude)
}

// fanout sends outside the registry lock; targets is a snapshot.
func (h *Hub) fanout(targets []*Client, ev types.Outbound, exclude *Client) {
	for _, c := range targets {
		if c == exclude {
			continue
		}
		h.Send(c, ev)
	}
}
