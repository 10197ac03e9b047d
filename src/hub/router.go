package hub

import (
	"fmt"

	"github.com/orchestra-mcp/relay/src/types"
)

// Handler handles one typed inbound event from a client.
type Handler func(c *Client, ev types.Inbound) error

// OnMessage registers a handler. Handlers run in registration order.
func (h *Hub) OnMessage(handler Handler) {
	h.hooks.Lock()
	defer h.hooks.Unlock()
	h.handlers = append(h.handlers, handler)
}

// Dispatch parses a raw frame and runs every handler on it. A malformed
// frame is answered with an error event and otherwise ignored.
func (h *Hub) Dispatch(c *Client, raw []byte) {
	ev, err := types.ParseInbound(raw)
	if err != nil {
		h.logger.Debug().Str("client_id", c.ID).Int("len", len(raw)).Msg("malformed frame")
		h.Send(c, types.Error{Message: types.ErrMalformedFrame.Error()})
		return
	}

	h.hooks.RLock()
	handlers := h.handlers
	h.hooks.RUnlock()

	if len(handlers) == 0 {
		h.logger.Debug().Str("event", ev.Name()).Msg("no handler")
		return
	}
	for _, handler := range handlers {
		if err := h.invoke(handler, c, ev); err != nil {
			h.logger.Error().Err(err).
				Str("client_id", c.ID).
				Str("event", ev.Name()).
				Msg("handler error")
		}
	}
}

func (h *Hub) invoke(handler Handler, c *Client, ev types.Inbound) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(c, ev)
}
