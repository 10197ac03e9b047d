package providers

import (
	"github.com/orchestra-mcp/relay/src/auth"
	"github.com/orchestra-mcp/relay/src/types"
)

// Compile-time interface assertions.
var (
	_ types.Conn     = (*socketConn)(nil)
	_ auth.Handshake = requestHandshake{}
)
