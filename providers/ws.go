package providers

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/orchestra-mcp/relay/src/hub"
)

// handleWS authenticates the handshake and upgrades it. Refused
// connections are upgraded only to carry the close code and reason.
func (s *Server) handleWS(ctx *fasthttp.RequestCtx) {
	if !websocket.FastHTTPIsWebSocketUpgrade(ctx) {
		ctx.SetStatusCode(fasthttp.StatusUpgradeRequired)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"error":"upgrade_required","message":"WebSocket upgrade required"}`)
		return
	}

	h := s.svc.Hub()
	if limit := s.cfg.MaxConnections; limit > 0 && h.ClientCount() >= limit {
		s.logger.Warn().Int("max", limit).Msg("connection limit reached")
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"error":"too_many_connections","message":"connection limit reached"}`)
		return
	}

	reqCtx, cancel := s.requestContext()
	user, failure := s.svc.Authenticator().Authenticate(reqCtx, requestHandshake{ctx})
	cancel()

	userAgent := string(ctx.UserAgent())
	writeTimeout := s.cfg.WriteTimeout

	err := s.upgrader.Upgrade(ctx, func(ws *websocket.Conn) {
		conn := newSocketConn(ws, writeTimeout)
		if failure != nil {
			_ = conn.CloseWith(failure.CloseCode(), string(failure.Reason))
			return
		}

		client := hub.NewClient(uuid.NewString(), user, conn, h)
		client.SetUserAgent(userAgent)
		h.Register(client)
		go client.WritePump()
		client.ReadPump()
		// fasthttp releases the hijacked conn when this returns.
		<-client.Stopped()
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade failed")
	}
}

// requestHandshake reads credentials from a fasthttp request.
type requestHandshake struct {
	ctx *fasthttp.RequestCtx
}

func (r requestHandshake) Query(key string) string {
	return string(r.ctx.QueryArgs().Peek(key))
}

func (r requestHandshake) Header(key string) string {
	return string(r.ctx.Request.Header.Peek(key))
}

// errConnClosed is returned by writes after Close.
var errConnClosed = errors.New("connection closed")

// socketConn wraps fasthttp/websocket.Conn to satisfy types.Conn. Writes
// and pings after Close fail without touching the transport.
type socketConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed atomic.Bool
}

func newSocketConn(conn *websocket.Conn, writeTimeout time.Duration) *socketConn {
	conn.SetReadLimit(maxFrameBytes)
	return &socketConn{conn: conn, writeTimeout: writeTimeout}
}

func (s *socketConn) deadline() time.Time {
	if s.writeTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(s.writeTimeout)
}

func (s *socketConn) WriteJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return errConnClosed
	}
	if err := s.conn.SetWriteDeadline(s.deadline()); err != nil {
		return err
	}
	return s.conn.WriteJSON(v)
}

func (s *socketConn) ReadMessage() ([]byte, error) {
	_, raw, err := s.conn.ReadMessage()
	return raw, err
}

func (s *socketConn) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return errConnClosed
	}
	return s.conn.WriteControl(websocket.PingMessage, nil, s.deadline())
}

func (s *socketConn) SetPongHandler(fn func()) {
	s.conn.SetPongHandler(func(string) error {
		fn()
		return nil
	})
}

func (s *socketConn) CloseWith(code int, reason string) error {
	s.mu.Lock()
	if !s.closed.Load() {
		msg := websocket.FormatCloseMessage(code, reason)
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, s.deadline())
	}
	s.mu.Unlock()
	return s.Close()
}

// Close closes the transport once, which fails any write in flight, then
// waits for that write to return.
func (s *socketConn) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.conn.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	return err
}
