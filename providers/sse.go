package providers

import (
	"bufio"
	"encoding/json"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/orchestra-mcp/relay/src/auth"
	"github.com/orchestra-mcp/relay/src/relay"
	"github.com/orchestra-mcp/relay/src/types"
)

// sseStyle selects the framing of an event stream.
type sseStyle int

const (
	// styleStandard suits EventSource: a connected comment first and
	// named done and error events.
	styleStandard sseStyle = iota
	// styleBearer ends with a bare [DONE] data line.
	styleBearer
)

// handleStandardSSE serves EventSource clients, which cannot set headers,
// so the token travels in the query string.
func (s *Server) handleStandardSSE(ctx *fasthttp.RequestCtx) {
	reqCtx, cancel := s.requestContext()
	user, failure := s.svc.Authenticator().Authenticate(reqCtx, requestHandshake{ctx})
	cancel()
	if failure != nil {
		writeJSONError(ctx, fasthttp.StatusUnauthorized, failureMessage(failure))
		return
	}
	s.stream(ctx, user, string(ctx.QueryArgs().Peek("content")), styleStandard)
}

// handleBearerStream serves fetch based clients that send an
// Authorization header.
func (s *Server) handleBearerStream(ctx *fasthttp.RequestCtx) {
	token := auth.BearerToken(string(ctx.Request.Header.Peek("Authorization")))
	if token == "" {
		writeJSONError(ctx, fasthttp.StatusUnauthorized, "Token is required")
		return
	}
	reqCtx, cancel := s.requestContext()
	user, err := s.svc.UserFromToken(reqCtx, token)
	cancel()
	if err != nil {
		writeJSONError(ctx, fasthttp.StatusUnauthorized, "Invalid token")
		return
	}
	s.stream(ctx, user, string(ctx.QueryArgs().Peek("content")), styleBearer)
}

// sseBuffer is how many events a stream may fall behind its turn before
// the stream is cut.
const sseBuffer = 256

// sseSink hands a turn's events to one response writer. push never blocks
// the turn worker: once the writer is gone or the buffer is full, the
// stream is dropped and later events are discarded.
type sseSink struct {
	events  chan types.Outbound
	gone    chan struct{}
	dropped bool // touched only by the turn worker
}

func newSSESink(size int) *sseSink {
	return &sseSink{
		events: make(chan types.Outbound, size),
		gone:   make(chan struct{}),
	}
}

func (s *sseSink) push(ev types.Outbound) bool {
	if s.dropped {
		return false
	}
	select {
	case <-s.gone:
		s.dropped = true
		return false
	default:
	}
	select {
	case s.events <- ev:
		return true
	default:
		s.dropped = true
		close(s.events)
		return false
	}
}

// leave tells push that the writer stopped reading.
func (s *sseSink) leave() { close(s.gone) }

// stream runs a turn for user and writes its events to the response. The
// turn keeps running if the client goes away or falls behind.
func (s *Server) stream(ctx *fasthttp.RequestCtx, user types.User, content string, style sseStyle) {
	ctx.SetContentType("text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("Connection", "keep-alive")
	ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")

	logger := s.logger.With().Str("user_id", user.ID).Logger()
	sink := newSSESink(sseBuffer)
	s.svc.Relay().Submit(relay.Turn{
		User:    user,
		Content: content,
		Tap:     func(ev types.Outbound) { sink.push(ev) },
	})

	conn := ctx.Conn()
	writeTimeout := s.cfg.WriteTimeout
	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		defer sink.leave()
		if conn != nil && writeTimeout > 0 {
			defer conn.SetWriteDeadline(time.Time{})
		}

		// Each frame gets its own deadline so a reader that stalls is cut
		// off without capping how long a healthy stream may run.
		write := func(frame string) error {
			if conn != nil && writeTimeout > 0 {
				if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
					return err
				}
			}
			if _, err := w.WriteString(frame); err != nil {
				return err
			}
			return w.Flush()
		}

		if style == styleStandard {
			if err := write(": connected\n\n"); err != nil {
				return
			}
		}
		// Every turn ends with a done or error event unless the sink
		// overflowed and closed the channel.
		for ev := range sink.events {
			frame, final := sseFrame(ev, style)
			if frame == "" {
				continue
			}
			if err := write(frame); err != nil {
				logger.Debug().Err(err).Msg("sse client went away")
				return
			}
			if final {
				return
			}
		}
		logger.Warn().Msg("sse client fell behind, stream cut")
	})
}

// sseFrame renders ev for the given style. It reports whether ev ends the
// stream. Events with no SSE form render as "".
func sseFrame(ev types.Outbound, style sseStyle) (frame string, final bool) {
	switch ev := ev.(type) {
	case types.ServerMessage:
		switch ev.Type {
		case types.SubtypeChunk:
			data, _ := json.Marshal(map[string]string{"content": ev.Content})
			return "data: " + string(data) + "\n\n", false
		case types.SubtypeDone:
			if style == styleStandard {
				return "event: done\ndata: [DONE]\n\n", true
			}
			return "data: [DONE]\n\n", true
		}
	case types.Error:
		data, _ := json.Marshal(ev)
		return "event: error\ndata: " + string(data) + "\n\n", true
	}
	return "", false
}

func failureMessage(f *auth.Failure) string {
	switch f.Reason {
	case auth.ReasonMissingToken:
		return "Token is required"
	case auth.ReasonUserNotFound:
		return "User not found"
	default:
		return "Invalid token"
	}
}

func writeJSONError(ctx *fasthttp.RequestCtx, status int, message string) {
	body, _ := json.Marshal(map[string]string{"message": message})
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}
