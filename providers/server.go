// Package providers exposes the relay over HTTP: the WebSocket endpoint and
// the SSE streams run as raw fasthttp handlers, everything else is served
// by a Fiber app.
package providers

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/errgroup"

	"github.com/orchestra-mcp/relay/config"
	"github.com/orchestra-mcp/relay/src/hub"
	"github.com/orchestra-mcp/relay/src/service"
)

const (
	pathWS        = "/ws"
	pathSSE       = "/api/sse/standard"
	pathStream    = "/api/stream"
	maxFrameBytes = 64 << 10
)

// Server is the relay's HTTP front end.
type Server struct {
	cfg       *config.RelayConfig
	svc       *service.Service
	app       *fiber.App
	http      *fasthttp.Server
	upgrader  websocket.FastHTTPUpgrader
	heartbeat *hub.Heartbeat
	logger    zerolog.Logger

	// base is the parent of every request scoped context.
	base context.Context
}

// NewServer builds the HTTP front end for svc.
func NewServer(cfg *config.RelayConfig, svc *service.Service, logger zerolog.Logger) *Server {
	s := &Server{
		cfg: cfg,
		svc: svc,
		upgrader: websocket.FastHTTPUpgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     func(*fasthttp.RequestCtx) bool { return true },
		},
		heartbeat: hub.NewHeartbeat(svc.Hub(), cfg.PingInterval, logger),
		logger:    logger.With().Str("component", "server").Logger(),
		base:      context.Background(),
	}

	s.app = fiber.New(fiber.Config{AppName: "relay"})
	s.registerRoutes(s.app)

	s.http = &fasthttp.Server{
		Handler:           s.Handler(),
		Name:              "relay",
		ReadBufferSize:    4096,
		StreamRequestBody: false,
		Logger:            fasthttpLogger{s.logger},
	}
	return s
}

// Handler routes WebSocket and SSE paths to their raw handlers and the rest
// to Fiber.
func (s *Server) Handler() fasthttp.RequestHandler {
	fiberHandler := s.app.Handler()
	return func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case pathWS:
			s.handleWS(ctx)
		case pathSSE:
			s.handleStandardSSE(ctx)
		case pathStream:
			s.handleBearerStream(ctx)
		default:
			fiberHandler(ctx)
		}
	}
}

// Start listens on the configured address until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln and runs the heartbeat until ctx is
// cancelled or the listener fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	s.base = gctx

	g.Go(func() error {
		s.heartbeat.Run(gctx)
		return nil
	})
	g.Go(func() error {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("relay listening")
		return s.http.Serve(ln)
	})
	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Server) shutdown() error {
	s.logger.Info().Msg("shutting down")
	// Turns and sockets go first so SSE responses can finish.
	s.svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.ShutdownWithContext(ctx)
}

// requestContext returns a context for one request's store and token work.
func (s *Server) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.base, 10*time.Second)
}

type fasthttpLogger struct {
	logger zerolog.Logger
}

func (l fasthttpLogger) Printf(format string, args ...any) {
	l.logger.Debug().Msgf(format, args...)
}
