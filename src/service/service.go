// Package service wires the hub, the relay and the store into the chat
// relay's high-level API.
package service

import (
	"github.com/rs/zerolog"

	"github.com/orchestra-mcp/relay/src/auth"
	"github.com/orchestra-mcp/relay/src/generator"
	"github.com/orchestra-mcp/relay/src/hub"
	"github.com/orchestra-mcp/relay/src/relay"
	"github.com/orchestra-mcp/relay/src/store"
	"github.com/orchestra-mcp/relay/src/types"
)

// WelcomeMessage is sent in the connected event after admission.
const WelcomeMessage = "connected"

// Service provides the relay's connection and account API.
type Service struct {
	hub    *hub.Hub
	relay  *relay.Relay
	store  *store.Store
	tokens *auth.Tokens
	auth   *auth.Authenticator
	logger zerolog.Logger
}

// New builds a service around h and installs its event handlers. opts
// configure the turn relay.
func New(h *hub.Hub, st *store.Store, tokens *auth.Tokens, gen generator.Generator, logger zerolog.Logger, opts ...relay.Option) *Service {
	s := &Service{
		hub:    h,
		store:  st,
		tokens: tokens,
		logger: logger.With().Str("component", "service").Logger(),
	}
	s.relay = relay.New(h, history{st}, gen, logger, opts...)
	s.auth = auth.NewAuthenticator(tokens, directory{st}, logger)

	h.OnConnection(s.welcome)
	h.OnDisconnection(s.farewell)
	h.OnMessage(s.handle)
	return s
}

// Hub returns the underlying hub.
func (s *Service) Hub() *hub.Hub { return s.hub }

// Relay returns the turn relay.
func (s *Service) Relay() *relay.Relay { return s.relay }

// Authenticator returns the connection authenticator.
func (s *Service) Authenticator() *auth.Authenticator { return s.auth }

// Close stops in-flight turns and drops every connection.
func (s *Service) Close() {
	s.relay.Close()
	s.hub.Close()
}

// welcome puts a new connection in its user's room and acknowledges it.
func (s *Service) welcome(c *hub.Client) {
	s.hub.JoinRoom(c, c.User.Room())
	s.hub.Send(c, types.Connected{Message: WelcomeMessage})
}

func (s *Service) farewell(c *hub.Client) {
	s.logger.Debug().
		Str("client_id", c.ID).
		Str("user_id", c.User.ID).
		Int("remaining", len(s.hub.LookupByUser(c.User.ID))).
		Msg("device disconnected")
}
