// Package auth admits connections by resolving a credential token to a user.
package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/orchestra-mcp/relay/src/types"
	"github.com/rs/zerolog"
)

// Reason identifies why admission was refused.
type Reason string

const (
	ReasonMissingToken Reason = "missing_token"
	ReasonInvalidToken Reason = "invalid_token"
	ReasonUserNotFound Reason = "user_not_found"
)

// WebSocket close codes sent when admission is refused. They live in the
// 4000-4999 range reserved for applications.
const (
	CloseMissingToken = 4001
	CloseInvalidToken = 4002
	CloseUserNotFound = 4003
)

// Failure is returned when a connection must be refused.
type Failure struct {
	Reason Reason
}

func (f *Failure) Error() string { return "authentication failed: " + string(f.Reason) }

// CloseCode returns the WebSocket close code for this failure.
func (f *Failure) CloseCode() int {
	switch f.Reason {
	case ReasonMissingToken:
		return CloseMissingToken
	case ReasonUserNotFound:
		return CloseUserNotFound
	default:
		return CloseInvalidToken
	}
}

// ErrInvalidToken is returned by verifiers for any token they reject.
var ErrInvalidToken = errors.New("invalid token")

// ErrUserNotFound is returned by finders when no user has the given ID.
var ErrUserNotFound = errors.New("user not found")

// TokenVerifier resolves a token to the ID of the user it was issued for.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

// UserFinder loads a user by ID.
type UserFinder interface {
	FindUser(ctx context.Context, id string) (types.User, error)
}

// Handshake exposes the parts of a connection attempt a token may travel in.
type Handshake interface {
	Query(key string) string
	Header(key string) string
}

// Authenticator validates the credential presented with a connection.
type Authenticator struct {
	tokens TokenVerifier
	users  UserFinder
	logger zerolog.Logger
}

// NewAuthenticator creates an authenticator over the given collaborators.
func NewAuthenticator(tokens TokenVerifier, users UserFinder, logger zerolog.Logger) *Authenticator {
	return &Authenticator{
		tokens: tokens,
		users:  users,
		logger: logger.With().Str("component", "auth").Logger(),
	}
}

// Authenticate resolves the handshake's token to a user. It runs exactly
// once per connection attempt and never retries.
func (a *Authenticator) Authenticate(ctx context.Context, hs Handshake) (types.User, *Failure) {
	token := TokenFrom(hs)
	if token == "" {
		a.logger.Warn().Msg("auth failed: token missing")
		return types.User{}, &Failure{Reason: ReasonMissingToken}
	}

	userID, err := a.tokens.VerifyToken(ctx, token)
	if err != nil {
		a.logger.Warn().Err(err).Msg("auth failed: invalid token")
		return types.User{}, &Failure{Reason: ReasonInvalidToken}
	}

	user, err := a.users.FindUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			a.logger.Warn().Str("user_id", userID).Msg("auth failed: user not found")
			return types.User{}, &Failure{Reason: ReasonUserNotFound}
		}
		a.logger.Error().Err(err).Str("user_id", userID).Msg("auth failed: user lookup")
		return types.User{}, &Failure{Reason: ReasonInvalidToken}
	}
	return user, nil
}

// TokenFrom extracts a token from the "token" query parameter or a bearer
// Authorization header, in that order.
func TokenFrom(hs Handshake) string {
	if token := strings.TrimSpace(hs.Query("token")); token != "" {
		return token
	}
	return BearerToken(hs.Header("Authorization"))
}

// BearerToken returns the token of an "Authorization: Bearer x" value.
func BearerToken(authz string) string {
	authz = strings.TrimSpace(authz)
	if len(authz) > len("bearer ") && strings.EqualFold(authz[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return ""
}
