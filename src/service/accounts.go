package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/orchestra-mcp/relay/src/auth"
	"github.com/orchestra-mcp/relay/src/store"
	"github.com/orchestra-mcp/relay/src/types"
)

const minPasswordLen = 6

var (
	// ErrEmailTaken is returned when registering an existing email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidInput wraps validation failures on account payloads.
	ErrInvalidInput = errors.New("invalid input")
	// ErrContentRequired is returned when storing an empty message.
	ErrContentRequired = errors.New("content is required")
)

// Session is a signed-in user and the bearer token issued for them.
type Session struct {
	Type  string     `json:"type"`
	Value string     `json:"value"`
	User  types.User `json:"user"`
}

// Register creates an account and signs it in.
func (s *Service) Register(ctx context.Context, email, password, fullName string) (*Session, error) {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u, err := s.store.CreateUser(ctx, &store.CreateUser{
		Email:        email,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: hash,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("user_id", u.ID).Msg("user registered")
	return s.session(u)
}

// Login checks credentials and issues a new token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.store.GetUser(ctx, &store.FindUser{Email: &email})
	if errors.Is(err, store.ErrNotFound) {
		return nil, auth.ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return nil, err
	}
	return s.session(u)
}

// Logout revokes token.
func (s *Service) Logout(token string) error {
	return s.tokens.Revoke(token)
}

// UserFromToken resolves a bearer token to its user.
func (s *Service) UserFromToken(ctx context.Context, token string) (types.User, error) {
	userID, err := s.tokens.VerifyToken(ctx, token)
	if err != nil {
		return types.User{}, err
	}
	return directory{s.store}.FindUser(ctx, userID)
}

// IssueToken mints a token for an existing account without a password.
func (s *Service) IssueToken(ctx context.Context, email string) (*Session, error) {
	u, err := s.store.GetUser(ctx, &store.FindUser{Email: &email})
	if err != nil {
		return nil, err
	}
	return s.session(u)
}

func (s *Service) session(u *store.User) (*Session, error) {
	token, err := s.tokens.Issue(strconv.FormatInt(u.ID, 10))
	if err != nil {
		return nil, err
	}
	return &Session{Type: "bearer", Value: token, User: toUser(u)}, nil
}

// Messages returns a user's chat history, oldest first.
func (s *Service) Messages(ctx context.Context, user types.User) ([]*store.Message, error) {
	uid, err := parseUserID(user.ID)
	if err != nil {
		return nil, err
	}
	list, err := s.store.ListMessages(ctx, &store.FindMessage{UserID: uid})
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*store.Message{}
	}
	return list, nil
}

// SaveMessage stores a user message without starting a turn.
func (s *Service) SaveMessage(ctx context.Context, user types.User, content string) (*store.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrContentRequired
	}
	uid, err := parseUserID(user.ID)
	if err != nil {
		return nil, err
	}
	return s.store.CreateMessage(ctx, &store.CreateMessage{UserID: uid, Role: store.RoleUser, Content: content})
}

// ClearMessages deletes a user's chat history.
func (s *Service) ClearMessages(ctx context.Context, user types.User) error {
	uid, err := parseUserID(user.ID)
	if err != nil {
		return err
	}
	return s.store.DeleteMessages(ctx, uid)
}
