// Package store persists users and chat history behind a pluggable driver.
package store

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when a lookup matches nothing.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique field already exists.
	ErrDuplicate = errors.New("duplicate")
)

// Driver is implemented by each database backend.
type Driver interface {
	Migrate(ctx context.Context) error
	Close() error

	CreateUser(ctx context.Context, create *CreateUser) (*User, error)
	// GetUser returns nil, nil when nothing matches.
	GetUser(ctx context.Context, find *FindUser) (*User, error)

	CreateMessage(ctx context.Context, create *CreateMessage) (*Message, error)
	ListMessages(ctx context.Context, find *FindMessage) ([]*Message, error)
	DeleteMessages(ctx context.Context, userID int64) error
}

// Store is the storage facade used by the rest of the relay.
type Store struct {
	driver Driver
}

// New creates a store over driver.
func New(driver Driver) *Store {
	return &Store{driver: driver}
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	return errors.Wrap(s.driver.Migrate(ctx), "migrate")
}

// Close releases the driver.
func (s *Store) Close() error {
	return s.driver.Close()
}

// CreateUser inserts a user. The email is normalized to lower case.
func (s *Store) CreateUser(ctx context.Context, create *CreateUser) (*User, error) {
	create.Email = normalizeEmail(create.Email)
	if create.Email == "" {
		return nil, errors.New("email is required")
	}
	if create.PasswordHash == "" {
		return nil, errors.New("password hash is required")
	}
	user, err := s.driver.CreateUser(ctx, create)
	if err != nil {
		if errors.Cause(err) == ErrDuplicate {
			return nil, ErrDuplicate
		}
		return nil, errors.Wrap(err, "create user")
	}
	return user, nil
}

// GetUser returns the first user matching find, or ErrNotFound.
func (s *Store) GetUser(ctx context.Context, find *FindUser) (*User, error) {
	if find.Email != nil {
		email := normalizeEmail(*find.Email)
		find.Email = &email
	}
	user, err := s.driver.GetUser(ctx, find)
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

// CreateMessage appends a message to a user's history.
func (s *Store) CreateMessage(ctx context.Context, create *CreateMessage) (*Message, error) {
	if !create.Role.Valid() {
		return nil, errors.Errorf("invalid role %q", create.Role)
	}
	if create.UserID == 0 {
		return nil, errors.New("user id is required")
	}
	msg, err := s.driver.CreateMessage(ctx, create)
	if err != nil {
		return nil, errors.Wrap(err, "create message")
	}
	return msg, nil
}

// ListMessages returns a user's history, oldest first.
func (s *Store) ListMessages(ctx context.Context, find *FindMessage) ([]*Message, error) {
	list, err := s.driver.ListMessages(ctx, find)
	if err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	return list, nil
}

// DeleteMessages clears a user's history.
func (s *Store) DeleteMessages(ctx context.Context, userID int64) error {
	return errors.Wrap(s.driver.DeleteMessages(ctx, userID), "delete messages")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
