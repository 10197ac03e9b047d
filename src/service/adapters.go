package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	"github.com/orchestra-mcp/relay/src/auth"
	"github.com/orchestra-mcp/relay/src/store"
	"github.com/orchestra-mcp/relay/src/types"
)

// directory resolves token subjects to users for the authenticator.
type directory struct {
	store *store.Store
}

func (d directory) FindUser(ctx context.Context, id string) (types.User, error) {
	uid, err := parseUserID(id)
	if err != nil {
		return types.User{}, auth.ErrUserNotFound
	}
	u, err := d.store.GetUser(ctx, &store.FindUser{ID: &uid})
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, auth.ErrUserNotFound
	}
	if err != nil {
		return types.User{}, err
	}
	return toUser(u), nil
}

// history appends turn messages to the store.
type history struct {
	store *store.Store
}

func (h history) Append(ctx context.Context, userID string, role store.Role, content string) (int64, error) {
	uid, err := parseUserID(userID)
	if err != nil {
		return 0, err
	}
	m, err := h.store.CreateMessage(ctx, &store.CreateMessage{UserID: uid, Role: role, Content: content})
	if err != nil {
		return 0, err
	}
	return m.ID, nil
}

func parseUserID(id string) (int64, error) {
	uid, err := strconv.ParseInt(id, 10, 64)
	if err != nil || uid <= 0 {
		return 0, fmt.Errorf("invalid user id %q", id)
	}
	return uid, nil
}

func toUser(u *store.User) types.User {
	return types.User{
		ID:       strconv.FormatInt(u.ID, 10),
		Email:    u.Email,
		FullName: u.FullName,
	}
}
