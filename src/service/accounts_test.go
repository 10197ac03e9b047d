package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchestra-mcp/relay/src/auth"
	"github.com/orchestra-mcp/relay/src/service"
	"github.com/orchestra-mcp/relay/src/types"
)

type handshake map[string]string

func (h handshake) Query(key string) string  { return h[key] }
func (h handshake) Header(key string) string { return h["header:"+key] }

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Register(ctx, "Alice@Example.com", "secret123", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "bearer", sess.Type)
	assert.NotEmpty(t, sess.Value)
	assert.Equal(t, "alice@example.com", sess.User.Email)
	assert.Equal(t, "Alice", sess.User.FullName)

	login, err := svc.Login(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, sess.User, login.User)

	_, err = svc.Login(ctx, "alice@example.com", "wrong-password")
	assert.ErrorIs(t, err, auth.ErrBadCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, auth.ErrBadCredentials)
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "not-an-email", "secret123", "")
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	_, err = svc.Register(ctx, "a@b.c", "short", "")
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	register(t, svc, "a@b.c")
	_, err = svc.Register(ctx, "A@B.C", "secret123", "")
	assert.ErrorIs(t, err, service.ErrEmailTaken)
}

func TestLogoutRevokesToken(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	sess := register(t, svc, "alice@example.com")

	user, err := svc.UserFromToken(ctx, sess.Value)
	require.NoError(t, err)
	assert.Equal(t, sess.User, user)

	require.NoError(t, svc.Logout(sess.Value))
	_, err = svc.UserFromToken(ctx, sess.Value)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestAuthenticatorAdmission(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	sess := register(t, svc, "alice@example.com")
	a := svc.Authenticator()

	user, fail := a.Authenticate(ctx, handshake{"token": sess.Value})
	require.Nil(t, fail)
	assert.Equal(t, sess.User, user)

	user, fail = a.Authenticate(ctx, handshake{"header:Authorization": "Bearer " + sess.Value})
	require.Nil(t, fail)
	assert.Equal(t, sess.User.ID, user.ID)

	_, fail = a.Authenticate(ctx, handshake{})
	require.NotNil(t, fail)
	assert.Equal(t, auth.CloseMissingToken, fail.CloseCode())

	_, fail = a.Authenticate(ctx, handshake{"token": "garbage"})
	require.NotNil(t, fail)
	assert.Equal(t, auth.CloseInvalidToken, fail.CloseCode())
}

func TestAuthenticatorUnknownUser(t *testing.T) {
	tokens, err := auth.NewTokens("test-secret", 0)
	require.NoError(t, err)
	svc := newTestService(t)

	// A token for an account that does not exist in this store.
	ghost, err := tokens.Issue("4242")
	require.NoError(t, err)

	_, fail := svc.Authenticator().Authenticate(context.Background(), handshake{"token": ghost})
	require.NotNil(t, fail)
	assert.Equal(t, auth.ReasonUserNotFound, fail.Reason)
}

func TestMessageHistory(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	alice := register(t, svc, "alice@example.com").User
	bob := register(t, svc, "bob@example.com").User

	list, err := svc.Messages(ctx, alice)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	_, err = svc.SaveMessage(ctx, alice, "   ")
	assert.ErrorIs(t, err, service.ErrContentRequired)

	m, err := svc.SaveMessage(ctx, alice, "first")
	require.NoError(t, err)
	assert.Equal(t, "first", m.Content)
	_, err = svc.SaveMessage(ctx, bob, "bob's")
	require.NoError(t, err)

	list, err = svc.Messages(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, svc.ClearMessages(ctx, alice))
	list, err = svc.Messages(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = svc.Messages(ctx, bob)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.Messages(ctx, types.User{ID: "not-a-number"})
	assert.Error(t, err)
}

func TestIssueToken(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	alice := register(t, svc, "alice@example.com").User

	sess, err := svc.IssueToken(ctx, "alice@example.com")
	require.NoError(t, err)
	user, err := svc.UserFromToken(ctx, sess.Value)
	require.NoError(t, err)
	assert.Equal(t, alice, user)

	_, err = svc.IssueToken(ctx, "nobody@example.com")
	assert.Error(t, err)
}
