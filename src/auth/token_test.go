package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokensRoundTrip(t *testing.T) {
	tokens, err := NewTokens("s3cret", time.Hour)
	require.NoError(t, err)

	token, err := tokens.Issue("42")
	require.NoError(t, err)

	userID, err := tokens.VerifyToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "42", userID)
}

func TestTokensRejectOtherSecret(t *testing.T) {
	a, err := NewTokens("one", time.Hour)
	require.NoError(t, err)
	b, err := NewTokens("two", time.Hour)
	require.NoError(t, err)

	token, err := a.Issue("42")
	require.NoError(t, err)

	_, err = b.VerifyToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokensExpire(t *testing.T) {
	tokens, err := NewTokens("s3cret", time.Minute)
	require.NoError(t, err)
	base := time.Now()
	tokens.now = func() time.Time { return base }

	token, err := tokens.Issue("42")
	require.NoError(t, err)

	tokens.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = tokens.VerifyToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokensRevoke(t *testing.T) {
	tokens, err := NewTokens("s3cret", time.Hour)
	require.NoError(t, err)

	token, err := tokens.Issue("42")
	require.NoError(t, err)
	other, err := tokens.Issue("42")
	require.NoError(t, err)

	require.NoError(t, tokens.Revoke(token))

	_, err = tokens.VerifyToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = tokens.VerifyToken(context.Background(), other)
	assert.NoError(t, err)
}

func TestNewTokensRequiresSecret(t *testing.T) {
	_, err := NewTokens("  ", time.Hour)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)

	assert.NoError(t, CheckPassword(hash, "hunter2"))
	assert.ErrorIs(t, CheckPassword(hash, "hunter3"), ErrBadCredentials)
}
