// Package storetest holds a behavioural suite every store driver must pass.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchestra-mcp/relay/src/store"
)

// Run exercises driver through the Store facade. The driver must start
// from an empty database.
func Run(t *testing.T, driver store.Driver) {
	t.Helper()
	ctx := context.Background()
	s := store.New(driver)
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx), "migrate is idempotent")

	t.Run("CreateAndGetUser", func(t *testing.T) {
		u, err := s.CreateUser(ctx, &store.CreateUser{
			Email:        " Alice@Example.com ",
			FullName:     "Alice",
			PasswordHash: "hash",
		})
		require.NoError(t, err)
		assert.NotZero(t, u.ID)
		assert.Equal(t, "alice@example.com", u.Email)

		byID, err := s.GetUser(ctx, &store.FindUser{ID: &u.ID})
		require.NoError(t, err)
		assert.Equal(t, u.Email, byID.Email)
		assert.Equal(t, "hash", byID.PasswordHash)

		email := "ALICE@example.com"
		byEmail, err := s.GetUser(ctx, &store.FindUser{Email: &email})
		require.NoError(t, err)
		assert.Equal(t, u.ID, byEmail.ID)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		_, err := s.CreateUser(ctx, &store.CreateUser{Email: "dup@example.com", PasswordHash: "h"})
		require.NoError(t, err)
		_, err = s.CreateUser(ctx, &store.CreateUser{Email: "DUP@example.com", PasswordHash: "h"})
		assert.ErrorIs(t, err, store.ErrDuplicate)
	})

	t.Run("MissingUser", func(t *testing.T) {
		id := int64(987654)
		_, err := s.GetUser(ctx, &store.FindUser{ID: &id})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("MessagesInOrder", func(t *testing.T) {
		u, err := s.CreateUser(ctx, &store.CreateUser{Email: "history@example.com", PasswordHash: "h"})
		require.NoError(t, err)
		other, err := s.CreateUser(ctx, &store.CreateUser{Email: "other@example.com", PasswordHash: "h"})
		require.NoError(t, err)

		var lastID int64
		for i := 0; i < 5; i++ {
			role := store.RoleUser
			if i%2 == 1 {
				role = store.RoleAssistant
			}
			m, err := s.CreateMessage(ctx, &store.CreateMessage{UserID: u.ID, Role: role, Content: fmt.Sprint(i)})
			require.NoError(t, err)
			assert.Greater(t, m.ID, lastID, "ids increase")
			lastID = m.ID
		}
		_, err = s.CreateMessage(ctx, &store.CreateMessage{UserID: other.ID, Role: store.RoleUser, Content: "x"})
		require.NoError(t, err)

		list, err := s.ListMessages(ctx, &store.FindMessage{UserID: u.ID})
		require.NoError(t, err)
		require.Len(t, list, 5)
		for i, m := range list {
			assert.Equal(t, fmt.Sprint(i), m.Content)
			assert.Equal(t, u.ID, m.UserID)
		}
		assert.Equal(t, store.RoleAssistant, list[1].Role)

		recent, err := s.ListMessages(ctx, &store.FindMessage{UserID: u.ID, Limit: 2})
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, "3", recent[0].Content)
		assert.Equal(t, "4", recent[1].Content)

		require.NoError(t, s.DeleteMessages(ctx, u.ID))
		list, err = s.ListMessages(ctx, &store.FindMessage{UserID: u.ID})
		require.NoError(t, err)
		assert.Empty(t, list)

		list, err = s.ListMessages(ctx, &store.FindMessage{UserID: other.ID})
		require.NoError(t, err)
		assert.Len(t, list, 1, "other user's history untouched")
	})

	t.Run("RejectsInvalidRole", func(t *testing.T) {
		_, err := s.CreateMessage(ctx, &store.CreateMessage{UserID: 1, Role: "system", Content: "x"})
		assert.Error(t, err)
	})
}
