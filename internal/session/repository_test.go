package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"smart-shopping-list/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *SQLRepository {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLRepository(db.SQL)
}

func TestSQLRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("EmptyLoadsNil", func(t *testing.T) {
		repo := newTestRepository(t)
		got, err := repo.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("SaveReplacesSingleSlot", func(t *testing.T) {
		repo := newTestRepository(t)
		first := Tokens{
			AccessToken:  "at1",
			RefreshToken: "rt1",
			ExpiresAt:    time.Date(2024, 6, 5, 13, 0, 0, 0, time.UTC),
			User:         testUser,
		}
		require.NoError(t, repo.Save(ctx, first))

		second := first
		second.AccessToken = "at2"
		second.ExpiresAt = first.ExpiresAt.Add(time.Hour)
		require.NoError(t, repo.Save(ctx, second))

		got, err := repo.Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "at2", got.AccessToken)
		assert.Equal(t, "rt1", got.RefreshToken)
		assert.Equal(t, testUser, got.User)
		assert.True(t, second.ExpiresAt.Equal(got.ExpiresAt), "got %s", got.ExpiresAt)

		var rows int
		require.NoError(t, repo.db.QueryRow(`SELECT COUNT(*) FROM auth_sessions`).Scan(&rows))
		assert.Equal(t, 1, rows)
	})

	t.Run("UnknownExpiry", func(t *testing.T) {
		repo := newTestRepository(t)
		require.NoError(t, repo.Save(ctx, Tokens{AccessToken: "at", RefreshToken: "rt", User: testUser}))

		got, err := repo.Load(ctx)
		require.NoError(t, err)
		assert.True(t, got.ExpiresAt.IsZero())
	})

	t.Run("Clear", func(t *testing.T) {
		repo := newTestRepository(t)
		require.NoError(t, repo.Save(ctx, Tokens{AccessToken: "at", RefreshToken: "rt", User: testUser}))
		require.NoError(t, repo.Clear(ctx))

		got, err := repo.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestManagerSharesLoginThroughRepository(t *testing.T) {
	repo := newTestRepository(t)
	auth := &fakeAuth{
		signIn: func(string, string) (*Tokens, error) { return liveTokens("at", time.Hour), nil },
		user:   func(string) (*User, error) { return &testUser, nil },
	}

	first := newTestManager(auth, repo)
	_, err := first.SignIn(context.Background(), "ana@example.com", "secret1")
	require.NoError(t, err)
	first.Close()

	second := newTestManager(auth, repo)
	defer second.Close()
	require.NoError(t, second.Initialize(context.Background()))
	assert.Equal(t, "user-1", second.UserID())
	assert.Equal(t, "at", second.AccessToken())
}
