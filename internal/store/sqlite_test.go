package store_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isdelr/ender-auth/internal/database"
	"github.com/isdelr/ender-auth/internal/models"
	"github.com/isdelr/ender-auth/internal/store"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func TestSQLiteUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := store.NewSQLiteUserRepository(newTestDB(t))

	alice := models.User{
		ID:           "8c5d2a6e-1111-4c1e-9a55-000000000001",
		Username:     "alice",
		PasswordHash: "$2a$04$hash",
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.Create(ctx, alice))

	t.Run("get by username", func(t *testing.T) {
		got, err := repo.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, got.ID)
		assert.Equal(t, alice.PasswordHash, got.PasswordHash)
		assert.True(t, alice.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("get by id", func(t *testing.T) {
		got, err := repo.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)
	})

	t.Run("duplicate username", func(t *testing.T) {
		dup := alice
		dup.ID = "8c5d2a6e-1111-4c1e-9a55-000000000002"
		err := repo.Create(ctx, dup)
		assert.ErrorIs(t, err, store.ErrDuplicate)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := repo.GetByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, store.ErrNotFound)

		_, err = repo.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("canceled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := repo.GetByUsername(cctx, "alice")
		require.Error(t, err)
		assert.NotErrorIs(t, err, store.ErrNotFound)
	})
}

func TestSQLiteEventRepository(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := store.NewSQLiteUserRepository(db)
	events := store.NewSQLiteEventRepository(db)

	userID := "8c5d2a6e-1111-4c1e-9a55-000000000003"
	require.NoError(t, users.Create(ctx, models.User{
		ID: userID, Username: "carol", PasswordHash: "h", CreatedAt: time.Now(),
	}))

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, events.Create(ctx, models.Event{
		ID: "e1", Type: models.EventUserRegister, Level: "info", Message: "registered",
		UserID: &userID, CreatedAt: base,
	}))
	require.NoError(t, events.Create(ctx, models.Event{
		ID: "e2", Type: models.EventUserLoginFail, Level: "warn", Message: "failed",
		CreatedAt: base.Add(time.Second),
	}))

	otherID := "user-2"
	require.NoError(t, users.Create(ctx, models.User{
		ID: otherID, Username: "dave", PasswordHash: "h", CreatedAt: time.Now(),
	}))
	require.NoError(t, events.Create(ctx, models.Event{
		ID: "e3", Type: models.EventUserLoginSuccess, Level: "info", Message: "logged in",
		UserID: &otherID, CreatedAt: base.Add(2 * time.Second),
	}))
	require.NoError(t, events.Create(ctx, models.Event{
		ID: "e4", Type: models.EventUserLoginSuccess, Level: "info", Message: "logged in",
		UserID: &userID, CreatedAt: base.Add(3 * time.Second),
	}))

	// Only carol's own events come back; unattached and foreign ones do not.
	got, err := events.Recent(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e4", got[0].ID)
	assert.Equal(t, "e1", got[1].ID)
	for _, e := range got {
		require.NotNil(t, e.UserID)
		assert.Equal(t, userID, *e.UserID)
	}

	limited, err := events.Recent(ctx, userID, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "e4", limited[0].ID)

	none, err := events.Recent(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
