package core

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	// every pooled connection would otherwise get its own empty database
	db.SetMaxOpenConns(1)

	require.NoError(t, InitSQLiteSchema(context.Background(), db))

	return db
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func TestSQLiteRepository_Events(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	db := newTestSQLite(t)
	repo := NewSQLiteRepository(db, fixedClock(now))

	later, err := repo.SaveEvent(ctx, &Event{Title: "Later", EventTime: now.Add(2 * time.Hour), UserId: "user-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, later.Id)
	assert.Equal(t, now, later.CreatedAt)

	sooner, err := repo.SaveEvent(ctx, &Event{Title: "Sooner", Description: "first", EventTime: now.Add(time.Hour), UserId: "user-1"})
	require.NoError(t, err)

	past, err := repo.SaveEvent(ctx, &Event{Title: "Past", EventTime: now.Add(-time.Hour), UserId: "user-1"})
	require.NoError(t, err)

	_, err = repo.SaveEvent(ctx, &Event{Title: "Other", EventTime: now, UserId: "user-2"})
	require.NoError(t, err)

	t.Run("get by id", func(t *testing.T) {
		got, err := repo.GetEventById(ctx, sooner.Id)
		require.NoError(t, err)
		assert.Equal(t, sooner, got)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := repo.GetEventById(ctx, "missing")
		require.ErrorIs(t, err, ErrEventNotFound)
	})

	t.Run("list ascending by event time", func(t *testing.T) {
		got, err := repo.ListEventsForUser(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []string{past.Id, sooner.Id, later.Id}, []string{got[0].Id, got[1].Id, got[2].Id})
	})

	t.Run("list upcoming", func(t *testing.T) {
		got, err := repo.ListUpcomingEvents(ctx, "user-1", now)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, sooner.Id, got[0].Id)
	})

	t.Run("list unknown user", func(t *testing.T) {
		got, err := repo.ListEventsForUser(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestSQLiteRepository_UpdateAndDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	metrics, reader := newRecordingDBMetrics("sqlite")
	repo := NewSQLiteRepository(newTestSQLite(t), fixedClock(now)).(*sqliteRepository)
	repo.metrics = metrics

	saved, err := repo.SaveEvent(ctx, &Event{Title: "Draft", EventTime: now, UserId: "user-1"})
	require.NoError(t, err)

	moved := now.Add(30 * time.Minute)
	updated, err := repo.UpdateEvent(ctx, &Event{Id: saved.Id, Title: "Final", Description: "moved", EventTime: moved})
	require.NoError(t, err)
	assert.Equal(t, "Final", updated.Title)
	assert.Equal(t, "moved", updated.Description)
	assert.Equal(t, moved, updated.EventTime)
	assert.Equal(t, "user-1", updated.UserId)

	_, err = repo.UpdateEvent(ctx, &Event{Id: "missing", Title: "x", EventTime: now})
	require.ErrorIs(t, err, ErrEventNotFound)

	require.NoError(t, repo.DeleteEvent(ctx, saved.Id))
	require.ErrorIs(t, repo.DeleteEvent(ctx, saved.Id), ErrEventNotFound)

	// the two misses count as failed queries
	assert.Equal(t, int64(5), counterTotal(t, reader, "db.query.total"))
	assert.Equal(t, int64(2), counterTotal(t, reader, "db.query.errors.total"))
}

func TestSQLiteRepository_EventTimeKeepsInstant(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewSQLiteRepository(newTestSQLite(t), fixedClock(time.Now()))

	zone := time.FixedZone("UTC+3", 3*60*60)
	at := time.Date(2024, 1, 1, 13, 0, 0, 0, zone)

	saved, err := repo.SaveEvent(ctx, &Event{Title: "Zoned", EventTime: at, UserId: "user-1"})
	require.NoError(t, err)

	got, err := repo.GetEventById(ctx, saved.Id)
	require.NoError(t, err)
	assert.True(t, at.Equal(got.EventTime))
}

func TestSQLiteUserRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	users := NewSQLiteUserRepository(newTestSQLite(t), fixedClock(now))

	alice, err := users.SaveUser(ctx, &User{Username: "alice", PasswordHash: "hash-a"})
	require.NoError(t, err)
	assert.NotEmpty(t, alice.Id)

	_, err = users.SaveUser(ctx, &User{Username: "alice", PasswordHash: "hash-b"})
	require.ErrorIs(t, err, ErrUsernameTaken)

	_, err = users.SaveUser(ctx, &User{Username: "bob", PasswordHash: "hash-b"})
	require.NoError(t, err)

	byId, err := users.GetUserById(ctx, alice.Id)
	require.NoError(t, err)
	assert.Equal(t, alice, byId)

	byName, err := users.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "hash-a", byName.PasswordHash)

	_, err = users.GetUserByUsername(ctx, "carol")
	require.ErrorIs(t, err, ErrUserNotFound)

	all, err := users.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
