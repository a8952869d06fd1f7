package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestDB(t *testing.T, opts ...Option) *DB {
	t.Helper()

	opts = append([]Option{withBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} })}, opts...)
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func TestOpenRunsMigrations(t *testing.T) {
	db := newTestDB(t)

	for _, table := range []string{"feeds", "processed_entries", "paywall_hits", "articles", "tags", "article_tags"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, "table %s", table)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "press.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestRetryOnLockedError(t *testing.T) {
	db := newTestDB(t)

	attempts := 0
	err := db.retry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryGivesUpAfterMaxTries(t *testing.T) {
	db := newTestDB(t, WithLockRetries(4))

	attempts := 0
	err := db.retry(context.Background(), func() error {
		attempts++
		return errors.New("database is locked")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorageBusy)
	assert.Equal(t, 4, attempts)
}

func TestRetryDoesNotRetryOtherErrors(t *testing.T) {
	db := newTestDB(t)
	boom := errors.New("constraint failed")

	attempts := 0
	err := db.retry(context.Background(), func() error {
		attempts++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrStorageBusy)
	assert.Equal(t, 1, attempts)
}
