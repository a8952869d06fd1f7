package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const defaultLockRetries = 5

// ErrStorageBusy is returned when the database stayed locked through every retry.
var ErrStorageBusy = errors.New("storage is busy")

type DB struct {
	*sql.DB
	now         func() time.Time
	lockRetries uint
	newBackOff  func() backoff.BackOff
}

type Option func(*DB)

// WithClock replaces the wall clock used for timestamps and time windows.
func WithClock(now func() time.Time) Option {
	return func(db *DB) {
		db.now = now
	}
}

// WithLockRetries sets how many times a locked operation is attempted.
func WithLockRetries(tries uint) Option {
	return func(db *DB) {
		if tries > 0 {
			db.lockRetries = tries
		}
	}
}

func withBackOff(newBackOff func() backoff.BackOff) Option {
	return func(db *DB) {
		db.newBackOff = newBackOff
	}
}

// Open opens (creating if needed) the SQLite database at path and applies migrations.
func Open(path string, opts ...Option) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_time_format=sqlite&_txlock=immediate", path)

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{
		DB:          sqlDB,
		now:         time.Now,
		lockRetries: defaultLockRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(db)
	}

	version, dirty, err := RunMigrations(db)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	slog.Debug("Database ready", "path", path, "schema_version", version, "dirty", dirty)

	return db, nil
}

// Now returns the current time in UTC according to the store's clock.
func (db *DB) Now() time.Time {
	return db.now().UTC()
}

// retry runs op, retrying with exponential backoff while SQLite reports the
// database as busy or locked. Other errors are returned immediately.
func (db *DB) retry(ctx context.Context, op func() error) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := op()
		if err != nil && !isLocked(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		if err != nil {
			slog.Debug("Database locked, retrying", "error", err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(db.newBackOff()), backoff.WithMaxTries(db.lockRetries))

	if err != nil && isLocked(err) {
		return fmt.Errorf("%w: %w", ErrStorageBusy, err)
	}
	return err
}

// inTx runs fn inside a transaction, retrying the whole transaction on lock contention.
func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return db.retry(ctx, func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

func isLocked(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}
