package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// EntryRepository tracks which feed entries have been fully handled
type EntryRepository struct {
	db *DB
}

func NewEntryRepository(db *DB) *EntryRepository {
	return &EntryRepository{db: db}
}

func (r *EntryRepository) IsEntryProcessed(ctx context.Context, entryID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM processed_entries WHERE entry_id = ?)`, strings.TrimSpace(entryID)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check processed entry: %w", err)
	}

	return exists, nil
}

// MarkEntryProcessed records the entry and advances the feed's last fetch time,
// also when the entry was already recorded. It reports whether a row was inserted.
func (r *EntryRepository) MarkEntryProcessed(ctx context.Context, entry ProcessedEntry) (bool, error) {
	entryID := strings.TrimSpace(entry.EntryID)
	if entryID == "" {
		return false, fmt.Errorf("failed to mark entry processed: empty entry id")
	}

	var inserted bool
	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		now := r.db.Now()
		res, err := tx.ExecContext(ctx, `
			INSERT INTO processed_entries (feed_id, entry_id, title, link, published_at, processed_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (entry_id) DO NOTHING
		`, entry.FeedID, entryID, entry.Title, entry.Link, timeArg(entry.PublishedAt), now)
		if err != nil {
			return err
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		inserted = affected > 0

		_, err = tx.ExecContext(ctx, `
			UPDATE feeds SET last_fetch_at = ?
			WHERE id = ? AND (last_fetch_at IS NULL OR last_fetch_at < ?)
		`, now, entry.FeedID, now)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to mark entry processed: %w", err)
	}

	return inserted, nil
}
