package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type PaywallRepository struct {
	db *DB
}

func NewPaywallRepository(db *DB) *PaywallRepository {
	return &PaywallRepository{db: db}
}

// RecordPaywallHit appends a hit and bumps the feed's cumulative counter in one transaction
func (r *PaywallRepository) RecordPaywallHit(ctx context.Context, feedID int64, url string) error {
	now := r.db.Now()
	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO paywall_hits (feed_id, url, hit_at) VALUES (?, ?, ?)`,
			feedID, url, now); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE feeds SET paywall_hit_count = paywall_hit_count + 1, last_paywall_hit_at = ?
			WHERE id = ?
		`, now, feedID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to record paywall hit: %w", err)
	}

	return nil
}

// GetRecentPaywallHits counts hits for the feed within the last windowDays days
func (r *PaywallRepository) GetRecentPaywallHits(ctx context.Context, feedID int64, windowDays int) (int, error) {
	cutoff := r.db.Now().Add(-time.Duration(windowDays) * 24 * time.Hour)

	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM paywall_hits WHERE feed_id = ? AND hit_at >= ?`,
		feedID, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count paywall hits: %w", err)
	}

	return count, nil
}
