package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	ErrInvalidFeedURL = errors.New("invalid feed URL")
	ErrFeedNotFound   = errors.New("feed not found")
)

const topFeedsLimit = 5

// FeedRepository handles database operations for feeds
type FeedRepository struct {
	db *DB
}

// NewFeedRepository creates a new feed repository
func NewFeedRepository(db *DB) *FeedRepository {
	return &FeedRepository{db: db}
}

// AddFeed registers a feed. The returned bool is false when a feed with the
// same URL (compared case-insensitively) already exists; its id is returned.
func (r *FeedRepository) AddFeed(ctx context.Context, rawURL, name string) (int64, bool, error) {
	feedURL, err := ValidateFeedURL(rawURL)
	if err != nil {
		return 0, false, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = feedURL
	}

	var id int64
	var created bool
	err = r.db.inTx(ctx, func(tx *sql.Tx) error {
		now := r.db.Now()
		res, err := tx.ExecContext(ctx, `
			INSERT INTO feeds (url, name, is_active, is_paywalled, created_at, updated_at)
			VALUES (?, ?, 1, 0, ?, ?)
			ON CONFLICT (url) DO NOTHING
		`, feedURL, name, now, now)
		if err != nil {
			return err
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		created = affected > 0

		return tx.QueryRowContext(ctx, `SELECT id FROM feeds WHERE url = ?`, feedURL).Scan(&id)
	})
	if err != nil {
		return 0, false, fmt.Errorf("failed to add feed: %w", err)
	}

	return id, created, nil
}

// GetFeed returns the feed with the given id, or nil when it does not exist
func (r *FeedRepository) GetFeed(ctx context.Context, id int64) (*Feed, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, url, name, is_active, is_paywalled, last_fetch_at,
			paywall_hit_count, last_paywall_hit_at, created_at, updated_at
		FROM feeds WHERE id = ?
	`, id)

	feed, err := scanFeed(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}

	return feed, nil
}

// GetFeedByURL looks a feed up by URL, ignoring case
func (r *FeedRepository) GetFeedByURL(ctx context.Context, feedURL string) (*Feed, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, url, name, is_active, is_paywalled, last_fetch_at,
			paywall_hit_count, last_paywall_hit_at, created_at, updated_at
		FROM feeds WHERE url = ?
	`, strings.TrimSpace(feedURL))

	feed, err := scanFeed(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed by url: %w", err)
	}

	return feed, nil
}

// GetActiveFeeds returns feeds that are active and not flagged as paywalled
func (r *FeedRepository) GetActiveFeeds(ctx context.Context) ([]Feed, error) {
	return r.queryFeeds(ctx, `
		SELECT id, url, name, is_active, is_paywalled, last_fetch_at,
			paywall_hit_count, last_paywall_hit_at, created_at, updated_at
		FROM feeds
		WHERE is_active = 1 AND is_paywalled = 0
		ORDER BY name, id
	`)
}

func (r *FeedRepository) ListFeeds(ctx context.Context, includeInactive bool) ([]Feed, error) {
	if !includeInactive {
		return r.GetActiveFeeds(ctx)
	}

	return r.queryFeeds(ctx, `
		SELECT id, url, name, is_active, is_paywalled, last_fetch_at,
			paywall_hit_count, last_paywall_hit_at, created_at, updated_at
		FROM feeds
		ORDER BY name, id
	`)
}

// SetFeedActive toggles a feed. Re-activating a feed also clears its paywall flag.
func (r *FeedRepository) SetFeedActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE feeds SET is_active = ?, updated_at = ? WHERE id = ?`
	if active {
		query = `UPDATE feeds SET is_active = ?, is_paywalled = 0, updated_at = ? WHERE id = ?`
	}

	return r.updateFeed(ctx, "set feed active", query, active, r.db.Now(), id)
}

// MarkFeedPaywalled flags the feed as paywalled and deactivates it
func (r *FeedRepository) MarkFeedPaywalled(ctx context.Context, id int64) error {
	return r.updateFeed(ctx, "mark feed paywalled",
		`UPDATE feeds SET is_paywalled = 1, is_active = 0, updated_at = ? WHERE id = ?`,
		r.db.Now(), id)
}

// RemoveFeed deletes the feed together with its entries, articles and paywall hits
func (r *FeedRepository) RemoveFeed(ctx context.Context, id int64) error {
	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		statements := []string{
			`DELETE FROM article_tags WHERE article_id IN (SELECT id FROM articles WHERE feed_id = ?)`,
			`DELETE FROM articles WHERE feed_id = ?`,
			`DELETE FROM processed_entries WHERE feed_id = ?`,
			`DELETE FROM paywall_hits WHERE feed_id = ?`,
		}
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return err
			}
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM feeds WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrFeedNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove feed %d: %w", id, err)
	}

	return nil
}

// GetStats aggregates feed, entry, paywall and article counters
func (r *FeedRepository) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats

	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM feeds),
			(SELECT COUNT(*) FROM feeds WHERE is_active = 1 AND is_paywalled = 0),
			(SELECT COUNT(*) FROM feeds WHERE is_paywalled = 1),
			(SELECT COUNT(*) FROM processed_entries),
			(SELECT COUNT(*) FROM paywall_hits),
			(SELECT COUNT(*) FROM articles),
			(SELECT COUNT(*) FROM articles WHERE post_id IS NOT NULL)
	`).Scan(&stats.TotalFeeds, &stats.ActiveFeeds, &stats.PaywalledFeeds,
		&stats.ProcessedEntries, &stats.PaywallHits, &stats.Articles, &stats.PublishedArticles)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT f.id, f.name, f.url,
			(SELECT COUNT(*) FROM processed_entries pe WHERE pe.feed_id = f.id) AS processed,
			(SELECT COUNT(*) FROM paywall_hits ph WHERE ph.feed_id = f.id) AS hits
		FROM feeds f
		ORDER BY processed DESC, f.name
		LIMIT ?
	`, topFeedsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top feeds: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fs FeedStat
		if err := rows.Scan(&fs.FeedID, &fs.Name, &fs.URL, &fs.ProcessedCount, &fs.PaywallHits); err != nil {
			return nil, fmt.Errorf("failed to scan feed stats: %w", err)
		}
		stats.TopFeeds = append(stats.TopFeeds, fs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feed stats: %w", err)
	}

	return &stats, nil
}

// ValidateFeedURL trims the URL and checks that it is an absolute http(s) URL
func ValidateFeedURL(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidFeedURL)
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidFeedURL, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidFeedURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidFeedURL)
	}

	return trimmed, nil
}

func (r *FeedRepository) updateFeed(ctx context.Context, op, query string, args ...any) error {
	err := r.db.retry(ctx, func() error {
		res, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrFeedNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	return nil
}

func (r *FeedRepository) queryFeeds(ctx context.Context, query string, args ...any) ([]Feed, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed: %w", err)
		}
		feeds = append(feeds, *feed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feeds: %w", err)
	}

	return feeds, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeed(row rowScanner) (*Feed, error) {
	var f Feed
	var lastFetch, lastHit sql.NullTime
	if err := row.Scan(&f.ID, &f.URL, &f.Name, &f.IsActive, &f.IsPaywalled, &lastFetch,
		&f.PaywallHitCount, &lastHit, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	f.LastFetchAt = nullTimePtr(lastFetch)
	f.LastPaywallHitAt = nullTimePtr(lastHit)
	return &f, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
