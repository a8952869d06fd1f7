package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	tagInvalidChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	tagSpaces       = regexp.MustCompile(`\s+`)
	tagHyphens      = regexp.MustCompile(`-+`)
)

// NormalizeTag lowercases the tag, drops punctuation and joins words with single hyphens
func NormalizeTag(tag string) string {
	t := strings.ToLower(strings.TrimSpace(tag))
	t = tagInvalidChars.ReplaceAllString(t, "")
	t = tagSpaces.ReplaceAllString(t, "-")
	t = tagHyphens.ReplaceAllString(t, "-")
	return strings.Trim(t, "-")
}

type TagRepository struct {
	db *DB
}

func NewTagRepository(db *DB) *TagRepository {
	return &TagRepository{db: db}
}

// AddArticleTags links normalized tags to the article, creating missing tags
// and bumping usage counters for new links. The normalized names are returned.
func (r *TagRepository) AddArticleTags(ctx context.Context, articleID int64, names []string) ([]string, error) {
	normalized := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		n := NormalizeTag(name)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		normalized = append(normalized, n)
	}
	if len(normalized) == 0 {
		return nil, nil
	}

	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		now := r.db.Now()
		for _, name := range normalized {
			tagID, err := upsertTag(ctx, tx, name, now)
			if err != nil {
				return err
			}

			res, err := tx.ExecContext(ctx,
				`INSERT INTO article_tags (article_id, tag_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
				articleID, tagID)
			if err != nil {
				return err
			}
			if affected, err := res.RowsAffected(); err != nil {
				return err
			} else if affected == 0 {
				continue
			}

			if _, err := tx.ExecContext(ctx,
				`UPDATE tags SET usage_count = usage_count + 1 WHERE id = ?`, tagID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add article tags: %w", err)
	}

	return normalized, nil
}

func (r *TagRepository) GetArticleTags(ctx context.Context, articleID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.name FROM tags t
		JOIN article_tags atg ON atg.tag_id = t.id
		WHERE atg.article_id = ?
		ORDER BY t.name
	`, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get article tags: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

// PopularTags returns the most used tags, most used first
func (r *TagRepository) PopularTags(ctx context.Context, limit int) ([]Tag, error) {
	return r.queryTags(ctx, `
		SELECT id, name, usage_count, thematic_prompt FROM tags
		WHERE usage_count > 0
		ORDER BY usage_count DESC, name
		LIMIT ?
	`, limit)
}

func (r *TagRepository) ThematicPrompts(ctx context.Context) ([]Tag, error) {
	return r.queryTags(ctx, `
		SELECT id, name, usage_count, thematic_prompt FROM tags
		WHERE thematic_prompt IS NOT NULL AND thematic_prompt != ''
		ORDER BY name
	`)
}

// SetThematicPrompt attaches a prompt hint to a tag, creating the tag if needed
func (r *TagRepository) SetThematicPrompt(ctx context.Context, name, prompt string) (string, error) {
	normalized := NormalizeTag(name)
	if normalized == "" {
		return "", fmt.Errorf("failed to set thematic prompt: tag %q is empty after normalization", name)
	}

	err := r.db.retry(ctx, func() error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO tags (name, usage_count, thematic_prompt, created_at)
			VALUES (?, 0, ?, ?)
			ON CONFLICT (name) DO UPDATE SET thematic_prompt = excluded.thematic_prompt
		`, normalized, strings.TrimSpace(prompt), r.db.Now())
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to set thematic prompt: %w", err)
	}

	return normalized, nil
}

func (r *TagRepository) queryTags(ctx context.Context, query string, args ...any) ([]Tag, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var t Tag
		var prompt sql.NullString
		if err := rows.Scan(&t.ID, &t.Name, &t.UsageCount, &prompt); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		if prompt.Valid {
			t.ThematicPrompt = &prompt.String
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}

	return tags, nil
}

func upsertTag(ctx context.Context, tx *sql.Tx, name string, now time.Time) (int64, error) {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tags (name, usage_count, created_at) VALUES (?, 0, ?) ON CONFLICT (name) DO NOTHING`,
		name, now); err != nil {
		return 0, err
	}

	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&id)
	return id, err
}
