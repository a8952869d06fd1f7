package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// ArticleRepository stores articles emitted by the ingestion pipeline
type ArticleRepository struct {
	db *DB
}

func NewArticleRepository(db *DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// SaveArticle inserts the article keyed by URL. An existing unprocessed article
// is refreshed; a processed one is left untouched. The article id is returned.
func (r *ArticleRepository) SaveArticle(ctx context.Context, article Article) (int64, error) {
	categories, err := json.Marshal(article.Categories)
	if err != nil {
		return 0, fmt.Errorf("failed to encode categories: %w", err)
	}

	var id int64
	err = r.db.inTx(ctx, func(tx *sql.Tx) error {
		now := r.db.Now()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO articles (feed_id, url, title, content, author, published_at, categories, is_processed, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
			ON CONFLICT (url) DO UPDATE SET
				title = excluded.title,
				content = excluded.content,
				author = excluded.author,
				published_at = excluded.published_at,
				categories = excluded.categories,
				updated_at = excluded.updated_at
			WHERE articles.is_processed = 0
		`, article.FeedID, article.URL, article.Title, article.Content, article.Author,
			timeArg(article.PublishedAt), string(categories), now, now)
		if err != nil {
			return err
		}

		return tx.QueryRowContext(ctx, `SELECT id FROM articles WHERE url = ?`, article.URL).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save article: %w", err)
	}

	return id, nil
}

func (r *ArticleRepository) GetArticle(ctx context.Context, id int64) (*Article, error) {
	return r.getOne(ctx, `WHERE id = ?`, id)
}

func (r *ArticleRepository) GetArticleByURL(ctx context.Context, url string) (*Article, error) {
	return r.getOne(ctx, `WHERE url = ?`, url)
}

// ListUnprocessedArticles returns the oldest articles still awaiting downstream handling
func (r *ArticleRepository) ListUnprocessedArticles(ctx context.Context, limit int) ([]Article, error) {
	rows, err := r.db.QueryContext(ctx, articleColumns+`
		WHERE is_processed = 0
		ORDER BY created_at, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed articles: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, *article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate articles: %w", err)
	}

	return articles, nil
}

// SetArticlePostID remembers the remote post created for the article
func (r *ArticleRepository) SetArticlePostID(ctx context.Context, id int64, postID int64) error {
	return r.update(ctx, "set article post id",
		`UPDATE articles SET post_id = ?, updated_at = ? WHERE id = ?`, postID, r.db.Now(), id)
}

func (r *ArticleRepository) MarkArticleProcessed(ctx context.Context, id int64) error {
	return r.update(ctx, "mark article processed",
		`UPDATE articles SET is_processed = 1, updated_at = ? WHERE id = ?`, r.db.Now(), id)
}

const articleColumns = `
	SELECT id, feed_id, url, title, content, author, published_at, categories,
		is_processed, post_id, created_at, updated_at
	FROM articles
`

func (r *ArticleRepository) getOne(ctx context.Context, where string, args ...any) (*Article, error) {
	article, err := scanArticle(r.db.QueryRowContext(ctx, articleColumns+where, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}

	return article, nil
}

func (r *ArticleRepository) update(ctx context.Context, op, query string, args ...any) error {
	err := r.db.retry(ctx, func() error {
		_, err := r.db.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	return nil
}

func scanArticle(row rowScanner) (*Article, error) {
	var a Article
	var author sql.NullString
	var published sql.NullTime
	var categories string
	var postID sql.NullInt64

	err := row.Scan(&a.ID, &a.FeedID, &a.URL, &a.Title, &a.Content, &author, &published,
		&categories, &a.IsProcessed, &postID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if author.Valid {
		a.Author = &author.String
	}
	a.PublishedAt = nullTimePtr(published)
	if postID.Valid {
		a.PostID = &postID.Int64
	}
	if categories != "" {
		if err := json.Unmarshal([]byte(categories), &a.Categories); err != nil {
			return nil, fmt.Errorf("failed to decode categories: %w", err)
		}
	}

	return &a, nil
}
