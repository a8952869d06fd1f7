package database

import (
	"context"
)

type FeedRepositoryInterface interface {
	AddFeed(ctx context.Context, url, name string) (int64, bool, error)
	GetFeed(ctx context.Context, id int64) (*Feed, error)
	GetFeedByURL(ctx context.Context, url string) (*Feed, error)
	GetActiveFeeds(ctx context.Context) ([]Feed, error)
	ListFeeds(ctx context.Context, includeInactive bool) ([]Feed, error)

	SetFeedActive(ctx context.Context, id int64, active bool) error
	MarkFeedPaywalled(ctx context.Context, id int64) error
	RemoveFeed(ctx context.Context, id int64) error

	GetStats(ctx context.Context) (*Stats, error)
}

type EntryRepositoryInterface interface {
	IsEntryProcessed(ctx context.Context, entryID string) (bool, error)
	MarkEntryProcessed(ctx context.Context, entry ProcessedEntry) (bool, error)
}

type PaywallRepositoryInterface interface {
	RecordPaywallHit(ctx context.Context, feedID int64, url string) error
	GetRecentPaywallHits(ctx context.Context, feedID int64, windowDays int) (int, error)
}

type ArticleRepositoryInterface interface {
	SaveArticle(ctx context.Context, article Article) (int64, error)
	GetArticle(ctx context.Context, id int64) (*Article, error)
	GetArticleByURL(ctx context.Context, url string) (*Article, error)
	ListUnprocessedArticles(ctx context.Context, limit int) ([]Article, error)

	SetArticlePostID(ctx context.Context, id int64, postID int64) error
	MarkArticleProcessed(ctx context.Context, id int64) error
}

type TagRepositoryInterface interface {
	AddArticleTags(ctx context.Context, articleID int64, names []string) ([]string, error)
	GetArticleTags(ctx context.Context, articleID int64) ([]string, error)
	PopularTags(ctx context.Context, limit int) ([]Tag, error)
	ThematicPrompts(ctx context.Context) ([]Tag, error)
	SetThematicPrompt(ctx context.Context, name, prompt string) (string, error)
}

var (
	_ FeedRepositoryInterface    = (*FeedRepository)(nil)
	_ EntryRepositoryInterface   = (*EntryRepository)(nil)
	_ PaywallRepositoryInterface = (*PaywallRepository)(nil)
	_ ArticleRepositoryInterface = (*ArticleRepository)(nil)
	_ TagRepositoryInterface     = (*TagRepository)(nil)
)
