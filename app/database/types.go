package database

import (
	"time"
)

type Feed struct {
	ID          int64
	URL         string
	Name        string
	IsActive    bool
	IsPaywalled bool
	LastFetchAt *time.Time

	PaywallHitCount  int
	LastPaywallHitAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

type ProcessedEntry struct {
	FeedID      int64
	EntryID     string
	Title       string
	Link        string
	PublishedAt *time.Time
	ProcessedAt time.Time
}

type Article struct {
	ID          int64
	FeedID      int64
	URL         string
	Title       string
	Content     string
	Author      *string
	PublishedAt *time.Time
	Categories  []string
	IsProcessed bool
	PostID      *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Tag struct {
	ID             int64
	Name           string
	UsageCount     int
	ThematicPrompt *string
}

type FeedStat struct {
	FeedID         int64
	Name           string
	URL            string
	ProcessedCount int
	PaywallHits    int
}

type Stats struct {
	TotalFeeds        int
	ActiveFeeds       int
	PaywalledFeeds    int
	ProcessedEntries  int
	PaywallHits       int
	Articles          int
	PublishedArticles int
	TopFeeds          []FeedStat
}
