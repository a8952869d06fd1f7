package api

import (
	"time"

	"github.com/lysyi3m/rss-press/app/database"
	"github.com/lysyi3m/rss-press/app/tasks"
)

type Handler struct {
	feedRepo  database.FeedRepositoryInterface
	scheduler tasks.TaskSchedulerInterface
	version   string
}

type addFeedRequest struct {
	URL  string `json:"url" binding:"required"`
	Name string `json:"name"`
}

type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

type feedResponse struct {
	ID               int64      `json:"id"`
	URL              string     `json:"url"`
	Name             string     `json:"name"`
	IsActive         bool       `json:"is_active"`
	IsPaywalled      bool       `json:"is_paywalled"`
	LastFetchAt      *time.Time `json:"last_fetch_at"`
	PaywallHits      int        `json:"paywall_hits"`
	LastPaywallHitAt *time.Time `json:"last_paywall_hit_at"`
	CreatedAt        time.Time  `json:"created_at"`
}

func newFeedResponse(f database.Feed) feedResponse {
	return feedResponse{
		ID:               f.ID,
		URL:              f.URL,
		Name:             f.Name,
		IsActive:         f.IsActive,
		IsPaywalled:      f.IsPaywalled,
		LastFetchAt:      f.LastFetchAt,
		PaywallHits:      f.PaywallHitCount,
		LastPaywallHitAt: f.LastPaywallHitAt,
		CreatedAt:        f.CreatedAt,
	}
}
