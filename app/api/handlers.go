package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/rss-press/app/database"
	"github.com/lysyi3m/rss-press/app/tasks"
)

func NewHandler(feedRepo database.FeedRepositoryInterface, scheduler tasks.TaskSchedulerInterface, version string) *Handler {
	return &Handler{
		feedRepo:  feedRepo,
		scheduler: scheduler,
		version:   version,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"version":   h.version,
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feeds, err := h.feedRepo.GetActiveFeeds(c.Request.Context()); err == nil {
		health["active_feeds"] = len(feeds)
	} else {
		slog.Error("Database error", "operation", "health", "error", err)
		health["status"] = "degraded"
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.feedRepo.GetStats(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "get_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	top := make([]map[string]interface{}, 0, len(stats.TopFeeds))
	for _, f := range stats.TopFeeds {
		top = append(top, map[string]interface{}{
			"id":           f.FeedID,
			"name":         f.Name,
			"url":          f.URL,
			"processed":    f.ProcessedCount,
			"paywall_hits": f.PaywallHits,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"feeds": map[string]interface{}{
			"total":     stats.TotalFeeds,
			"active":    stats.ActiveFeeds,
			"paywalled": stats.PaywalledFeeds,
		},
		"processed_entries":  stats.ProcessedEntries,
		"paywall_hits":       stats.PaywallHits,
		"articles":           stats.Articles,
		"published_articles": stats.PublishedArticles,
		"top_feeds":          top,
	})
}

func (h *Handler) APIListFeeds(c *gin.Context) {
	includeInactive := c.Query("all") == "true"

	list, err := h.feedRepo.ListFeeds(c.Request.Context(), includeInactive)
	if err != nil {
		slog.Error("Database error", "operation", "list_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	feeds := make([]feedResponse, 0, len(list))
	for _, f := range list {
		feeds = append(feeds, newFeedResponse(f))
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"feeds": feeds,
		"total": len(feeds),
	})
}

func (h *Handler) APIAddFeed(c *gin.Context) {
	var req addFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "message": err.Error()})
		return
	}

	id, created, err := h.feedRepo.AddFeed(c.Request.Context(), req.URL, req.Name)
	if errors.Is(err, database.ErrInvalidFeedURL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid feed URL"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "add_feed", "feed_url", req.URL, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		slog.Info("Feed added", "feed_id", id, "feed_url", req.URL)
	}

	c.JSON(status, gin.H{"id": id, "created": created})
}

func (h *Handler) APISetFeedActive(c *gin.Context) {
	id, ok := feedID(c)
	if !ok {
		return
	}

	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "message": err.Error()})
		return
	}

	err := h.feedRepo.SetFeedActive(c.Request.Context(), id, *req.Active)
	if errors.Is(err, database.ErrFeedNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "set_feed_active", "feed_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "active": *req.Active})
}

func (h *Handler) APIRemoveFeed(c *gin.Context) {
	id, ok := feedID(c)
	if !ok {
		return
	}

	err := h.feedRepo.RemoveFeed(c.Request.Context(), id)
	if errors.Is(err, database.ErrFeedNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "remove_feed", "feed_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	slog.Info("Feed removed", "feed_id", id)
	c.Status(http.StatusNoContent)
}

func (h *Handler) APITriggerRun(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scheduler is not running"})
		return
	}

	queued := h.scheduler.TriggerRun()
	c.JSON(http.StatusAccepted, gin.H{"queued": queued})
}

func feedID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid feed id"})
		return 0, false
	}
	return id, true
}
