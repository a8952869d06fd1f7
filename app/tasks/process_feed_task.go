package tasks

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rss-press/app/database"
	"github.com/lysyi3m/rss-press/app/feed"
	"github.com/lysyi3m/rss-press/app/metrics"
)

type entryOutcome string

const (
	outcomeProcessed entryOutcome = "processed"
	outcomeDuplicate entryOutcome = "duplicate"
	outcomePaywalled entryOutcome = "paywalled"
	outcomeFailed    entryOutcome = "failed"
	outcomeInvalid   entryOutcome = "invalid"
)

var errNoContentSource = errors.New("entry has neither inline content nor a link")

// ProcessFeedTask ingests one feed: every new entry is extracted, checked for a
// paywall, stored as an article and marked processed.
type ProcessFeedTask struct {
	Task
	Feed   database.Feed
	svc    *Services
	result FeedResult
}

func NewProcessFeedTask(f database.Feed, svc *Services) *ProcessFeedTask {
	return &ProcessFeedTask{
		Task: NewTask(TaskTypeProcessFeed, f.Name),
		Feed: f,
		svc:  svc,
	}
}

func (t *ProcessFeedTask) Result() FeedResult {
	return t.result
}

func (t *ProcessFeedTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	data, err := t.svc.Fetcher.Fetch(ctx, t.Feed.URL, feed.KindFeed)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Error("Failed to fetch feed", "feed_id", t.Feed.ID, "feed_url", t.Feed.URL, "error", err)
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	_, items, err := t.svc.Parser.Run(data)
	if err != nil {
		slog.Error("Failed to parse feed", "feed_id", t.Feed.ID, "feed_url", t.Feed.URL, "error", err)
		return fmt.Errorf("failed to parse feed: %w", err)
	}

	if limit := t.svc.Options.MaxEntries; limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}

		outcome, stop := t.processEntry(ctx, item)
		if outcome == "" {
			// interrupted mid-entry, nothing was recorded
			break
		}
		t.count(outcome)

		if stop {
			break
		}
	}

	slog.Info("Task completed",
		"type", "ProcessFeed",
		"feed", t.FeedName,
		"feed_id", t.Feed.ID,
		"duration", t.GetDuration(),
		"total", t.result.Entries,
		"processed", t.result.Processed,
		"duplicates", t.result.Duplicates,
		"paywalled", t.result.Paywalled,
		"failed", t.result.Failed,
		"invalid", t.result.Invalid)

	return ctx.Err()
}

func (t *ProcessFeedTask) count(outcome entryOutcome) {
	t.result.Entries++
	switch outcome {
	case outcomeProcessed:
		t.result.Processed++
	case outcomeDuplicate:
		t.result.Duplicates++
	case outcomePaywalled:
		t.result.Paywalled++
	case outcomeFailed:
		t.result.Failed++
	case outcomeInvalid:
		t.result.Invalid++
	}
	metrics.RecordEntry(string(outcome))
}

// processEntry returns an empty outcome when the context was cancelled before
// anything about the entry was persisted. stop is set once the feed got escalated.
func (t *ProcessFeedTask) processEntry(ctx context.Context, item feed.Item) (entryOutcome, bool) {
	entryID := item.EntryID()
	log := slog.With("feed_id", t.Feed.ID, "feed_url", t.Feed.URL, "entry_id", entryID, "url", item.Link)

	if entryID == "" {
		log.Warn("Skipping entry without id or link", "title", item.Title)
		return outcomeInvalid, false
	}

	processed, err := t.svc.Entries.IsEntryProcessed(ctx, entryID)
	if err != nil {
		if ctx.Err() != nil {
			return "", false
		}
		log.Error("Failed to check processed entry", "error", err)
		return outcomeFailed, false
	}
	if processed {
		log.Debug("Entry already processed")
		return outcomeDuplicate, false
	}

	extraction, src, err := t.extract(ctx, item)
	if err != nil {
		if ctx.Err() != nil {
			return "", false
		}
		if errors.Is(err, feed.ErrNotFound) {
			log.Warn("Article not found", "error", err)
		} else {
			log.Error("Failed to extract article content", "error", err)
		}
		return outcomeFailed, false
	}

	verdict := t.svc.Paywall.Assess(extraction.Paragraphs, feed.VisibleText(src), item.Link)
	if verdict.Paywalled {
		log.Info("Paywall detected", "reason", verdict.Reason)
		return outcomePaywalled, t.handlePaywall(ctx, item.Link)
	}

	if len(extraction.Paragraphs) == 0 {
		log.Warn("No content extracted")
		return outcomeFailed, false
	}

	// from here on the entry is recorded in full even if the run is interrupted
	persistCtx := context.WithoutCancel(ctx)

	articleID, err := t.svc.Articles.SaveArticle(persistCtx, database.Article{
		FeedID:      t.Feed.ID,
		URL:         cmp.Or(item.Link, entryID),
		Title:       cmp.Or(item.Title, extraction.Title),
		Content:     extraction.Text(),
		Author:      cmp.Or(item.Author, extraction.Author),
		PublishedAt: item.PublishedAt,
		Categories:  item.Categories,
	})
	if err != nil {
		log.Error("Failed to save article", "error", err)
		return outcomeFailed, false
	}

	inserted, err := t.svc.Entries.MarkEntryProcessed(persistCtx, database.ProcessedEntry{
		FeedID:      t.Feed.ID,
		EntryID:     entryID,
		Title:       item.Title,
		Link:        item.Link,
		PublishedAt: item.PublishedAt,
	})
	if err != nil {
		log.Error("Failed to mark entry processed", "error", err)
		return outcomeFailed, false
	}
	if !inserted {
		return outcomeDuplicate, false
	}

	log.Debug("Entry processed", "article_id", articleID, "paragraphs", len(extraction.Paragraphs))

	if t.svc.Publisher != nil && ctx.Err() == nil {
		publish := NewPublishArticleTask(articleID, t.FeedName, t.svc)
		publish.Start()
		if err := publish.Execute(ctx); err != nil {
			log.Error("Failed to publish article", "article_id", articleID, "error", err)
		}
	}

	return outcomeProcessed, false
}

// extract returns the extraction of the entry and the HTML it came from.
// Inline feed content is used unless it yields no paragraphs or the article
// page is preferred; then the page is fetched. A failed page fetch falls back
// to the inline content so that the paywall check still sees it.
func (t *ProcessFeedTask) extract(ctx context.Context, item feed.Item) (*feed.Extraction, []byte, error) {
	inline := []byte(item.Content)
	hasInline := item.Content != ""

	var inlineResult *feed.Extraction
	if hasInline && (!t.svc.Options.PreferArticlePage || item.Link == "") {
		result, err := t.svc.Extractor.Run(inline, false)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to extract inline content: %w", err)
		}
		if len(result.Paragraphs) > 0 || item.Link == "" {
			return result, inline, nil
		}
		slog.Debug("Inline content has no usable paragraphs, fetching article page", "url", item.Link)
		inlineResult = result
	}
	if item.Link == "" {
		return nil, nil, errNoContentSource
	}

	page, err := t.svc.Fetcher.Fetch(ctx, item.Link, feed.KindArticle)
	if err != nil {
		if !hasInline || ctx.Err() != nil {
			return nil, nil, err
		}
		slog.Debug("Falling back to inline content", "url", item.Link, "error", err)
		if inlineResult == nil {
			if inlineResult, err = t.svc.Extractor.Run(inline, false); err != nil {
				return nil, nil, fmt.Errorf("failed to extract inline content: %w", err)
			}
		}
		return inlineResult, inline, nil
	}

	result, err := t.svc.Extractor.Run(page, true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to extract article page: %w", err)
	}
	return result, page, nil
}

// handlePaywall records the hit and escalates the feed once the trailing window
// holds enough hits. It reports whether processing of the feed must stop.
func (t *ProcessFeedTask) handlePaywall(ctx context.Context, url string) bool {
	metrics.PaywallHitsTotal.Inc()
	log := slog.With("feed_id", t.Feed.ID, "feed_url", t.Feed.URL)
	store := context.WithoutCancel(ctx)

	if err := t.svc.Paywalls.RecordPaywallHit(store, t.Feed.ID, url); err != nil {
		log.Error("Failed to record paywall hit", "url", url, "error", err)
		return false
	}

	opts := t.svc.Options
	hits, err := t.svc.Paywalls.GetRecentPaywallHits(store, t.Feed.ID, opts.PaywallWindowDays)
	if err != nil {
		log.Error("Failed to count paywall hits", "error", err)
		return false
	}
	if hits < opts.PaywallHitThreshold {
		return false
	}

	decision, err := t.svc.Escalation.Decide(ctx, t.Feed, hits)
	if err != nil {
		log.Warn("Escalation policy failed, continuing", "hits", hits, "error", err)
		decision = DecisionContinue
	}

	switch decision {
	case DecisionMarkPaywalled:
		err = t.svc.Feeds.MarkFeedPaywalled(store, t.Feed.ID)
	case DecisionDeactivate:
		err = t.svc.Feeds.SetFeedActive(store, t.Feed.ID, false)
	case DecisionRemove:
		err = t.svc.Feeds.RemoveFeed(store, t.Feed.ID)
	case DecisionContinue:
		log.Info("Paywall threshold reached, feed kept", "hits", hits)
		return false
	}
	if err != nil {
		log.Error("Failed to apply escalation", "decision", decision.String(), "error", err)
		return false
	}

	metrics.RecordEscalation(decision.String())
	t.result.Escalated = true
	t.result.Escalation = decision
	log.Warn("Feed escalated after repeated paywall hits", "decision", decision.String(), "hits", hits, "window_days", opts.PaywallWindowDays)
	return true
}
