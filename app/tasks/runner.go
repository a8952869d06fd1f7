package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/rss-press/app/metrics"
)

var ErrPublishingDisabled = errors.New("publishing is disabled")

// Runner executes ingestion passes over all active feeds, one feed at a time.
// Passes never overlap.
type Runner struct {
	svc *Services
	mu  sync.Mutex
}

func NewRunner(svc *Services) *Runner {
	return &Runner{svc: svc}
}

// Run processes every active feed in order. Only a failure to list feeds is
// returned as an error; per-feed failures are counted in the summary. When ctx
// is cancelled the current feed finishes its in-flight entry and the pass stops.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	summary := Summary{RunID: uuid.NewString()}
	log := slog.With("run_id", summary.RunID)

	feeds, err := r.svc.Feeds.GetActiveFeeds(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to load active feeds: %w", err)
	}
	log.Info("Ingestion run started", "feeds", len(feeds))

	for _, f := range feeds {
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}

		task := NewProcessFeedTask(f, r.svc)
		task.Start()
		err := task.Execute(ctx)

		result := task.Result()
		summary.Feeds++
		summary.add(result.Counts)
		if result.Escalated {
			summary.FeedsEscalated++
		}

		switch {
		case err != nil && ctx.Err() != nil:
			summary.Interrupted = true
		case err != nil:
			summary.FeedsFailed++
			metrics.RecordFeed("failed")
		default:
			metrics.RecordFeed("ok")
		}
	}

	summary.Duration = time.Since(start)
	metrics.ObserveRun(summary.Duration)

	log.Info("Ingestion run completed",
		"feeds", summary.Feeds,
		"feeds_failed", summary.FeedsFailed,
		"feeds_escalated", summary.FeedsEscalated,
		"entries", summary.Entries,
		"processed", summary.Processed,
		"duplicates", summary.Duplicates,
		"paywalled", summary.Paywalled,
		"failed", summary.Failed,
		"invalid", summary.Invalid,
		"success_rate", fmt.Sprintf("%.1f%%", summary.SuccessRate()*100),
		"interrupted", summary.Interrupted,
		"duration", summary.Duration)

	return summary, nil
}

// PublishPending retries downstream handling for stored articles that are not
// processed yet.
func (r *Runner) PublishPending(ctx context.Context, limit int) (PublishSummary, error) {
	var summary PublishSummary
	if r.svc.Publisher == nil {
		return summary, ErrPublishingDisabled
	}

	articles, err := r.svc.Articles.ListUnprocessedArticles(ctx, limit)
	if err != nil {
		return summary, fmt.Errorf("failed to list pending articles: %w", err)
	}

	for _, article := range articles {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		summary.Attempted++
		task := NewPublishArticleTask(article.ID, article.URL, r.svc)
		task.Start()
		if err := task.Execute(ctx); err != nil {
			summary.Failed++
			slog.Error("Failed to publish article", "article_id", article.ID, "url", article.URL, "error", err)
		}
	}

	return summary, nil
}
