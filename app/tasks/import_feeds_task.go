package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rss-press/app/database"
	"github.com/lysyi3m/rss-press/app/feed"
)

// ImportFeedsTask adds seed feeds to the store. Existing feeds keep their
// state unless the seed sets an explicit active flag; a paywalled feed is
// never reactivated from a seed.
type ImportFeedsTask struct {
	Task
	Seeds    []feed.Seed
	feedRepo database.FeedRepositoryInterface
	result   ImportResult
}

func NewImportFeedsTask(source string, seeds []feed.Seed, feedRepo database.FeedRepositoryInterface) *ImportFeedsTask {
	return &ImportFeedsTask{
		Task:     NewTask(TaskTypeImportFeeds, source),
		Seeds:    seeds,
		feedRepo: feedRepo,
	}
}

func (t *ImportFeedsTask) Result() ImportResult {
	return t.result
}

func (t *ImportFeedsTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	for _, seed := range t.Seeds {
		if err := ctx.Err(); err != nil {
			return err
		}
		t.result.Total++

		if seed.URL == "" {
			slog.Warn("Skipping feed without url", "source", t.FeedName, "name", seed.Name)
			t.result.Failed++
			continue
		}

		if err := t.importSeed(ctx, seed); err != nil {
			slog.Warn("Failed to import feed", "source", t.FeedName, "feed_url", seed.URL, "error", err)
			t.result.Failed++
		}
	}

	slog.Info("Task completed",
		"type", "ImportFeeds",
		"source", t.FeedName,
		"duration", t.GetDuration(),
		"total", t.result.Total,
		"added", t.result.Added,
		"existing", t.result.Existing,
		"failed", t.result.Failed)

	return nil
}

func (t *ImportFeedsTask) importSeed(ctx context.Context, seed feed.Seed) error {
	id, created, err := t.feedRepo.AddFeed(ctx, seed.URL, seed.Name)
	if err != nil {
		return err
	}
	if created {
		t.result.Added++
	} else {
		t.result.Existing++
	}

	if seed.Active == nil {
		return nil
	}

	f, err := t.feedRepo.GetFeed(ctx, id)
	if err != nil {
		return err
	}
	if f == nil {
		return errors.New("feed disappeared during import")
	}
	if f.IsActive == *seed.Active || (f.IsPaywalled && *seed.Active) {
		return nil
	}

	if err := t.feedRepo.SetFeedActive(ctx, id, *seed.Active); err != nil {
		return fmt.Errorf("failed to apply active flag: %w", err)
	}
	return nil
}
