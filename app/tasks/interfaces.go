package tasks

import (
	"context"
	"time"

	"github.com/lysyi3m/rss-press/app/database"
	"github.com/lysyi3m/rss-press/app/feed"
	"github.com/lysyi3m/rss-press/app/rewriter"
	"github.com/lysyi3m/rss-press/app/tagger"
	"github.com/lysyi3m/rss-press/app/wordpress"
)

// TaskSchedulerInterface is what the admin API needs from the background scheduler.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	TriggerRun() bool
}

type RunnerInterface interface {
	Run(ctx context.Context) (Summary, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, url string, kind feed.RequestKind) ([]byte, error)
}

type Parser interface {
	Run(data []byte) (*feed.Metadata, []feed.Item, error)
}

type Extractor interface {
	Run(data []byte, fullPage bool) (*feed.Extraction, error)
}

type PaywallDetector interface {
	Assess(paragraphs []string, rawText, url string) feed.Verdict
}

type Rewriter interface {
	Rewrite(ctx context.Context, src rewriter.Source) (*rewriter.Result, error)
	Model() string
}

type Tagger interface {
	Generate(ctx context.Context, in tagger.Input) ([]string, error)
}

type Publisher interface {
	Publish(ctx context.Context, post wordpress.Post) (int64, error)
	PostExists(ctx context.Context, postID int64) (bool, error)
}

type Options struct {
	MaxEntries          int // per feed per run, 0 means no cap
	PreferArticlePage   bool
	PaywallWindowDays   int
	PaywallHitThreshold int
}

func DefaultOptions() Options {
	return Options{
		MaxEntries:          10,
		PaywallWindowDays:   7,
		PaywallHitThreshold: 5,
	}
}

// Services bundles the store and collaborators shared by all tasks.
// Rewriter, Tagger and Publisher are optional.
type Services struct {
	Feeds    database.FeedRepositoryInterface
	Entries  database.EntryRepositoryInterface
	Paywalls database.PaywallRepositoryInterface
	Articles database.ArticleRepositoryInterface
	Tags     database.TagRepositoryInterface

	Fetcher    Fetcher
	Parser     Parser
	Extractor  Extractor
	Paywall    PaywallDetector
	Escalation EscalationPolicy

	Rewriter  Rewriter
	Tagger    Tagger
	Publisher Publisher

	Options Options
	Now     func() time.Time
}

func (s *Services) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

var (
	_ Fetcher         = (*feed.Fetcher)(nil)
	_ Parser          = (*feed.Parser)(nil)
	_ Extractor       = (*feed.ContentExtractor)(nil)
	_ PaywallDetector = (*feed.PaywallDetector)(nil)
	_ Rewriter        = (*rewriter.Client)(nil)
	_ Tagger          = (*tagger.Tagger)(nil)
	_ Publisher       = (*wordpress.Client)(nil)
)
