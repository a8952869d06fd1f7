package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"github.com/lysyi3m/rss-press/app/cfg"
	"github.com/lysyi3m/rss-press/app/database"
	"github.com/lysyi3m/rss-press/app/feed"
	"github.com/lysyi3m/rss-press/app/rewriter"
	"github.com/lysyi3m/rss-press/app/tagger"
	"github.com/lysyi3m/rss-press/app/tasks"
	"github.com/lysyi3m/rss-press/app/wordpress"
)

// application carries the parsed global options and the signal-aware context into commands
type application struct {
	opts cfg.Options
	ctx  context.Context
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
	}

	app := &application{ctx: context.Background()}

	parser := flags.NewParser(&app.opts, flags.Default)
	parser.CommandHandler = app.execute
	registerCommands(parser, app)

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}
}

func (a *application) execute(command flags.Commander, args []string) error {
	if command == nil {
		return nil
	}

	setupLogging(a.opts.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	a.ctx = ctx

	return command.Execute(args)
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func (a *application) config() (*cfg.Cfg, error) {
	c, err := cfg.New(a.opts)
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyTimezone(c.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", c.Timezone, "error", err)
	}
	return c, nil
}

func (a *application) openStore() (*cfg.Cfg, *database.DB, error) {
	c, err := a.config()
	if err != nil {
		return nil, nil, err
	}

	db, err := database.Open(c.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	slog.Debug("Connected to database", "path", c.DBPath, "version", c.Version)

	return c, db, nil
}

// services wires the store, the ingestion components and the optional
// downstream clients for one process.
func (a *application) services(c *cfg.Cfg, db *database.DB) (*tasks.Services, error) {
	escalation, err := tasks.NewEscalationPolicy(c.EscalationPolicy, os.Stdin, os.Stdout)
	if err != nil {
		return nil, err
	}

	svc := &tasks.Services{
		Feeds:      database.NewFeedRepository(db),
		Entries:    database.NewEntryRepository(db),
		Paywalls:   database.NewPaywallRepository(db),
		Articles:   database.NewArticleRepository(db),
		Tags:       database.NewTagRepository(db),
		Fetcher:    feed.NewFetcher(c.Fetcher, nil),
		Parser:     feed.NewParser(),
		Extractor:  feed.NewContentExtractor(c.Extractor),
		Paywall:    feed.NewPaywallDetector(c.Paywall),
		Escalation: escalation,
		Options:    c.Tasks,
	}

	var completer tagger.Completer
	if c.RewriteEnabled {
		lm := rewriter.NewClient(c.Rewriter, nil)
		svc.Rewriter = lm
		completer = lm
	}
	svc.Tagger = tagger.New(completer, svc.Tags, c.MaxTags)

	if c.PublishEnabled {
		svc.Publisher = wordpress.NewClient(c.WordPress, nil)
	}

	slog.Debug("Services configured",
		"escalation_policy", c.EscalationPolicy,
		"rewrite", c.RewriteEnabled,
		"publish", c.PublishEnabled)

	return svc, nil
}

// syncFeedsFile imports the configured seed file, if any, before a run.
func syncFeedsFile(ctx context.Context, path string, feedRepo database.FeedRepositoryInterface) error {
	if path == "" {
		return nil
	}

	seeds, err := feed.LoadSeedFile(path)
	if err != nil {
		return fmt.Errorf("failed to load feeds file: %w", err)
	}

	task := tasks.NewImportFeedsTask(path, seeds, feedRepo)
	task.Start()
	return task.Execute(ctx)
}
