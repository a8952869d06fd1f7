package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"golang.org/x/sync/errgroup"

	"github.com/lysyi3m/rss-press/app/api"
	"github.com/lysyi3m/rss-press/app/database"
	"github.com/lysyi3m/rss-press/app/feed"
	"github.com/lysyi3m/rss-press/app/tasks"
)

const shutdownTimeout = 10 * time.Second

func registerCommands(parser *flags.Parser, app *application) {
	commands := []struct {
		name, short, long string
		data              any
	}{
		{"run", "Run one ingestion pass", "Fetch every active feed once, store new articles and hand them downstream.", &runCommand{app: app}},
		{"serve", "Run the scheduler and admin API", "Run an ingestion pass at start and then every poll interval, and serve the admin API.", &serveCommand{app: app}},
		{"add-feed", "Add a feed", "Register a feed URL with an optional display name.", &addFeedCommand{app: app}},
		{"import-feeds", "Import feeds from a file", "Import feeds from a YAML (feeds: list) or CSV (url,name header) file.", &importFeedsCommand{app: app}},
		{"list-feeds", "List feeds", "List active feeds, or every feed with --all.", &listFeedsCommand{app: app}},
		{"toggle-feed", "Toggle a feed", "Flip the active flag of a feed. Activating a feed clears its paywall flag.", &toggleFeedCommand{app: app}},
		{"mark-paywalled", "Flag a feed as paywalled", "Mark a feed as paywalled and deactivate it.", &markPaywalledCommand{app: app}},
		{"remove-feed", "Remove a feed", "Delete a feed together with its entries, articles and paywall hits.", &removeFeedCommand{app: app}},
		{"stats", "Show statistics", "Show feed, entry, paywall and article counters.", &statsCommand{app: app}},
		{"publish-pending", "Publish stored articles", "Re-drive rewriting, tagging and publishing for articles that are not processed yet.", &publishPendingCommand{app: app}},
		{"add-thematic-prompt", "Attach a prompt to a tag", "Attach a thematic prompt to a tag; the tagger includes it in its instructions.", &addThematicPromptCommand{app: app}},
	}

	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			panic(fmt.Sprintf("failed to register command %s: %v", c.name, err))
		}
	}
}

type runCommand struct {
	app *application
}

func (c *runCommand) Execute([]string) error {
	conf, db, err := c.app.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	svc, err := c.app.services(conf, db)
	if err != nil {
		return err
	}

	if err := syncFeedsFile(c.app.ctx, conf.FeedsFile, svc.Feeds); err != nil {
		return err
	}

	summary, err := tasks.NewRunner(svc).Run(c.app.ctx)
	if err != nil {
		return err
	}

	printSummary(os.Stdout, summary)
	return nil
}

type serveCommand struct {
	app *application
}

func (c *serveCommand) Execute([]string) error {
	conf, db, err := c.app.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	svc, err := c.app.services(conf, db)
	if err != nil {
		return err
	}
	if conf.EscalationPolicy == tasks.PolicyPrompt {
		slog.Warn("Prompt escalation policy reads from stdin while serving")
	}

	if err := syncFeedsFile(c.app.ctx, conf.FeedsFile, svc.Feeds); err != nil {
		return err
	}

	scheduler := tasks.NewScheduler(tasks.NewRunner(svc), conf.PollInterval)
	handler := api.NewHandler(svc.Feeds, scheduler, conf.Version)
	server := &http.Server{
		Addr:              ":" + conf.Port,
		Handler:           api.NewServer(handler, conf.APIAccessKey),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(c.app.ctx)

	g.Go(func() error {
		slog.Info("Starting server", "port", conf.Port, "version", conf.Version, "poll_interval", conf.PollInterval)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve http: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		scheduler.Start()
		<-gCtx.Done()

		slog.Info("Shutting down server...")
		scheduler.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("Server stopped")
	return nil
}

type addFeedCommand struct {
	app  *application
	Args struct {
		URL  string `positional-arg-name:"URL" required:"yes"`
		Name string `positional-arg-name:"NAME"`
	} `positional-args:"yes"`
}

func (c *addFeedCommand) Execute([]string) error {
	_, db, err := c.app.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	id, created, err := database.NewFeedRepository(db).AddFeed(c.app.ctx, c.Args.URL, c.Args.Name)
	if err != nil {
		return err
	}

	if created {
		fmt.Printf("Added feed %d: %s\n", id, c.Args.URL)
	} else {
		fmt.Printf("Feed already exists with id %d\n", id)
	}
	return nil
}

type importFeedsCommand struct {
	app  *application
	Args struct {
		Path string `positional-arg-name:"FILE" required:"yes"`
	} `positional-args:"yes"`
}

func (c *importFeedsCommand) Execute([]string) error {
	seeds, err := feed.LoadSeedFile(c.Args.Path)
	if err != nil {
		return err
	}

	_, db, err := c.app.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	task := tasks.NewImportFeedsTask(c.Args.Path, seeds, database.NewFeedRepository(db))
	task.Start()
	if err := task.Execute(c.app.ctx); err != nil {
		return err
	}

	r := task.Result()
	fmt.Printf("Imported %d feeds: %d added, %d existing, %d failed\n", r.Total, r.Added, r.Existing, r.Failed)
	return nil
}

type listFeedsCommand struct {
	app *application
	All bool `short:"a" long:"all" description:"Include inactive and paywalled feeds"`
}

func (c *listFeedsCommand) Execute([]string) error {
	_, db, err := c.app.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	feeds, err := database.NewFeedRepository(db).ListFeeds(c.app.ctx, c.All)
	if err != nil {
		return err
	}
	if len(feeds) == 0 {
		fmt.Println("No feeds")
		return nil
	}

	rows := make([][]string, 0, len(feeds))
	for _, f := range feeds {
		lastFetch := "never"
		if f.LastFetchAt != nil {
			lastFetch = f.LastFetchAt.Local().Format(time.DateTime)
		}
		rows = append(rows, []string{
			strconv.FormatInt(f.ID, 10), f.Name, f.URL,
			yesNo(f.IsActive), yesNo(f.IsPaywalled), strconv.Itoa(f.PaywallHitCount), lastFetch,
		})
	}

	return renderTable(os.Stdout, []string{"ID", "Name", "URL", "Active", "Paywalled", "Paywall hits", "Last fetch"}, rows)
}

type feedIDArgs struct {
	ID int64 `positional-arg-name:"FEED_ID" required:"yes"`
}

type toggleFeedCommand struct {
	app  *application
	Args feedIDArgs `positional-args:"yes"`
}

func (c *toggleFeedCommand) Execute([]string) error {
	_, db, err := c.app.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	repo := database.NewFeedRepository(db)
	f, err := repo.GetFeed(c.app.ctx, c.Args.ID)
	if err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("feed %d: %w", c.Args.ID, database.ErrFeedNotFound)
	}

	if err := repo.SetFeedActive(c.app.ctx, f.ID, !f.IsActive); err != nil {
		return err
	}

	state := "deactivated"
	if !f.IsActive {
		state = "activated"
	}
	fmt.Printf("Feed %d (%s) %s\n", f.ID, f.Name, state)
	return nil
}

type markPaywalledCommand struct {
	app  *application
	Args feedIDArgs `positional-args:"yes"`
}

func (c *markPaywalledCommand) Execute([]string) error {
	_, db, err := c.app.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.NewFeedRepository(db).MarkFeedPaywalled(c.app.ctx, c.Args.ID); err != nil {
		return err
	}

	fmt.Printf("Feed %d marked as paywalled\n", c.Args.ID)
	return nil
}

type removeFeedCommand struct {
	app  *application
	Args feedIDArgs `positional-args:"yes"`
}

func (c *removeFeedCommand) Execute([]string) error {
	_, db, err := c.app.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.NewFeedRepository(db).RemoveFeed(c.app.ctx, c.Args.ID); err != nil {
		return err
	}

	fmt.Printf("Feed %d removed\n", c.Args.ID)
	return nil
}

type statsCommand struct {
	app *application
}

func (c *statsCommand) Execute([]string) error {
	_, db, err := c.app.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := database.NewFeedRepository(db).GetStats(c.app.ctx)
	if err != nil {
		return err
	}

	totals := [][]string{
		{"Feeds", strconv.Itoa(stats.TotalFeeds)},
		{"Active feeds", strconv.Itoa(stats.ActiveFeeds)},
		{"Paywalled feeds", strconv.Itoa(stats.PaywalledFeeds)},
		{"Processed entries", strconv.Itoa(stats.ProcessedEntries)},
		{"Paywall hits", strconv.Itoa(stats.PaywallHits)},
		{"Articles", strconv.Itoa(stats.Articles)},
		{"Published articles", strconv.Itoa(stats.PublishedArticles)},
	}
	if err := renderTable(os.Stdout, []string{"Metric", "Value"}, totals); err != nil {
		return err
	}

	if len(stats.TopFeeds) == 0 {
		return nil
	}

	fmt.Println()
	rows := make([][]string, 0, len(stats.TopFeeds))
	for _, f := range stats.TopFeeds {
		rows = append(rows, []string{
			strconv.FormatInt(f.FeedID, 10), f.Name,
			strconv.Itoa(f.ProcessedCount), strconv.Itoa(f.PaywallHits),
		})
	}
	return renderTable(os.Stdout, []string{"ID", "Top feed", "Processed", "Paywall hits"}, rows)
}

type publishPendingCommand struct {
	app   *application
	Limit int `short:"n" long:"limit" default:"20" description:"Maximum number of articles to handle"`
}

func (c *publishPendingCommand) Execute([]string) error {
	conf, db, err := c.app.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	svc, err := c.app.services(conf, db)
	if err != nil {
		return err
	}

	summary, err := tasks.NewRunner(svc).PublishPending(c.app.ctx, c.Limit)
	if errors.Is(err, tasks.ErrPublishingDisabled) {
		return fmt.Errorf("%w: enable it with --publish and the WordPress options", err)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Handled %d pending articles, %d failed\n", summary.Attempted, summary.Failed)
	return nil
}

type addThematicPromptCommand struct {
	app  *application
	Args struct {
		Tag    string `positional-arg-name:"TAG" required:"yes"`
		Prompt string `positional-arg-name:"PROMPT" required:"yes"`
	} `positional-args:"yes"`
}

func (c *addThematicPromptCommand) Execute([]string) error {
	_, db, err := c.app.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	name, err := database.NewTagRepository(db).SetThematicPrompt(c.app.ctx, c.Args.Tag, c.Args.Prompt)
	if err != nil {
		return err
	}

	fmt.Printf("Thematic prompt set for tag %q\n", name)
	return nil
}

func printSummary(w io.Writer, s tasks.Summary) {
	status := "completed"
	if s.Interrupted {
		status = "interrupted"
	}
	fmt.Fprintf(w, "Run %s %s in %s\n", s.RunID, status, s.Duration.Round(time.Millisecond))

	rows := [][]string{
		{"Feeds", strconv.Itoa(s.Feeds)},
		{"Feeds failed", strconv.Itoa(s.FeedsFailed)},
		{"Feeds escalated", strconv.Itoa(s.FeedsEscalated)},
		{"Entries", strconv.Itoa(s.Entries)},
		{"Processed", strconv.Itoa(s.Processed)},
		{"Duplicates", strconv.Itoa(s.Duplicates)},
		{"Paywalled", strconv.Itoa(s.Paywalled)},
		{"Failed", strconv.Itoa(s.Failed)},
		{"Invalid", strconv.Itoa(s.Invalid)},
		{"Success rate", fmt.Sprintf("%.1f%%", s.SuccessRate()*100)},
	}
	if err := renderTable(w, []string{"Metric", "Value"}, rows); err != nil {
		slog.Warn("Failed to render summary", "error", err)
	}
}

func renderTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
	)

	table.Header(header)
	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return table.Render()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
