package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/rss-press/app/cfg"
	"github.com/lysyi3m/rss-press/app/database"
	"github.com/lysyi3m/rss-press/app/tasks"
)

func TestSyncFeedsFile(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	path := filepath.Join(t.TempDir(), "feeds.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
feeds:
  - name: One
    url: https://one.example.com/feed
  - name: Two
    url: https://two.example.com/feed
    active: false
`), 0o644))

	repo := database.NewFeedRepository(db)
	require.NoError(t, syncFeedsFile(context.Background(), path, repo))
	require.NoError(t, syncFeedsFile(context.Background(), path, repo), "sync is idempotent")

	all, err := repo.ListFeeds(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := repo.GetActiveFeeds(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "One", active[0].Name)

	assert.NoError(t, syncFeedsFile(context.Background(), "", repo))
	assert.Error(t, syncFeedsFile(context.Background(), filepath.Join(t.TempDir(), "missing.yml"), repo))
}

func TestServicesWiring(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	app := &application{ctx: context.Background()}
	app.opts = cfg.Options{
		DBPath: "unused", FetchTimeout: time.Second, MaxRetries: 1, PaywallWindowDays: 7,
		PaywallHitThreshold: 5, PollInterval: time.Hour, EscalationPolicy: tasks.PolicyAutoFlag,
		PostStatus: "draft",
	}
	conf, err := app.config()
	require.NoError(t, err)

	svc, err := app.services(conf, db)
	require.NoError(t, err)
	assert.NotNil(t, svc.Tagger)
	assert.Nil(t, svc.Rewriter)
	assert.Nil(t, svc.Publisher)
	assert.IsType(t, tasks.AutoFlag{}, svc.Escalation)

	conf.RewriteEnabled = true
	conf.PublishEnabled = true
	svc, err = app.services(conf, db)
	require.NoError(t, err)
	assert.NotNil(t, svc.Rewriter)
	assert.NotNil(t, svc.Publisher)
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, tasks.Summary{
		RunID:  "run-1",
		Feeds:  2,
		Counts: tasks.Counts{Entries: 5, Processed: 3, Duplicates: 1, Failed: 1},
	})

	out := buf.String()
	assert.Contains(t, out, "Run run-1 completed")
	assert.Contains(t, out, "75.0%")
}
