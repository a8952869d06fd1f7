package tasks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/rss-press/app/feed"
)

func TestImportFeedsTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.Feeds.AddFeed(ctx, "https://existing.example.com/rss", "Existing")
	require.NoError(t, err)

	inactive := false
	seeds := []feed.Seed{
		{Name: "New", URL: "https://new.example.com/rss"},
		{Name: "Existing again", URL: "HTTPS://EXISTING.example.com/rss"},
		{Name: "No URL"},
		{Name: "Bad", URL: "ftp://bad.example.com"},
		{Name: "Disabled", URL: "https://disabled.example.com/rss", Active: &inactive},
	}

	task := NewImportFeedsTask("feeds.yml", seeds, f.svc.Feeds)
	require.NoError(t, task.Execute(ctx))

	assert.Equal(t, ImportResult{Total: 5, Added: 2, Existing: 1, Failed: 2}, task.Result())

	active, err := f.svc.Feeds.GetActiveFeeds(ctx)
	require.NoError(t, err)
	var names []string
	for _, a := range active {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"Existing", "New"}, names)
}

func TestImportFeedsTask_KeepsPaywalledFeedsOff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, _, err := f.svc.Feeds.AddFeed(ctx, "https://paywalled.example.com/rss", "Paywalled")
	require.NoError(t, err)
	require.NoError(t, f.svc.Feeds.MarkFeedPaywalled(ctx, id))

	active := true
	task := NewImportFeedsTask("feeds.yml", []feed.Seed{{URL: "https://paywalled.example.com/rss", Active: &active}}, f.svc.Feeds)
	require.NoError(t, task.Execute(ctx))

	got, err := f.svc.Feeds.GetFeed(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.IsPaywalled)
	assert.False(t, got.IsActive)
}
