package tasks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessFeed_ShortContentIsPaywalled(t *testing.T) {
	f := newFixture(t)
	f.setFeed("/feed", entry{guid: "E1", link: "https://x/a1", title: "Teaser", content: "short"})
	source := f.addFeed("/feed", "Fixture")

	task := NewProcessFeedTask(source, f.svc)
	require.NoError(t, task.Execute(context.Background()))

	result := task.Result()
	assert.Equal(t, 1, result.Entries)
	assert.Equal(t, 1, result.Paywalled)
	assert.Zero(t, result.Processed)

	processed, err := f.svc.Entries.IsEntryProcessed(context.Background(), "E1")
	require.NoError(t, err)
	assert.False(t, processed)

	hits, err := f.svc.Paywalls.GetRecentPaywallHits(context.Background(), source.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
	assert.Zero(t, f.countRows("articles"))
	assert.Equal(t, 1, f.requests("/a1"), "the article page is tried before the teaser is judged")
}

func TestProcessFeed_TeaserDescriptionFetchesArticlePage(t *testing.T) {
	f := newFixture(t)
	var entries []entry
	for _, id := range []string{"t1", "t2", "t3", "t4", "t5", "t6"} {
		f.setPage("/stories/"+id, "text/html; charset=utf-8",
			`<html><body><div class="entry-content">`+cleanArticle("story "+id)+`</div></body></html>`)
		entries = append(entries, entry{
			guid:    id,
			link:    f.url("/stories/" + id),
			title:   "Story " + id,
			content: "<p>Continue reading on our site.</p>",
		})
	}
	f.setFeed("/feed", entries...)
	source := f.addFeed("/feed", "Fixture")

	task := NewProcessFeedTask(source, f.svc)
	require.NoError(t, task.Execute(context.Background()))

	result := task.Result()
	assert.Equal(t, 6, result.Processed)
	assert.Zero(t, result.Paywalled)
	assert.False(t, result.Escalated)
	assert.Zero(t, f.countRows("paywall_hits"))
	assert.Equal(t, 1, f.requests("/stories/t1"))

	article, err := f.svc.Articles.GetArticleByURL(context.Background(), f.url("/stories/t1"))
	require.NoError(t, err)
	require.NotNil(t, article)
	assert.Contains(t, article.Content, "Paragraph 1 about story t1")

	kept, err := f.svc.Feeds.GetFeed(context.Background(), source.ID)
	require.NoError(t, err)
	assert.True(t, kept.IsActive)
	assert.False(t, kept.IsPaywalled)
}

func TestProcessFeed_CleanArticleIsProcessed(t *testing.T) {
	f := newFixture(t)
	f.setFeed("/feed", entry{guid: "E2", link: "https://x/a2", title: "Clean", content: cleanArticle("storage engines")})
	source := f.addFeed("/feed", "Fixture")

	task := NewProcessFeedTask(source, f.svc)
	require.NoError(t, task.Execute(context.Background()))
	assert.Equal(t, 1, task.Result().Processed)

	processed, err := f.svc.Entries.IsEntryProcessed(context.Background(), "E2")
	require.NoError(t, err)
	assert.True(t, processed)

	article, err := f.svc.Articles.GetArticleByURL(context.Background(), "https://x/a2")
	require.NoError(t, err)
	require.NotNil(t, article)
	assert.Equal(t, "Clean", article.Title)
	assert.Contains(t, article.Content, "Paragraph 1 about storage engines")
	assert.False(t, article.IsProcessed, "article stays pending without a publisher")

	updated, err := f.svc.Feeds.GetFeed(context.Background(), source.ID)
	require.NoError(t, err)
	assert.NotNil(t, updated.LastFetchAt)
}

func TestProcessFeed_FetchesArticlePageWithoutInlineContent(t *testing.T) {
	f := newFixture(t)
	f.setPage("/articles/1", "text/html; charset=utf-8",
		`<html><head><title>Page</title></head><body><div class="entry-content"><h1>From The Page</h1>`+cleanArticle("page fetching")+`</div></body></html>`)
	f.setFeed("/feed", entry{guid: "page-1", link: f.url("/articles/1")})
	source := f.addFeed("/feed", "Fixture")

	task := NewProcessFeedTask(source, f.svc)
	require.NoError(t, task.Execute(context.Background()))
	assert.Equal(t, 1, task.Result().Processed)

	article, err := f.svc.Articles.GetArticleByURL(context.Background(), f.url("/articles/1"))
	require.NoError(t, err)
	require.NotNil(t, article)
	assert.Equal(t, "From The Page", article.Title)
}

func TestProcessFeed_MissingArticleFailsOnlyThatEntry(t *testing.T) {
	f := newFixture(t)
	f.setFeed("/feed",
		entry{guid: "gone", link: f.url("/articles/missing")},
		entry{guid: "ok", link: "https://x/ok", title: "Fine", content: cleanArticle("resilience")},
	)
	source := f.addFeed("/feed", "Fixture")

	task := NewProcessFeedTask(source, f.svc)
	require.NoError(t, task.Execute(context.Background()))

	result := task.Result()
	assert.Equal(t, 2, result.Entries)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Processed)
}

func TestProcessFeed_EntryWithoutIdentityIsInvalid(t *testing.T) {
	f := newFixture(t)
	f.setFeed("/feed", entry{title: "Orphan", content: cleanArticle("orphans")})
	source := f.addFeed("/feed", "Fixture")

	task := NewProcessFeedTask(source, f.svc)
	require.NoError(t, task.Execute(context.Background()))

	assert.Equal(t, 1, task.Result().Invalid)
	assert.Zero(t, f.countRows("processed_entries"))
}

func TestProcessFeed_CapsEntries(t *testing.T) {
	f := newFixture(t)
	f.svc.Options.MaxEntries = 2
	f.setFeed("/feed",
		entry{guid: "1", link: "https://x/1", content: cleanArticle("one")},
		entry{guid: "2", link: "https://x/2", content: cleanArticle("two")},
		entry{guid: "3", link: "https://x/3", content: cleanArticle("three")},
	)
	source := f.addFeed("/feed", "Fixture")

	task := NewProcessFeedTask(source, f.svc)
	require.NoError(t, task.Execute(context.Background()))

	assert.Equal(t, 2, task.Result().Processed)
	processed, err := f.svc.Entries.IsEntryProcessed(context.Background(), "3")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestProcessFeed_AutoFlagAfterThreshold(t *testing.T) {
	f := newFixture(t)
	var entries []entry
	for _, id := range []string{"p1", "p2", "p3", "p4", "p5", "p6"} {
		entries = append(entries, entry{guid: id, link: "https://x/" + id, content: "Subscribe to continue reading"})
	}
	f.setFeed("/feed", entries...)
	source := f.addFeed("/feed", "Fixture")

	task := NewProcessFeedTask(source, f.svc)
	require.NoError(t, task.Execute(context.Background()))

	result := task.Result()
	assert.Equal(t, 5, result.Paywalled, "processing stops once the feed is flagged")
	assert.True(t, result.Escalated)
	assert.Equal(t, DecisionMarkPaywalled, result.Escalation)

	flagged, err := f.svc.Feeds.GetFeed(context.Background(), source.ID)
	require.NoError(t, err)
	assert.True(t, flagged.IsPaywalled)
	assert.False(t, flagged.IsActive)

	active, err := f.svc.Feeds.GetActiveFeeds(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestProcessFeed_AutoIgnoreKeepsFeed(t *testing.T) {
	f := newFixture(t)
	f.svc.Escalation = AutoIgnore{}
	f.svc.Options.PaywallHitThreshold = 2
	f.setFeed("/feed",
		entry{guid: "p1", link: "https://x/p1", content: "tiny"},
		entry{guid: "p2", link: "https://x/p2", content: "tiny"},
		entry{guid: "p3", link: "https://x/p3", content: "tiny"},
	)
	source := f.addFeed("/feed", "Fixture")

	task := NewProcessFeedTask(source, f.svc)
	require.NoError(t, task.Execute(context.Background()))

	assert.Equal(t, 3, task.Result().Paywalled)
	assert.False(t, task.Result().Escalated)

	kept, err := f.svc.Feeds.GetFeed(context.Background(), source.ID)
	require.NoError(t, err)
	assert.True(t, kept.IsActive)
	assert.False(t, kept.IsPaywalled)
}

func TestProcessFeed_RemoveDecisionDeletesFeed(t *testing.T) {
	f := newFixture(t)
	f.svc.Escalation = policyFunc(func() Decision { return DecisionRemove })
	f.svc.Options.PaywallHitThreshold = 1
	f.setFeed("/feed", entry{guid: "p1", link: "https://x/p1", content: "tiny"})
	source := f.addFeed("/feed", "Fixture")

	task := NewProcessFeedTask(source, f.svc)
	require.NoError(t, task.Execute(context.Background()))

	removed, err := f.svc.Feeds.GetFeed(context.Background(), source.ID)
	require.NoError(t, err)
	assert.Nil(t, removed)
	assert.Zero(t, f.countRows("paywall_hits"))
}

func TestProcessFeed_FeedFetchFailure(t *testing.T) {
	f := newFixture(t)
	source := f.addFeed("/missing", "Missing")

	task := NewProcessFeedTask(source, f.svc)
	assert.Error(t, task.Execute(context.Background()))
	assert.Zero(t, task.Result().Entries)
}

func TestProcessFeed_CancelledContext(t *testing.T) {
	f := newFixture(t)
	f.setFeed("/feed", entry{guid: "E2", link: "https://x/a2", content: cleanArticle("cancellation")})
	source := f.addFeed("/feed", "Fixture")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task := NewProcessFeedTask(source, f.svc)
	assert.ErrorIs(t, task.Execute(ctx), context.Canceled)
	assert.Zero(t, f.countRows("processed_entries"))
}
