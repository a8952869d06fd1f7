package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTag(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Machine Learning", "machine-learning"},
		{"  C++ & Rust!  ", "c-rust"},
		{"--already--hyphenated--", "already-hyphenated"},
		{"AI/ML", "aiml"},
		{"Open   Source", "open-source"},
		{"!!!", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeTag(tt.in), "input %q", tt.in)
	}
}

func TestAddArticleTags(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	feedID, _, err := NewFeedRepository(db).AddFeed(ctx, "https://example.com/rss", "Example")
	require.NoError(t, err)
	articles := NewArticleRepository(db)
	tags := NewTagRepository(db)

	a1, err := articles.SaveArticle(ctx, Article{FeedID: feedID, URL: "https://example.com/1", Title: "1", Content: "c"})
	require.NoError(t, err)
	a2, err := articles.SaveArticle(ctx, Article{FeedID: feedID, URL: "https://example.com/2", Title: "2", Content: "c"})
	require.NoError(t, err)

	names, err := tags.AddArticleTags(ctx, a1, []string{"Go Lang", "go-lang", "Databases", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"go-lang", "databases"}, names)

	_, err = tags.AddArticleTags(ctx, a2, []string{"go lang"})
	require.NoError(t, err)

	// linking the same tag twice must not bump the counter
	_, err = tags.AddArticleTags(ctx, a2, []string{"Go Lang"})
	require.NoError(t, err)

	got, err := tags.GetArticleTags(ctx, a1)
	require.NoError(t, err)
	assert.Equal(t, []string{"databases", "go-lang"}, got)

	popular, err := tags.PopularTags(ctx, 10)
	require.NoError(t, err)
	require.Len(t, popular, 2)
	assert.Equal(t, "go-lang", popular[0].Name)
	assert.Equal(t, 2, popular[0].UsageCount)
	assert.Equal(t, 1, popular[1].UsageCount)
}

func TestThematicPrompts(t *testing.T) {
	ctx := context.Background()
	tags := NewTagRepository(newTestDB(t))

	name, err := tags.SetThematicPrompt(ctx, "Climate Change", "Focus on policy impact")
	require.NoError(t, err)
	assert.Equal(t, "climate-change", name)

	_, err = tags.SetThematicPrompt(ctx, "climate change", "Focus on science")
	require.NoError(t, err)

	prompts, err := tags.ThematicPrompts(ctx)
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	require.NotNil(t, prompts[0].ThematicPrompt)
	assert.Equal(t, "Focus on science", *prompts[0].ThematicPrompt)

	_, err = tags.SetThematicPrompt(ctx, "???", "nothing")
	assert.Error(t, err)
}
