package cfg

import (
	"testing"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/rss-press/app/feed"
)

func parseOptions(t *testing.T, args ...string) Options {
	t.Helper()
	var opts Options
	_, err := flags.NewParser(&opts, flags.None).ParseArgs(args)
	require.NoError(t, err)
	return opts
}

func TestGetVersion(t *testing.T) {
	assert.NotEmpty(t, GetVersion())
}

func TestNewWithDefaults(t *testing.T) {
	cfg, err := New(parseOptions(t))
	require.NoError(t, err)

	assert.Equal(t, "./data/rss-press.db", cfg.DBPath)
	assert.Equal(t, 10*time.Second, cfg.Fetcher.Timeout)
	assert.Equal(t, 3, cfg.Fetcher.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.Fetcher.RetryDelay)
	assert.Equal(t, feed.DefaultUserAgent, cfg.Fetcher.UserAgent)
	assert.Equal(t, []string{"entry-content", "post-content", "article-content", "content", "article", "entry"}, cfg.Extractor.ContentClasses)
	assert.Equal(t, 20, cfg.Extractor.MinParagraphLength)
	assert.Equal(t, 100, cfg.Paywall.MinContentLength)
	assert.Equal(t, 7, cfg.Tasks.PaywallWindowDays)
	assert.Equal(t, 5, cfg.Tasks.PaywallHitThreshold)
	assert.Equal(t, 10, cfg.Tasks.MaxEntries)
	assert.Equal(t, "auto-flag", cfg.EscalationPolicy)
	assert.Equal(t, time.Hour, cfg.PollInterval)
	assert.Equal(t, "draft", cfg.WordPress.Status)
	assert.False(t, cfg.PublishEnabled)
	assert.False(t, cfg.RewriteEnabled)
}

func TestNewFromFlags(t *testing.T) {
	cfg, err := New(parseOptions(t,
		"--db-path", "/tmp/x.db",
		"--content-classes", "story-body",
		"--content-classes", "main-text",
		"--escalation-policy", "prompt",
		"--max-retries", "5",
		"--prefer-article-page",
		"--publish", "--wp-url", "https://blog.example.com", "--wp-user", "editor", "--wp-password", "pw",
		"--post-status", "publish",
	))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, []string{"story-body", "main-text"}, cfg.Extractor.ContentClasses)
	assert.Equal(t, "prompt", cfg.EscalationPolicy)
	assert.Equal(t, 5, cfg.Fetcher.MaxRetries)
	assert.True(t, cfg.Tasks.PreferArticlePage)
	assert.True(t, cfg.PublishEnabled)
	assert.Equal(t, "https://blog.example.com", cfg.WordPress.BaseURL)
	assert.Equal(t, "publish", cfg.WordPress.Status)
}

func TestNewFromEnvironment(t *testing.T) {
	t.Setenv("MAX_ENTRIES", "25")
	t.Setenv("POLL_INTERVAL", "15m")
	t.Setenv("CONTENT_CLASSES", "a,b")

	cfg, err := New(parseOptions(t))
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Tasks.MaxEntries)
	assert.Equal(t, 15*time.Minute, cfg.PollInterval)
	assert.Equal(t, []string{"a", "b"}, cfg.Extractor.ContentClasses)
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	cases := map[string][]string{
		"policy":    {"--escalation-policy", "shrug"},
		"status":    {"--post-status", "scheduled"},
		"retries":   {"--max-retries", "0"},
		"window":    {"--paywall-window-days", "0"},
		"threshold": {"--paywall-hit-threshold", "0"},
		"timeout":   {"--fetch-timeout", "0s"},
		"publish":   {"--publish"},
	}

	for name, args := range cases {
		_, err := New(parseOptions(t, args...))
		assert.Error(t, err, name)
	}
}

func TestApplyTimezone(t *testing.T) {
	original := time.Local
	t.Cleanup(func() { time.Local = original })

	require.NoError(t, ApplyTimezone("Europe/Berlin"))
	assert.Equal(t, "Europe/Berlin", time.Local.String())
	assert.Error(t, ApplyTimezone("Mars/Olympus"))
	assert.NoError(t, ApplyTimezone(""))
}
