package cfg

import (
	"time"

	"github.com/lysyi3m/rss-press/app/feed"
	"github.com/lysyi3m/rss-press/app/rewriter"
	"github.com/lysyi3m/rss-press/app/tasks"
	"github.com/lysyi3m/rss-press/app/wordpress"
)

// Options holds the raw command line and environment settings shared by all commands
type Options struct {
	// Storage
	DBPath    string `long:"db-path" env:"DB_PATH" default:"./data/rss-press.db" description:"SQLite database file"`
	FeedsFile string `long:"feeds-file" env:"FEEDS_FILE" description:"YAML or CSV feed list imported at startup (optional)"`

	// Fetching
	FetchTimeout    time.Duration `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"10s" description:"Timeout for a single HTTP request"`
	MaxRetries      int           `long:"max-retries" env:"MAX_RETRIES" default:"3" description:"Attempts per URL before giving up"`
	RetryDelay      time.Duration `long:"retry-delay" env:"RETRY_DELAY" default:"5s" description:"Base delay between attempts"`
	HostInterval    time.Duration `long:"host-interval" env:"HOST_INTERVAL" default:"1s" description:"Minimum spacing between requests to one host"`
	UserAgent       string        `long:"user-agent" env:"USER_AGENT" description:"Desktop user agent (defaults to a current browser)"`
	MobileUserAgent string        `long:"mobile-user-agent" env:"MOBILE_USER_AGENT" description:"User agent used after a 403"`

	// Extraction and paywall detection
	MinParagraphLength  int      `long:"min-paragraph-length" env:"MIN_PARAGRAPH_LENGTH" default:"20" description:"Paragraphs must be longer than this many characters"`
	MaxParagraphs       int      `long:"max-paragraphs" env:"MAX_PARAGRAPHS" default:"5" description:"Paragraphs kept from a fetched article page"`
	ContentClasses      []string `long:"content-classes" env:"CONTENT_CLASSES" env-delim:"," default:"entry-content" default:"post-content" default:"article-content" default:"content" default:"article" default:"entry" description:"Content container classes in priority order"`
	PaywallMinLength    int      `long:"paywall-min-length" env:"PAYWALL_MIN_LENGTH" default:"100" description:"Content shorter than this is treated as a paywall teaser"`
	PaywallWindowDays   int      `long:"paywall-window-days" env:"PAYWALL_WINDOW_DAYS" default:"7" description:"Trailing window for counting paywall hits"`
	PaywallHitThreshold int      `long:"paywall-hit-threshold" env:"PAYWALL_HIT_THRESHOLD" default:"5" description:"Hits within the window that trigger escalation"`
	EscalationPolicy    string   `long:"escalation-policy" env:"ESCALATION_POLICY" default:"auto-flag" description:"auto-flag, auto-deactivate, auto-ignore or prompt"`

	// Pipeline
	MaxEntries        int           `long:"max-entries" env:"MAX_ENTRIES" default:"10" description:"Entries handled per feed per run (0 for all)"`
	PreferArticlePage bool          `long:"prefer-article-page" env:"PREFER_ARTICLE_PAGE" description:"Fetch the article page even when the feed carries content"`
	PollInterval      time.Duration `long:"poll-interval" env:"POLL_INTERVAL" default:"1h" description:"Interval between ingestion runs in serve mode"`

	// Rewriting
	Rewrite      bool          `long:"rewrite" env:"REWRITE_ENABLED" description:"Rewrite articles with the language model before publishing"`
	LMURL        string        `long:"lm-url" env:"LM_URL" default:"http://localhost:1234/v1" description:"OpenAI-compatible API base URL"`
	LMModel      string        `long:"lm-model" env:"LM_MODEL" description:"Model name"`
	LMTimeout    time.Duration `long:"lm-timeout" env:"LM_TIMEOUT" default:"120s" description:"Language model request timeout"`
	RewriteStyle string        `long:"rewrite-style" env:"REWRITE_STYLE" default:"informative" description:"Writing style for rewrites"`
	RewriteTone  string        `long:"rewrite-tone" env:"REWRITE_TONE" default:"neutral" description:"Tone for rewrites"`

	// Publishing
	Publish    bool   `long:"publish" env:"PUBLISH_ENABLED" description:"Publish processed articles to WordPress"`
	WPURL      string `long:"wp-url" env:"WP_URL" description:"WordPress site URL"`
	WPUser     string `long:"wp-user" env:"WP_USER" description:"WordPress user"`
	WPPassword string `long:"wp-password" env:"WP_PASSWORD" description:"WordPress application password"`
	PostStatus string `long:"post-status" env:"POST_STATUS" default:"draft" description:"Status of created posts"`
	MaxTags    int    `long:"max-tags" env:"MAX_TAGS" default:"5" description:"Tags per article"`

	// Server
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

type Cfg struct {
	DBPath    string
	FeedsFile string

	Fetcher   feed.FetcherOptions
	Extractor feed.ExtractorOptions
	Paywall   feed.PaywallOptions
	Tasks     tasks.Options

	EscalationPolicy string
	PollInterval     time.Duration

	RewriteEnabled bool
	Rewriter       rewriter.Options

	PublishEnabled bool
	WordPress      wordpress.Options
	MaxTags        int

	Port         string
	APIAccessKey string

	Timezone string
	Debug    bool
	Version  string
}
