package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/lysyi3m/rss-press/app/feed"
	"github.com/lysyi3m/rss-press/app/rewriter"
	"github.com/lysyi3m/rss-press/app/tasks"
	"github.com/lysyi3m/rss-press/app/wordpress"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

// New validates opts and derives the per-component settings.
func New(opts Options) (*Cfg, error) {
	if err := validate(opts); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	fetcher := feed.DefaultFetcherOptions()
	fetcher.Timeout = opts.FetchTimeout
	fetcher.MaxRetries = opts.MaxRetries
	fetcher.RetryDelay = opts.RetryDelay
	fetcher.HostInterval = opts.HostInterval
	fetcher.UserAgent = cmp.Or(opts.UserAgent, feed.DefaultUserAgent)
	fetcher.MobileUserAgent = cmp.Or(opts.MobileUserAgent, feed.DefaultMobileUserAgent)

	extractor := feed.DefaultExtractorOptions()
	extractor.MinParagraphLength = opts.MinParagraphLength
	extractor.MaxParagraphs = opts.MaxParagraphs
	if classes := cleanList(opts.ContentClasses); len(classes) > 0 {
		extractor.ContentClasses = classes
	}

	paywall := feed.DefaultPaywallOptions()
	paywall.MinContentLength = opts.PaywallMinLength

	lm := rewriter.DefaultOptions()
	lm.BaseURL = opts.LMURL
	lm.Model = opts.LMModel
	lm.Timeout = opts.LMTimeout
	lm.Style = opts.RewriteStyle
	lm.Tone = opts.RewriteTone

	cfg := &Cfg{
		DBPath:    opts.DBPath,
		FeedsFile: opts.FeedsFile,
		Fetcher:   fetcher,
		Extractor: extractor,
		Paywall:   paywall,
		Tasks: tasks.Options{
			MaxEntries:          opts.MaxEntries,
			PreferArticlePage:   opts.PreferArticlePage,
			PaywallWindowDays:   opts.PaywallWindowDays,
			PaywallHitThreshold: opts.PaywallHitThreshold,
		},
		EscalationPolicy: opts.EscalationPolicy,
		PollInterval:     opts.PollInterval,
		RewriteEnabled:   opts.Rewrite,
		Rewriter:         lm,
		PublishEnabled:   opts.Publish,
		WordPress: wordpress.Options{
			BaseURL:  opts.WPURL,
			Username: opts.WPUser,
			Password: opts.WPPassword,
			Status:   opts.PostStatus,
			Timeout:  opts.FetchTimeout * 3,
		},
		MaxTags:      opts.MaxTags,
		Port:         opts.Port,
		APIAccessKey: opts.APIAccessKey,
		Timezone:     opts.Timezone,
		Debug:        opts.Debug,
		Version:      GetVersion(),
	}

	return cfg, nil
}

func validate(opts Options) error {
	var errs []error

	if strings.TrimSpace(opts.DBPath) == "" {
		errs = append(errs, errors.New("db-path is required"))
	}
	if opts.FetchTimeout <= 0 {
		errs = append(errs, errors.New("fetch-timeout must be positive"))
	}
	if opts.MaxRetries < 1 {
		errs = append(errs, errors.New("max-retries must be at least 1"))
	}
	if opts.RetryDelay < 0 || opts.HostInterval < 0 {
		errs = append(errs, errors.New("retry-delay and host-interval must not be negative"))
	}
	if opts.PaywallWindowDays < 1 {
		errs = append(errs, errors.New("paywall-window-days must be positive"))
	}
	if opts.PaywallHitThreshold < 1 {
		errs = append(errs, errors.New("paywall-hit-threshold must be positive"))
	}
	if opts.MaxEntries < 0 {
		errs = append(errs, errors.New("max-entries must not be negative"))
	}
	if opts.PollInterval <= 0 {
		errs = append(errs, errors.New("poll-interval must be positive"))
	}
	if !slices.Contains(tasks.EscalationPolicies, opts.EscalationPolicy) {
		errs = append(errs, fmt.Errorf("unknown escalation-policy %q (want one of %s)",
			opts.EscalationPolicy, strings.Join(tasks.EscalationPolicies, ", ")))
	}
	if !slices.Contains(wordpress.ValidStatuses, opts.PostStatus) {
		errs = append(errs, fmt.Errorf("unknown post-status %q (want one of %s)",
			opts.PostStatus, strings.Join(wordpress.ValidStatuses, ", ")))
	}
	if opts.Publish && (opts.WPURL == "" || opts.WPUser == "" || opts.WPPassword == "") {
		errs = append(errs, errors.New("wp-url, wp-user and wp-password are required when publishing"))
	}
	if opts.Rewrite && opts.LMURL == "" {
		errs = append(errs, errors.New("lm-url is required when rewriting"))
	}

	return errors.Join(errs...)
}

func cleanList(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// ApplyTimezone sets time.Local for log and table output.
func ApplyTimezone(timezone string) error {
	if timezone == "" {
		return nil
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", timezone, err)
	}
	time.Local = loc
	slog.Debug("Timezone configured", "timezone", timezone)
	return nil
}
