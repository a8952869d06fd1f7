package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

type RequestKind int

const (
	KindFeed RequestKind = iota
	KindArticle
)

func (k RequestKind) String() string {
	if k == KindArticle {
		return "article"
	}
	return "feed"
}

const (
	DefaultUserAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	DefaultMobileUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"

	feedAccept    = "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.7"
	articleAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

	defaultMaxBodySize = 10 << 20
	throttleMultiplier = 5
)

var (
	ErrNotFound              = errors.New("resource not found")
	ErrInvalidURL            = errors.New("invalid URL")
	ErrUnexpectedContentType = errors.New("unexpected content type")
)

// FetchError is returned once every attempt for a URL has failed
type FetchError struct {
	URL        string
	Attempts   int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s failed after %d attempt(s), last status %d: %v", e.URL, e.Attempts, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type FetcherOptions struct {
	Timeout         time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	UserAgent       string
	MobileUserAgent string
	HostInterval    time.Duration
	MaxBodySize     int64
}

func DefaultFetcherOptions() FetcherOptions {
	return FetcherOptions{
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		RetryDelay:      5 * time.Second,
		UserAgent:       DefaultUserAgent,
		MobileUserAgent: DefaultMobileUserAgent,
		HostInterval:    time.Second,
		MaxBodySize:     defaultMaxBodySize,
	}
}

// Fetcher retrieves feeds and article pages with retries, user-agent rotation
// and per-host politeness.
type Fetcher struct {
	client  *http.Client
	opts    FetcherOptions
	limiter *HostLimiter
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewFetcher(opts FetcherOptions, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = defaultMaxBodySize
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MobileUserAgent == "" {
		opts.MobileUserAgent = DefaultMobileUserAgent
	}

	return &Fetcher{
		client:  client,
		opts:    opts,
		limiter: NewHostLimiter(opts.HostInterval),
		sleep:   sleepContext,
	}
}

// Fetch downloads rawURL. Article pages are required to be HTML and are decoded to UTF-8.
// A 404 fails immediately with ErrNotFound; other failures are retried with a
// linearly growing delay, switching to a mobile user agent after a 403.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, kind RequestKind) ([]byte, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	target := u.String()

	userAgent := f.opts.UserAgent
	var lastErr error
	var lastStatus int

	for attempt := 1; attempt <= f.opts.MaxRetries; attempt++ {
		if attempt > 1 {
			if err := f.sleep(ctx, f.opts.RetryDelay*time.Duration(attempt)); err != nil {
				return nil, err
			}
		}

		if err := f.limiter.Wait(ctx, u.Host); err != nil {
			return nil, err
		}

		body, status, err := f.do(ctx, target, kind, userAgent)
		if err == nil {
			return body, nil
		}
		lastErr, lastStatus = err, status

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if errors.Is(err, ErrNotFound) {
			slog.Warn("Resource not found", "kind", kind.String(), "url", target)
			return nil, &FetchError{URL: target, Attempts: attempt, StatusCode: status, Err: err}
		}

		slog.Warn("Fetch attempt failed",
			"kind", kind.String(),
			"url", target,
			"attempt", attempt,
			"max_attempts", f.opts.MaxRetries,
			"status", status,
			"error", err)

		switch status {
		case http.StatusForbidden:
			if userAgent != f.opts.MobileUserAgent {
				slog.Debug("Switching to mobile user agent", "url", target)
				userAgent = f.opts.MobileUserAgent
			}
		case http.StatusTooManyRequests:
			if attempt < f.opts.MaxRetries {
				if err := f.sleep(ctx, f.opts.RetryDelay*throttleMultiplier); err != nil {
					return nil, err
				}
			}
		}
	}

	slog.Error("Fetch failed", "kind", kind.String(), "url", target, "attempts", f.opts.MaxRetries, "error", lastErr)
	return nil, &FetchError{URL: target, Attempts: f.opts.MaxRetries, StatusCode: lastStatus, Err: lastErr}
}

func (f *Fetcher) do(ctx context.Context, target string, kind RequestKind, userAgent string) ([]byte, int, error) {
	timeoutCtx := ctx
	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc
		timeoutCtx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if kind == KindArticle {
		req.Header.Set("Accept", articleAccept)
	} else {
		req.Header.Set("Accept", feedAccept)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, resp.StatusCode, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	var body io.Reader = io.LimitReader(resp.Body, f.opts.MaxBodySize)
	if kind == KindArticle {
		contentType := resp.Header.Get("Content-Type")
		if !isHTMLContentType(contentType) {
			return nil, resp.StatusCode, fmt.Errorf("%w: %q", ErrUnexpectedContentType, contentType)
		}

		decoded, err := charset.NewReader(body, contentType)
		if err != nil {
			return nil, resp.StatusCode, fmt.Errorf("failed to decode response body: %w", err)
		}
		body = decoded
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, resp.StatusCode, nil
}

func isHTMLContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
