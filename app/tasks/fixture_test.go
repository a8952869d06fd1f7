package tasks

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/rss-press/app/database"
	"github.com/lysyi3m/rss-press/app/feed"
)

type page struct {
	status      int
	contentType string
	body        string
}

// fixture serves feeds and article pages over HTTP and wires the real
// fetcher, parser, extractor and paywall detector to a temporary database.
type fixture struct {
	t     *testing.T
	srv   *httptest.Server
	db    *database.DB
	svc   *Services
	mu    sync.Mutex
	pages map[string]page
	hits  map[string]int
}

// routeToServer sends every request to the fixture server regardless of host,
// so links such as https://x/a1 resolve to fixture paths.
type routeToServer struct {
	target *url.URL
	next   http.RoundTripper
}

func (rt routeToServer) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.URL.Scheme = rt.target.Scheme
	r.URL.Host = rt.target.Host
	return rt.next.RoundTrip(r)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{t: t, pages: map[string]page{}, hits: map[string]int{}}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)

	target, err := url.Parse(f.srv.URL)
	require.NoError(t, err)
	client := f.srv.Client()
	client.Transport = routeToServer{target: target, next: client.Transport}

	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	f.db = db

	fetchOpts := feed.DefaultFetcherOptions()
	fetchOpts.MaxRetries = 1
	fetchOpts.RetryDelay = 0
	fetchOpts.HostInterval = 0

	f.svc = &Services{
		Feeds:      database.NewFeedRepository(db),
		Entries:    database.NewEntryRepository(db),
		Paywalls:   database.NewPaywallRepository(db),
		Articles:   database.NewArticleRepository(db),
		Tags:       database.NewTagRepository(db),
		Fetcher:    feed.NewFetcher(fetchOpts, client),
		Parser:     feed.NewParser(),
		Extractor:  feed.NewContentExtractor(feed.DefaultExtractorOptions()),
		Paywall:    feed.NewPaywallDetector(feed.DefaultPaywallOptions()),
		Escalation: AutoFlag{},
		Options:    DefaultOptions(),
	}
	return f
}

func (f *fixture) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.hits[r.URL.Path]++
	p, ok := f.pages[r.URL.Path]
	f.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	if p.contentType != "" {
		w.Header().Set("Content-Type", p.contentType)
	}
	if p.status != 0 {
		w.WriteHeader(p.status)
	}
	w.Write([]byte(p.body))
}

func (f *fixture) url(path string) string {
	return f.srv.URL + path
}

func (f *fixture) setPage(path, contentType, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[path] = page{contentType: contentType, body: body}
}

func (f *fixture) requests(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

type entry struct {
	guid    string
	link    string
	title   string
	content string
}

func (f *fixture) setFeed(path string, entries ...entry) {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel><title>Fixture</title>`)
	for _, e := range entries {
		b.WriteString("<item>")
		if e.title != "" {
			fmt.Fprintf(&b, "<title>%s</title>", e.title)
		}
		if e.guid != "" {
			fmt.Fprintf(&b, "<guid>%s</guid>", e.guid)
		}
		if e.link != "" {
			fmt.Fprintf(&b, "<link>%s</link>", e.link)
		}
		if e.content != "" {
			fmt.Fprintf(&b, "<description><![CDATA[%s]]></description>", e.content)
		}
		b.WriteString("</item>")
	}
	b.WriteString("</channel></rss>")

	f.setPage(path, "application/rss+xml", b.String())
}

func (f *fixture) addFeed(path, name string) database.Feed {
	f.t.Helper()
	id, _, err := f.svc.Feeds.AddFeed(f.t.Context(), f.url(path), name)
	require.NoError(f.t, err)
	got, err := f.svc.Feeds.GetFeed(f.t.Context(), id)
	require.NoError(f.t, err)
	return *got
}

// cleanArticle returns HTML of roughly 500 characters in five paragraphs.
func cleanArticle(topic string) string {
	var b strings.Builder
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&b, "<p>Paragraph %d about %s explains the situation in enough detail to be useful to readers.</p>", i, topic)
	}
	return b.String()
}

func (f *fixture) countRows(table string) int {
	f.t.Helper()
	var n int
	require.NoError(f.t, f.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func articleFixture(t *testing.T, f *fixture, url string) database.Article {
	t.Helper()
	source := f.addFeed("/articles-feed", "Articles")
	return database.Article{
		FeedID:  source.ID,
		URL:     url,
		Title:   "Stored article",
		Content: "First stored paragraph.\n\nSecond stored paragraph.",
	}
}
