package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02T15:04:05"

var ValidStatuses = []string{"draft", "publish", "pending", "private"}

type Options struct {
	BaseURL  string
	Username string
	Password string
	Status   string
	Timeout  time.Duration
}

type Disclosure struct {
	GeneratedBy string
	GeneratedAt time.Time
}

type Post struct {
	Title      string
	Paragraphs []string
	Author     *string
	SourceURL  string
	Date       time.Time
	Tags       []string
	Disclosure *Disclosure // set when the text was rewritten by a language model
}

type wpPost struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Status  string  `json:"status"`
	DateGMT string  `json:"date_gmt,omitempty"`
	Tags    []int64 `json:"tags,omitempty"`
}

type wpTerm struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

// Client publishes articles through the WordPress REST API using
// application-password basic auth.
type Client struct {
	opts   Options
	client *http.Client
	api    string
}

func NewClient(opts Options, client *http.Client) *Client {
	if opts.Status == "" {
		opts.Status = "draft"
	}
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		opts:   opts,
		client: client,
		api:    strings.TrimRight(opts.BaseURL, "/") + "/wp-json/wp/v2",
	}
}

func (c *Client) Publish(ctx context.Context, post Post) (int64, error) {
	tagIDs := c.ensureTags(ctx, post.Tags)

	body := wpPost{
		Title:   post.Title,
		Content: RenderContent(post),
		Status:  c.opts.Status,
		Tags:    tagIDs,
	}
	if !post.Date.IsZero() {
		body.DateGMT = post.Date.UTC().Format(dateLayout)
	}

	var created struct {
		ID int64 `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, c.api+"/posts", body, &created); err != nil {
		return 0, fmt.Errorf("failed to create post: %w", err)
	}
	if created.ID == 0 {
		return 0, errors.New("failed to create post: response has no id")
	}

	slog.Debug("Post created", "post_id", created.ID, "title", post.Title, "status", c.opts.Status)
	return created.ID, nil
}

// PostExists reports whether the post is still present on the site.
func (c *Client) PostExists(ctx context.Context, postID int64) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.api+"/posts/"+strconv.FormatInt(postID, 10)+"?context=edit", nil)
	if err != nil {
		return false, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to check post %d: %w", postID, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return false, nil
	default:
		return false, fmt.Errorf("failed to check post %d: unexpected status %d", postID, resp.StatusCode)
	}
}

// ensureTags resolves tag names to ids, creating missing tags. Tags that cannot
// be resolved are logged and left off the post.
func (c *Client) ensureTags(ctx context.Context, names []string) []int64 {
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		id, err := c.tagID(ctx, name)
		if err != nil {
			slog.Warn("Failed to resolve tag", "tag", name, "error", err)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (c *Client) tagID(ctx context.Context, name string) (int64, error) {
	var found []wpTerm
	if err := c.doJSON(ctx, http.MethodGet, c.api+"/tags?search="+url.QueryEscape(name), nil, &found); err != nil {
		return 0, err
	}
	for _, term := range found {
		if strings.EqualFold(term.Name, name) || strings.EqualFold(term.Slug, name) {
			return term.ID, nil
		}
	}

	var created wpTerm
	err := c.doJSON(ctx, http.MethodPost, c.api+"/tags", wpTerm{Name: name, Slug: strings.ReplaceAll(strings.ToLower(name), " ", "-")}, &created)
	if err != nil {
		return 0, err
	}
	return created.ID, nil
}

func (c *Client) newRequest(ctx context.Context, method, target string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.opts.Username, c.opts.Password)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, target string, payload, out any) error {
	req, err := c.newRequest(ctx, method, target, payload)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: status %d: %s", method, target, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
