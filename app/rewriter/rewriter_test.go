package rewriter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, reply string, status int) (*httptest.Server, *chatRequest) {
	t.Helper()
	got := &chatRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(got))

		if status != http.StatusOK {
			http.Error(w, "model not loaded", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": reply}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func newTestClient(baseURL string) *Client {
	opts := DefaultOptions()
	opts.BaseURL = baseURL + "/v1/"
	opts.Model = "mistral-7b-instruct"
	return NewClient(opts, nil)
}

func TestRewrite(t *testing.T) {
	reply := "TITLE: A Fresh Take\n\nHere is the rewrite:\n\nThe first rewritten paragraph is long enough to count.\n\nok\n\nThe second rewritten paragraph follows right after it."
	srv, got := newTestServer(t, reply, http.StatusOK)

	result, err := newTestClient(srv.URL).Rewrite(context.Background(), Source{
		Title:   "Original",
		Content: "Original body",
		URL:     "https://example.com/a",
	})
	require.NoError(t, err)

	assert.Equal(t, "A Fresh Take", result.Title)
	assert.Equal(t, []string{
		"The first rewritten paragraph is long enough to count.",
		"The second rewritten paragraph follows right after it.",
	}, result.Paragraphs)

	assert.Equal(t, "mistral-7b-instruct", got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, "Original Title: Original")
	assert.Contains(t, got.Messages[0].Content, "informative style with a neutral tone")
}

func TestRewriteServerError(t *testing.T) {
	srv, _ := newTestServer(t, "", http.StatusServiceUnavailable)

	_, err := newTestClient(srv.URL).Rewrite(context.Background(), Source{Title: "T", Content: "C"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestRewriteEmptyReply(t *testing.T) {
	srv, _ := newTestServer(t, "TITLE: Only a title", http.StatusOK)

	_, err := newTestClient(srv.URL).Rewrite(context.Background(), Source{Title: "T", Content: "C"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestRewriteRequiresTitle(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:0").Rewrite(context.Background(), Source{Content: "C"})
	assert.ErrorIs(t, err, ErrMissingTitle)
}

func TestParseRewriteKeepsOriginalTitle(t *testing.T) {
	result := ParseRewrite("TITLE: [Rewritten Title]\nA paragraph that is certainly longer than thirty characters.", "Original")
	assert.Equal(t, "Original", result.Title)
	assert.Len(t, result.Paragraphs, 1)

	result = ParseRewrite("# Heading that should be skipped entirely by the parser\nShort\nA real paragraph with more than thirty characters in it.", "Original")
	assert.Equal(t, "Original", result.Title)
	assert.Equal(t, []string{"A real paragraph with more than thirty characters in it."}, result.Paragraphs)
}
