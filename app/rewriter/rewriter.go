package rewriter

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrMissingTitle = errors.New("article has no title")

type Source struct {
	Title   string
	Content string
	URL     string
}

type Result struct {
	Title      string
	Paragraphs []string
}

func (r *Result) Content() string {
	return strings.Join(r.Paragraphs, "\n\n")
}

const rewritePrompt = `You are a professional article rewriter. Rewrite the following article in a %s style with a %s tone.
Maintain the key information and meaning, but use different wording and structure.
Format the response with a clear title and paragraphs.

Original Title: %s

Original Content:
%s

Please format your response as follows:
TITLE: [Rewritten Title]

[Rewritten content organized in paragraphs]`

// Rewrite asks the model for a reworded version of src.
func (c *Client) Rewrite(ctx context.Context, src Source) (*Result, error) {
	if strings.TrimSpace(src.Title) == "" {
		return nil, ErrMissingTitle
	}

	prompt := fmt.Sprintf(rewritePrompt, c.opts.Style, c.opts.Tone, src.Title, src.Content)
	reply, err := c.Complete(ctx, prompt, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to rewrite %s: %w", src.URL, err)
	}

	result := ParseRewrite(reply, src.Title)
	if len(result.Paragraphs) == 0 {
		return nil, fmt.Errorf("failed to rewrite %s: %w", src.URL, ErrEmptyResponse)
	}
	return result, nil
}

// ParseRewrite reads a "TITLE:" line followed by paragraphs. Preamble lines are
// skipped until the first paragraph longer than 30 characters; after that, lines
// of 10 characters or fewer are dropped.
func ParseRewrite(reply, originalTitle string) *Result {
	result := &Result{}
	started := false

	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if _, title, ok := strings.Cut(line, "TITLE:"); ok {
			result.Title = strings.Trim(strings.TrimSpace(title), `*"`)
			continue
		}

		if !started {
			if len(line) > 30 && !strings.HasPrefix(line, "#") {
				started = true
				result.Paragraphs = append(result.Paragraphs, line)
			}
			continue
		}

		if len(line) > 10 {
			result.Paragraphs = append(result.Paragraphs, line)
		}
	}

	if result.Title == "" || result.Title == "[Rewritten Title]" || result.Title == "Rewritten Title" {
		result.Title = originalTitle
	}
	return result
}
