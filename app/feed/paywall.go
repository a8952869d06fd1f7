package feed

import (
	"log/slog"
	"strings"
)

type PaywallOptions struct {
	MinContentLength         int // anything shorter is treated as a teaser
	SubstantialParagraph     int // paragraphs longer than this count as real content
	MinSubstantialParagraphs int
	Phrases                  []string
}

func DefaultPaywallOptions() PaywallOptions {
	return PaywallOptions{
		MinContentLength:         100,
		SubstantialParagraph:     50,
		MinSubstantialParagraphs: 3,
		Phrases: []string{
			"subscribe to continue reading",
			"subscribe to read",
			"subscribers only",
			"subscriber-only",
			"for subscribers",
			"sign in to read",
			"sign in to continue",
			"log in to continue",
			"login to continue",
			"premium content",
			"premium article",
			"members only",
			"become a member to read",
			"this article is for paying",
			"to continue reading, please",
			"already a subscriber",
			"start your free trial",
		},
	}
}

type Verdict struct {
	Paywalled bool
	Reason    string
}

// PaywallDetector decides whether content looks like a paywall teaser.
// A phrase match alone is not enough: the content must also be thin.
type PaywallDetector struct {
	opts    PaywallOptions
	phrases []string
}

func NewPaywallDetector(opts PaywallOptions) *PaywallDetector {
	phrases := make([]string, 0, len(opts.Phrases))
	for _, p := range opts.Phrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			phrases = append(phrases, p)
		}
	}

	return &PaywallDetector{opts: opts, phrases: phrases}
}

// IsPaywalled checks a block of text whose paragraphs are separated by newlines
func (d *PaywallDetector) IsPaywalled(content, url string) bool {
	var paragraphs []string
	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			paragraphs = append(paragraphs, line)
		}
	}

	if runeLen(strings.TrimSpace(content)) < d.opts.MinContentLength {
		slog.Debug("Paywall detected", "url", url, "reason", "content too short")
		return true
	}

	return d.Assess(paragraphs, content, url).Paywalled
}

// Assess evaluates extracted paragraphs together with the raw visible text of
// the source. The raw text is where subscription prompts survive, since the
// extractor drops them from paragraphs.
func (d *PaywallDetector) Assess(paragraphs []string, rawText, url string) Verdict {
	v := d.assess(paragraphs, rawText)
	if v.Paywalled {
		slog.Debug("Paywall detected", "url", url, "reason", v.Reason)
	}
	return v
}

func (d *PaywallDetector) assess(paragraphs []string, rawText string) Verdict {
	content := strings.TrimSpace(joinParagraphs(paragraphs))
	if content == "" {
		content = strings.TrimSpace(rawText)
	}

	if runeLen(content) < d.opts.MinContentLength {
		return Verdict{Paywalled: true, Reason: "content too short"}
	}

	haystack := strings.ToLower(rawText + "\n" + content)
	phrase := ""
	for _, p := range d.phrases {
		if strings.Contains(haystack, p) {
			phrase = p
			break
		}
	}
	if phrase == "" {
		return Verdict{}
	}

	substantial := 0
	for _, p := range paragraphs {
		if runeLen(strings.TrimSpace(p)) > d.opts.SubstantialParagraph {
			substantial++
		}
	}
	if substantial < d.opts.MinSubstantialParagraphs {
		return Verdict{Paywalled: true, Reason: "paywall phrase: " + phrase}
	}

	return Verdict{}
}
