package feed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func longParagraph(prefix string) string {
	return prefix + " " + strings.Repeat("substantial article text ", 4)
}

func TestPaywallDetector_ShortContentIsPaywalled(t *testing.T) {
	d := NewPaywallDetector(DefaultPaywallOptions())

	for _, content := range []string{"", "short", strings.Repeat("x", 99), "  padded  "} {
		assert.True(t, d.IsPaywalled(content, "https://example.com/a"), "content %q", content)
	}
}

func TestPaywallDetector_CleanArticleIsNotPaywalled(t *testing.T) {
	d := NewPaywallDetector(DefaultPaywallOptions())

	content := strings.Join([]string{longParagraph("One"), longParagraph("Two")}, "\n\n")
	assert.False(t, d.IsPaywalled(content, "https://example.com/a"))
}

func TestPaywallDetector_PhraseWithThinContent(t *testing.T) {
	d := NewPaywallDetector(DefaultPaywallOptions())

	content := longParagraph("Teaser") + "\nSubscribe to continue reading this story."
	assert.True(t, d.IsPaywalled(content, "https://example.com/a"))
}

func TestPaywallDetector_PhraseWithSubstantialContent(t *testing.T) {
	d := NewPaywallDetector(DefaultPaywallOptions())

	content := strings.Join([]string{
		longParagraph("One"),
		longParagraph("Two"),
		longParagraph("Three"),
		"Premium content is available for members, but this article is free.",
	}, "\n")
	assert.False(t, d.IsPaywalled(content, "https://example.com/a"))
}

func TestPaywallDetector_AssessUsesRawTextForPhrases(t *testing.T) {
	d := NewPaywallDetector(DefaultPaywallOptions())

	paragraphs := []string{longParagraph("Teaser one"), longParagraph("Teaser two")}
	raw := strings.Join(paragraphs, " ") + " This article is for subscribers only. Already a subscriber? Sign in."

	v := d.Assess(paragraphs, raw, "https://example.com/a")
	assert.True(t, v.Paywalled)
	assert.Contains(t, v.Reason, "paywall phrase")

	v = d.Assess(paragraphs, strings.Join(paragraphs, " "), "https://example.com/a")
	assert.False(t, v.Paywalled)
}

func TestPaywallDetector_AssessFallsBackToRawTextLength(t *testing.T) {
	d := NewPaywallDetector(DefaultPaywallOptions())

	v := d.Assess(nil, "short", "https://example.com/a")
	assert.True(t, v.Paywalled)
	assert.Equal(t, "content too short", v.Reason)

	v = d.Assess(nil, strings.Repeat("long visible text ", 10), "https://example.com/a")
	assert.False(t, v.Paywalled)
}
