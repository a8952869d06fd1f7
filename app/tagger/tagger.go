package tagger

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/lysyi3m/rss-press/app/database"
)

const (
	DefaultMaxTags = 5
	promptExcerpt  = 1000
	popularLimit   = 5
)

var listMarker = regexp.MustCompile(`^\s*(?:[-*•#]+|\d+[.)])\s*`)

// Completer is satisfied by rewriter.Client.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

type TagSource interface {
	PopularTags(ctx context.Context, limit int) ([]database.Tag, error)
	ThematicPrompts(ctx context.Context) ([]database.Tag, error)
}

type Input struct {
	Title      string
	Content    string
	Categories []string
}

// Tagger produces a bounded list of normalized tags for an article. The
// language model is optional; without it, or when it fails, tags come from
// feed categories, known popular tags and frequent words.
type Tagger struct {
	llm     Completer
	tags    TagSource
	maxTags int
}

func New(llm Completer, tags TagSource, maxTags int) *Tagger {
	if maxTags <= 0 {
		maxTags = DefaultMaxTags
	}
	return &Tagger{llm: llm, tags: tags, maxTags: maxTags}
}

func (t *Tagger) Generate(ctx context.Context, in Input) ([]string, error) {
	popular, err := t.tags.PopularTags(ctx, popularLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load popular tags: %w", err)
	}

	if t.llm != nil {
		tags, err := t.generateWithModel(ctx, in, popular)
		if err == nil && len(tags) > 0 {
			return tags, nil
		}
		slog.Warn("Tag generation with language model failed, using fallback", "title", in.Title, "error", err)
	}

	return t.fallback(in, popular), nil
}

func (t *Tagger) generateWithModel(ctx context.Context, in Input, popular []database.Tag) ([]string, error) {
	thematic, err := t.tags.ThematicPrompts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load thematic prompts: %w", err)
	}

	reply, err := t.llm.Complete(ctx, buildPrompt(in, thematic, popular, t.maxTags), 200)
	if err != nil {
		return nil, err
	}
	return t.limit(ParseTags(reply)), nil
}

func buildPrompt(in Input, thematic, popular []database.Tag, maxTags int) string {
	var b strings.Builder

	content := []rune(in.Content)
	if len(content) > promptExcerpt {
		content = content[:promptExcerpt]
	}
	fmt.Fprintf(&b, "Generate relevant tags for the following article:\n\nTitle: %s\n\nContent:\n%s\n", in.Title, string(content))

	if len(thematic) > 0 {
		b.WriteString("\nConsider these thematic prompts for tag generation:\n")
		for _, tag := range thematic {
			if tag.ThematicPrompt != nil {
				fmt.Fprintf(&b, "- %s: %s\n", tag.Name, *tag.ThematicPrompt)
			}
		}
	}

	if len(in.Categories) > 0 {
		fmt.Fprintf(&b, "\nExisting tags: %s\n", strings.Join(in.Categories, ", "))
	}

	if len(popular) > 0 {
		b.WriteString("\nConsider these frequently used tags:\n")
		for _, tag := range popular {
			fmt.Fprintf(&b, "- %s (used %d times)\n", tag.Name, tag.UsageCount)
		}
	}

	fmt.Fprintf(&b, "\nGenerate up to %d specific, descriptive tags relevant to the article content.\n", maxTags)
	b.WriteString("Format: return only the tags, one per line, without any additional text or formatting.\n")
	return b.String()
}

// ParseTags accepts one tag per line or comma-separated tags, ignoring list markers.
func ParseTags(reply string) []string {
	fields := strings.FieldsFunc(reply, func(r rune) bool {
		return r == '\n' || r == ','
	})

	tags := make([]string, 0, len(fields))
	for _, field := range fields {
		field = listMarker.ReplaceAllString(field, "")
		if tag := database.NormalizeTag(field); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func (t *Tagger) fallback(in Input, popular []database.Tag) []string {
	candidates := make([]string, 0, t.maxTags*2)
	candidates = append(candidates, in.Categories...)

	text := strings.ToLower(in.Title + " " + in.Content)
	for _, tag := range popular {
		if strings.Contains(text, strings.ReplaceAll(tag.Name, "-", " ")) {
			candidates = append(candidates, tag.Name)
		}
	}

	candidates = append(candidates, frequentWords(text)...)
	return t.limit(candidates)
}

// frequentWords returns words longer than three characters, most frequent
// first; ties keep their order of appearance.
func frequentWords(text string) []string {
	counts := make(map[string]int)
	var order []string
	for _, word := range strings.Fields(text) {
		word = database.NormalizeTag(word)
		if len([]rune(word)) <= 3 {
			continue
		}
		if counts[word] == 0 {
			order = append(order, word)
		}
		counts[word]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	return order
}

func (t *Tagger) limit(candidates []string) []string {
	tags := make([]string, 0, t.maxTags)
	seen := make(map[string]bool)
	for _, c := range candidates {
		tag := database.NormalizeTag(c)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
		if len(tags) == t.maxTags {
			break
		}
	}
	return tags
}
