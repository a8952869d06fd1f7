package feed

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
)

const (
	maxAuthorLength   = 100
	paragraphSelector = "p, blockquote, li, pre"
	authorSelector    = ".author, .byline, .author-name, .post-author, .entry-author, [rel=author]"
	noiseSelector     = "script, style, noscript, template, nav, header, footer, aside, form, iframe, button, svg, " +
		".social-share, .share, .sharing, .share-buttons, .related-posts, .related, .comments, .comment, " +
		".comment-list, .advertisement, .ad, .ads, .newsletter, .sidebar, .breadcrumb"
)

var structuralContainers = []string{"article", "main", "body"}

type ExtractorOptions struct {
	ContentClasses     []string
	MinParagraphLength int
	MaxParagraphs      int // applied to full article pages only; 0 means unlimited
	DenyList           []string
}

func DefaultExtractorOptions() ExtractorOptions {
	return ExtractorOptions{
		ContentClasses:     []string{"entry-content", "post-content", "article-content", "content", "article", "entry"},
		MinParagraphLength: 20,
		MaxParagraphs:      5,
		DenyList: []string{
			"first appeared on", "all rights reserved", "subscribe", "newsletter", "advertisement",
			"sponsored", "related articles", "comments", "login", "register",
		},
	}
}

// ContentExtractor pulls readable paragraphs, a title and an author out of HTML
type ContentExtractor struct {
	opts     ExtractorOptions
	denyList []string
}

func NewContentExtractor(opts ExtractorOptions) *ContentExtractor {
	denyList := make([]string, 0, len(opts.DenyList))
	for _, phrase := range opts.DenyList {
		if phrase = strings.ToLower(strings.TrimSpace(phrase)); phrase != "" {
			denyList = append(denyList, phrase)
		}
	}

	return &ContentExtractor{opts: opts, denyList: denyList}
}

// Run extracts content from data. fullPage marks a fetched article page as opposed
// to an inline feed fragment. An extraction with no paragraphs is a valid result.
func (e *ContentExtractor) Run(data []byte, fullPage bool) (*Extraction, error) {
	result := &Extraction{}
	if len(bytes.TrimSpace(data)) == 0 {
		return result, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	result.Title = e.extractTitle(doc)
	result.Author = e.extractAuthor(doc, data, fullPage)

	container := e.selectContainer(doc)
	container.Find(noiseSelector).Remove()

	paragraphs := e.collectParagraphs(container)
	if len(paragraphs) == 0 {
		doc.Find(noiseSelector).Remove()
		paragraphs = e.collectParagraphs(doc.Selection)
	}
	if len(paragraphs) == 0 && !fullPage {
		paragraphs = e.collectLooseText(doc)
	}

	paragraphs = e.applyDenyList(paragraphs)

	if fullPage && e.opts.MaxParagraphs > 0 && len(paragraphs) > e.opts.MaxParagraphs {
		paragraphs = paragraphs[:e.opts.MaxParagraphs]
	}
	result.Paragraphs = paragraphs

	slog.Debug("Content extracted",
		"full_page", fullPage,
		"title", result.Title,
		"paragraphs", len(paragraphs))

	return result, nil
}

func (e *ContentExtractor) extractTitle(doc *goquery.Document) string {
	if title := normalizeText(doc.Find("h1").First().Text()); title != "" {
		return title
	}
	return normalizeText(doc.Find("title").First().Text())
}

func (e *ContentExtractor) extractAuthor(doc *goquery.Document, data []byte, fullPage bool) *string {
	var author string
	doc.Find(authorSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		author = normalizeText(s.Text())
		if runeLen(author) > maxAuthorLength {
			author = ""
		}
		return author == ""
	})

	if author == "" {
		if content, ok := doc.Find(`meta[name="author"]`).First().Attr("content"); ok {
			author = normalizeText(content)
		}
	}

	if author == "" && fullPage {
		if article, err := readability.FromReader(bytes.NewReader(data), nil); err == nil {
			author = normalizeText(article.Byline())
		}
	}

	if author == "" {
		return nil
	}
	author = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(author, "By "), "by "))
	return &author
}

// selectContainer picks the first configured content class present in the
// document, then falls back to structural tags. A class match outside noise
// elements wins over one nested in, say, an aside or a page-wide form.
func (e *ContentExtractor) selectContainer(doc *goquery.Document) *goquery.Selection {
	for _, allowNoise := range []bool{false, true} {
		for _, class := range e.opts.ContentClasses {
			class = strings.TrimSpace(strings.TrimPrefix(class, "."))
			if class == "" {
				continue
			}

			var found *goquery.Selection
			doc.Find("." + class).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				if allowNoise || !insideNoise(s) {
					found = s
					return false
				}
				return true
			})
			if found != nil {
				return found
			}
		}
	}

	for _, tag := range structuralContainers {
		if s := doc.Find(tag).First(); s.Length() > 0 {
			return s
		}
	}

	return doc.Selection
}

func insideNoise(s *goquery.Selection) bool {
	return s.Is(noiseSelector) || s.ParentsFiltered(noiseSelector).Length() > 0
}

func (e *ContentExtractor) collectParagraphs(root *goquery.Selection) []string {
	var paragraphs []string
	root.Find(paragraphSelector).Each(func(_ int, s *goquery.Selection) {
		// nested blocks are collected on their own
		if s.Find(paragraphSelector).Length() > 0 {
			return
		}
		if text := normalizeText(s.Text()); e.qualifies(text) {
			paragraphs = append(paragraphs, text)
		}
	})
	return paragraphs
}

// collectLooseText treats line-separated text of a fragment without block markup as paragraphs
func (e *ContentExtractor) collectLooseText(doc *goquery.Document) []string {
	doc.Find("br").ReplaceWithHtml("\n")

	var paragraphs []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if text := normalizeText(line); e.qualifies(text) {
			paragraphs = append(paragraphs, text)
		}
	}
	return paragraphs
}

func (e *ContentExtractor) qualifies(text string) bool {
	return runeLen(text) > e.opts.MinParagraphLength
}

func (e *ContentExtractor) applyDenyList(paragraphs []string) []string {
	if len(e.denyList) == 0 {
		return paragraphs
	}

	kept := paragraphs[:0]
	for _, p := range paragraphs {
		lower := strings.ToLower(p)
		denied := false
		for _, phrase := range e.denyList {
			if strings.Contains(lower, phrase) {
				denied = true
				break
			}
		}
		if !denied {
			kept = append(kept, p)
		}
	}
	return kept
}
