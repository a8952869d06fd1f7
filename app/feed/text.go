package feed

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

var (
	stripPolicy = bluemonday.StrictPolicy()

	invisibleChars = strings.NewReplacer(
		"\u200b", "",
		"\u200c", "",
		"\u200d", "",
		"\u2060", "",
		"\ufeff", "",
		"\u00ad", "",
	)
)

const blockSelector = "p, li, blockquote, pre, div, section, article, h1, h2, h3, h4, h5, h6, tr, td, dd, dt, br"

// normalizeText turns decoded text into a single clean line: leftover
// entities are resolved, invisible characters dropped and whitespace collapsed.
// Literal angle brackets are text at this point and are kept.
func normalizeText(s string) string {
	// twice, for double-encoded entities such as "&amp;nbsp;"
	s = html.UnescapeString(html.UnescapeString(s))
	s = invisibleChars.Replace(s)
	s = norm.NFKC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// VisibleText returns the readable text of an HTML document or fragment as one line
func VisibleText(data []byte) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(data)))
	if err != nil {
		return normalizeText(stripMarkup(string(data)))
	}
	doc.Find("script, style, noscript, template").Remove()
	doc.Find(blockSelector).AppendHtml(" ")

	return normalizeText(doc.Text())
}

// stripMarkup removes tags from raw HTML. The sanitizer leaves text
// entity-encoded, so entities are resolved afterwards.
func stripMarkup(raw string) string {
	return html.UnescapeString(stripPolicy.Sanitize(raw))
}

func joinParagraphs(paragraphs []string) string {
	return strings.Join(paragraphs, "\n\n")
}

func runeLen(s string) int {
	return len([]rune(s))
}
