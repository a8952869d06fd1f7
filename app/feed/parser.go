package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

func (p *Parser) Run(data []byte) (*Metadata, []Item, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		Title:           feed.Title,
		Link:            feed.Link,
		Description:     feed.Description,
		Language:        feed.Language,
		FeedPublishedAt: feed.PublishedParsed,
	}

	items := make([]Item, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		items = append(items, p.normalizeItem(item))
	}

	return metadata, items, nil
}

// EntryID is the stable identifier used for deduplication: the GUID, else the link.
// An empty result means the entry cannot be tracked.
func (i Item) EntryID() string {
	return cmp.Or(strings.TrimSpace(i.GUID), strings.TrimSpace(i.Link))
}

func (p *Parser) normalizeItem(item *gofeed.Item) Item {
	normalized := Item{
		GUID:        strings.TrimSpace(item.GUID),
		Title:       strings.TrimSpace(item.Title),
		Link:        strings.TrimSpace(item.Link),
		Content:     cmp.Or(strings.TrimSpace(item.Content), strings.TrimSpace(item.Description)),
		PublishedAt: cmp.Or(item.PublishedParsed, item.UpdatedParsed),
		Categories:  item.Categories,
	}

	if author := p.extractAuthor(item); author != "" {
		normalized.Author = &author
	}

	return normalized
}

func (p *Parser) extractAuthor(item *gofeed.Item) string {
	if len(item.Authors) > 0 {
		names := make([]string, 0, len(item.Authors))
		for _, author := range item.Authors {
			if author == nil {
				continue
			}
			if name := cmp.Or(strings.TrimSpace(author.Name), strings.TrimSpace(author.Email)); name != "" {
				names = append(names, name)
			}
		}
		return strings.Join(names, ", ")
	}

	if item.Author != nil {
		return cmp.Or(strings.TrimSpace(item.Author.Name), strings.TrimSpace(item.Author.Email))
	}

	return ""
}
