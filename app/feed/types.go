package feed

import (
	"time"
)

// Feed processing types

type Metadata struct {
	Title           string
	Link            string
	Description     string
	Language        string
	FeedPublishedAt *time.Time
}

type Item struct {
	GUID        string
	Title       string
	Link        string
	Content     string // content, falling back to description/summary
	Author      *string
	PublishedAt *time.Time
	Categories  []string
}

// Extraction is the cleaned result of running the content extractor over HTML
type Extraction struct {
	Title      string
	Author     *string
	Paragraphs []string
}

func (e *Extraction) Text() string {
	return joinParagraphs(e.Paragraphs)
}

// Seed file types

type Seed struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Active *bool  `yaml:"active"`
}

type seedFile struct {
	Feeds []Seed `yaml:"feeds"`
}
