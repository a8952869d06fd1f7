package tasks

import (
	"time"
)

type Counts struct {
	Entries    int
	Processed  int
	Duplicates int
	Paywalled  int
	Failed     int
	Invalid    int
}

func (c *Counts) add(o Counts) {
	c.Entries += o.Entries
	c.Processed += o.Processed
	c.Duplicates += o.Duplicates
	c.Paywalled += o.Paywalled
	c.Failed += o.Failed
	c.Invalid += o.Invalid
}

// SuccessRate is processed / (entries - duplicates), or 0 when nothing was attempted.
func (c Counts) SuccessRate() float64 {
	attempted := c.Entries - c.Duplicates
	if attempted <= 0 {
		return 0
	}
	return float64(c.Processed) / float64(attempted)
}

type FeedResult struct {
	Counts
	Escalation Decision
	Escalated  bool
}

type Summary struct {
	Counts
	RunID          string
	Feeds          int
	FeedsFailed    int
	FeedsEscalated int
	Interrupted    bool
	Duration       time.Duration
}

type PublishSummary struct {
	Attempted int
	Failed    int
}

type ImportResult struct {
	Total    int
	Added    int
	Existing int
	Failed   int
}
