// Package metrics provides Prometheus metrics for the ingestion pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EntriesTotal counts feed entries by outcome.
	EntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rsspress",
			Name:      "entries_total",
			Help:      "Total number of feed entries handled, by outcome",
		},
		[]string{"outcome"},
	)

	// FeedsTotal counts feed ingestion tasks by status.
	FeedsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rsspress",
			Name:      "feeds_total",
			Help:      "Total number of feed ingestion tasks, by status",
		},
		[]string{"status"},
	)

	// PaywallHitsTotal counts recorded paywall detections.
	PaywallHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rsspress",
			Name:      "paywall_hits_total",
			Help:      "Total number of paywall detections",
		},
	)

	// EscalationsTotal counts escalation decisions taken for paywalled feeds.
	EscalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rsspress",
			Name:      "escalations_total",
			Help:      "Total number of paywall escalations, by decision",
		},
		[]string{"decision"},
	)

	// PublishTotal counts downstream publish attempts.
	PublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rsspress",
			Name:      "publish_total",
			Help:      "Total number of article publish attempts, by status",
		},
		[]string{"status"},
	)

	// RunDuration measures full ingestion passes.
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rsspress",
			Name:      "run_duration_seconds",
			Help:      "Duration of ingestion runs in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)
)

func RecordEntry(outcome string) {
	EntriesTotal.WithLabelValues(outcome).Inc()
}

func RecordFeed(status string) {
	FeedsTotal.WithLabelValues(status).Inc()
}

func RecordEscalation(decision string) {
	EscalationsTotal.WithLabelValues(decision).Inc()
}

func RecordPublish(status string) {
	PublishTotal.WithLabelValues(status).Inc()
}

func ObserveRun(d time.Duration) {
	RunDuration.Observe(d.Seconds())
}
