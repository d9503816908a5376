package domain

import "time"

// Domain contains core models shared across the pipeline.

// NewsItem is a single entry returned by the news provider for a channel and day.
type NewsItem struct {
	Title         string
	PublishedTime string
	URL           string
	ThumbnailURL  string
}

// DedupRecord marks a URL as posted at SentAt.
type DedupRecord struct {
	URL    string
	SentAt time.Time
}
