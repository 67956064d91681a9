package entity

import "time"

// FeedEntry is a single item of the polled release feed. It is never persisted.
type FeedEntry struct {
	Title       string
	SourceLink  string
	EntryID     string // feed GUID, or the link when the feed omits one
	PublishedAt time.Time
}
