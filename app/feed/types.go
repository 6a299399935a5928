package feed

import (
	"time"
)

// Feed parsing types

type ParsedFeed struct {
	Title   string
	Entries []Entry
}

// Entry is one normalized item from a parsed feed document, a prospective
// story. Only entries that resolved both a GUID and a link survive parsing.
type Entry struct {
	GUID        string
	Title       string
	Link        string
	PublishedAt *time.Time
	Categories  []string
}

// Content extraction types

// Metadata holds page-level metadata captured from the raw document before
// readable-content extraction runs.
type Metadata struct {
	OGType      *string
	JSONLDTypes []string
}

type Article struct {
	Title       string
	Content     string
	TextContent string
	Author      *string
	Excerpt     *string
	SiteName    *string
	Length      int
	Metadata    Metadata
}

// Poll types

type PollResult struct {
	Skipped          bool
	EntriesFound     int
	NewEntries       int
	CategoryExcluded int
	MetadataExcluded int
	StoriesCreated   int
	StoriesFailed    int

	CreatedStoryIDs []string
}
