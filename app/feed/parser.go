package feed

import (
	"bytes"
	"strings"
	"time"

	"github.com/araddon/dateparse"
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

// Run parses raw RSS/Atom data into a normalized entry list. Entries
// without a resolvable GUID or link carry no identity and are dropped;
// everything else is kept even when optional fields are missing.
func (p *Parser) Run(data []byte) (*ParsedFeed, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Cause: err}
	}

	entries := make([]Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		guid := resolveGUID(item)
		link := resolveLink(item)
		if guid == "" || link == "" {
			continue
		}

		entries = append(entries, Entry{
			GUID:        guid,
			Title:       item.Title,
			Link:        link,
			PublishedAt: resolvePublishedAt(item),
			Categories:  resolveCategories(item),
		})
	}

	return &ParsedFeed{
		Title:   parsed.Title,
		Entries: entries,
	}, nil
}

// resolveGUID falls back to the entry link when no explicit guid/id is set.
func resolveGUID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	return resolveLink(item)
}

func resolveLink(item *gofeed.Item) string {
	if item.Link != "" {
		return item.Link
	}
	if len(item.Links) > 0 {
		return item.Links[0]
	}
	return ""
}

// resolvePublishedAt tries the standard publication date first, then the
// updated timestamp, then re-parses the raw date strings. An entry with no
// parsable date gets nil rather than failing.
func resolvePublishedAt(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed
	}

	candidates := []string{item.Published, item.Updated}
	if item.DublinCoreExt != nil {
		candidates = append(candidates, item.DublinCoreExt.Date...)
	}

	for _, raw := range candidates {
		if raw == "" {
			continue
		}
		if ts, err := dateparse.ParseAny(raw); err == nil {
			return &ts
		}
	}

	return nil
}

func resolveCategories(item *gofeed.Item) []string {
	if len(item.Categories) == 0 {
		return nil
	}

	categories := make([]string, 0, len(item.Categories))
	for _, category := range item.Categories {
		category = strings.TrimSpace(category)
		if category != "" {
			categories = append(categories, category)
		}
	}

	return categories
}
