package database

import (
	"time"
)

// Story lifecycle statuses. A story only moves forward through
// pending -> fetched -> translated -> summarized; failed is terminal
// and reachable from any non-terminal status.
const (
	StoryStatusPending    = "pending"
	StoryStatusFetched    = "fetched"
	StoryStatusTranslated = "translated"
	StoryStatusSummarized = "summarized"
	StoryStatusFailed     = "failed"
)

// Story exclusion rule types, matched against page metadata after extraction.
const (
	RuleTypeOGType     = "og_type"
	RuleTypeJSONLDType = "json_ld_type"
)

type Publisher struct {
	ID           string
	Name         string
	BaseURL      string
	LanguageCode string
	CreatedAt    time.Time
}

type Feed struct {
	ID           string
	PublisherID  string
	Name         string
	URL          string
	Active       bool
	LastPolledAt *time.Time
	LastError    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type StoryExclusionRule struct {
	FeedID   string
	RuleType string
	Value    string
}

// FeedDetail is a feed loaded together with its publisher and exclusion
// rules, the shape the poller consumes.
type FeedDetail struct {
	Feed
	Publisher          Publisher
	ExcludedCategories []string
	ExclusionRules     []StoryExclusionRule
}

type Story struct {
	ID               string
	FeedID           string
	GUID             string
	SourceURL        string
	OriginalTitle    string
	OriginalContent  *string
	OriginalLanguage string
	Author           *string
	PublishedAt      *time.Time
	Status           string
	ErrorMessage     *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Translation struct {
	ID                string
	StoryID           string
	TargetLanguage    string
	TranslatedTitle   string
	TranslatedContent string
	ModelName         string
	TokenCount        *int
	CreatedAt         time.Time
}

type Summary struct {
	ID              string
	StoryID         string
	TranslationID   *string
	SummarizedTitle string
	Content         string
	ModelName       string
	TokenCount      *int
	CreatedAt       time.Time
}
