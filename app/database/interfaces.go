package database

import (
	"time"
)

type FeedRepository interface {
	GetFeed(feedID string) (*Feed, error)
	GetFeeds() ([]Feed, error)
	GetFeedDetail(feedID string) (*FeedDetail, error)
	GetFeedsDueForPolling(olderThan time.Time) ([]Feed, error)
	GetFeedCount() (int, error)

	UpsertPublisher(name, baseURL, languageCode string) (string, error)
	UpsertFeed(publisherID, name, url string, active bool) (string, error)
	ReplaceFeedRules(feedID string, categories []string, rules []StoryExclusionRule) error
	UpdateFeedPolled(feedID string, lastError *string) error
}

type StoryRepository interface {
	GetStory(storyID string) (*Story, error)
	GetExistingGUIDs(feedID string) (map[string]struct{}, error)
	GetStoryCountsByStatus() (map[string]int, error)

	CreateStory(story *Story) error
	UpdateStoryFetched(storyID string, content string, author *string) error
	UpdateStoryStatus(storyID string, status string) error
	MarkStoryFailed(storyID string, errorMessage string) error

	SaveTranslation(translation *Translation) error
	SaveSummary(summary *Summary) error
	GetTranslation(storyID string) (*Translation, error)
	GetSummary(storyID string) (*Summary, error)
}
