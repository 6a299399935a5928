package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mkarpenko/newspipe/app/database"
)

type fakeFeedRepo struct {
	detail      *database.FeedDetail
	lastPolled  bool
	lastError   *string
	polledCount int
}

func (r *fakeFeedRepo) GetFeed(feedID string) (*database.Feed, error) {
	if r.detail == nil {
		return nil, nil
	}
	return &r.detail.Feed, nil
}

func (r *fakeFeedRepo) GetFeeds() ([]database.Feed, error) {
	if r.detail == nil {
		return nil, nil
	}
	return []database.Feed{r.detail.Feed}, nil
}

func (r *fakeFeedRepo) GetFeedDetail(feedID string) (*database.FeedDetail, error) {
	return r.detail, nil
}

func (r *fakeFeedRepo) GetFeedsDueForPolling(olderThan time.Time) ([]database.Feed, error) {
	return nil, nil
}

func (r *fakeFeedRepo) GetFeedCount() (int, error) {
	return 1, nil
}

func (r *fakeFeedRepo) UpsertPublisher(name, baseURL, languageCode string) (string, error) {
	return "pub-1", nil
}

func (r *fakeFeedRepo) UpsertFeed(publisherID, name, url string, active bool) (string, error) {
	return "feed-1", nil
}

func (r *fakeFeedRepo) ReplaceFeedRules(feedID string, categories []string, rules []database.StoryExclusionRule) error {
	return nil
}

func (r *fakeFeedRepo) UpdateFeedPolled(feedID string, lastError *string) error {
	r.lastPolled = true
	r.lastError = lastError
	r.polledCount++
	return nil
}

type fakeStoryRepo struct {
	guids   map[string]struct{}
	stories []*database.Story
}

func newFakeStoryRepo() *fakeStoryRepo {
	return &fakeStoryRepo{guids: make(map[string]struct{})}
}

func (r *fakeStoryRepo) GetStory(storyID string) (*database.Story, error) {
	for _, s := range r.stories {
		if s.ID == storyID {
			return s, nil
		}
	}
	return nil, nil
}

func (r *fakeStoryRepo) GetExistingGUIDs(feedID string) (map[string]struct{}, error) {
	copied := make(map[string]struct{}, len(r.guids))
	for k := range r.guids {
		copied[k] = struct{}{}
	}
	return copied, nil
}

func (r *fakeStoryRepo) GetStoryCountsByStatus() (map[string]int, error) {
	counts := make(map[string]int)
	for _, s := range r.stories {
		counts[s.Status]++
	}
	return counts, nil
}

func (r *fakeStoryRepo) CreateStory(story *database.Story) error {
	r.guids[story.GUID] = struct{}{}
	r.stories = append(r.stories, story)
	return nil
}

func (r *fakeStoryRepo) UpdateStoryFetched(storyID string, content string, author *string) error {
	return nil
}

func (r *fakeStoryRepo) UpdateStoryStatus(storyID string, status string) error {
	return nil
}

func (r *fakeStoryRepo) MarkStoryFailed(storyID string, errorMessage string) error {
	return nil
}

func (r *fakeStoryRepo) SaveTranslation(translation *database.Translation) error {
	return nil
}

func (r *fakeStoryRepo) SaveSummary(summary *database.Summary) error {
	return nil
}

func (r *fakeStoryRepo) GetTranslation(storyID string) (*database.Translation, error) {
	return nil, nil
}

func (r *fakeStoryRepo) GetSummary(storyID string) (*database.Summary, error) {
	return nil, nil
}

type stubExtractor struct {
	articles map[string]*Article
	err      error
	errURLs  map[string]bool
	calls    int
}

func (e *stubExtractor) ExtractFromURL(ctx context.Context, pageURL string) (*Article, error) {
	e.calls++
	if e.errURLs[pageURL] {
		return nil, &ExtractionError{Message: "no readable content found on page"}
	}
	if e.err != nil {
		return nil, e.err
	}
	if article, ok := e.articles[pageURL]; ok {
		return article, nil
	}
	return &Article{Title: "stub", Content: "<p>body</p>", TextContent: "body"}, nil
}

func feedServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, body)
	}))
}

func testFeedDetail(feedURL string) *database.FeedDetail {
	return &database.FeedDetail{
		Feed: database.Feed{
			ID:     "feed-1",
			Name:   "Test Feed",
			URL:    feedURL,
			Active: true,
		},
		Publisher: database.Publisher{
			ID:           "pub-1",
			Name:         "Test Publisher",
			BaseURL:      "https://example.com",
			LanguageCode: "uk",
		},
	}
}

const pollFeedXML = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <item>
      <title>Story One</title>
      <link>https://example.com/1</link>
      <guid>g1</guid>
    </item>
  </channel>
</rss>`

func newTestPoller(feedRepo database.FeedRepository, storyRepo database.StoryRepository, extractor ContentExtractor) *Poller {
	return NewPoller(feedRepo, storyRepo, NewParser(), extractor, http.DefaultClient, "test-agent", 0)
}

func TestPollCreatesStories(t *testing.T) {
	server := feedServer(t, pollFeedXML)
	defer server.Close()

	feedRepo := &fakeFeedRepo{detail: testFeedDetail(server.URL)}
	storyRepo := newFakeStoryRepo()
	poller := newTestPoller(feedRepo, storyRepo, &stubExtractor{})

	result, err := poller.Poll(context.Background(), "feed-1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.EntriesFound != 1 {
		t.Errorf("Expected 1 entry found, got: %d", result.EntriesFound)
	}
	if result.StoriesCreated != 1 {
		t.Fatalf("Expected 1 story created, got: %d", result.StoriesCreated)
	}
	if len(result.CreatedStoryIDs) != 1 {
		t.Fatalf("Expected 1 created story id, got: %d", len(result.CreatedStoryIDs))
	}

	story := storyRepo.stories[0]
	if story.GUID != "g1" {
		t.Errorf("Expected guid 'g1', got: %s", story.GUID)
	}
	if story.Status != database.StoryStatusFetched {
		t.Errorf("Expected status 'fetched', got: %s", story.Status)
	}
	if story.OriginalContent == nil || *story.OriginalContent != "body" {
		t.Error("Expected original content 'body'")
	}
	if story.OriginalLanguage != "uk" {
		t.Errorf("Expected publisher language 'uk', got: %s", story.OriginalLanguage)
	}

	if !feedRepo.lastPolled || feedRepo.lastError != nil {
		t.Error("Expected feed poll timestamp updated with no error")
	}
}

func TestPollIsIdempotent(t *testing.T) {
	server := feedServer(t, pollFeedXML)
	defer server.Close()

	feedRepo := &fakeFeedRepo{detail: testFeedDetail(server.URL)}
	storyRepo := newFakeStoryRepo()
	poller := newTestPoller(feedRepo, storyRepo, &stubExtractor{})

	if _, err := poller.Poll(context.Background(), "feed-1"); err != nil {
		t.Fatalf("First poll failed: %v", err)
	}

	result, err := poller.Poll(context.Background(), "feed-1")
	if err != nil {
		t.Fatalf("Second poll failed: %v", err)
	}

	if result.NewEntries != 0 {
		t.Errorf("Expected 0 new entries on second poll, got: %d", result.NewEntries)
	}
	if result.StoriesCreated != 0 {
		t.Errorf("Expected 0 stories created on second poll, got: %d", result.StoriesCreated)
	}
	if len(storyRepo.stories) != 1 {
		t.Errorf("Expected 1 story total, got: %d", len(storyRepo.stories))
	}
}

func TestPollCategoryExclusionIsCaseInsensitive(t *testing.T) {
	feedXML := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <item>
      <title>Opinion Piece</title>
      <link>https://example.com/opinion</link>
      <guid>op1</guid>
      <category>OPINION</category>
    </item>
    <item>
      <title>Real News</title>
      <link>https://example.com/news</link>
      <guid>n1</guid>
      <category>Politics</category>
    </item>
  </channel>
</rss>`

	server := feedServer(t, feedXML)
	defer server.Close()

	detail := testFeedDetail(server.URL)
	detail.ExcludedCategories = []string{"opinion"}

	feedRepo := &fakeFeedRepo{detail: detail}
	storyRepo := newFakeStoryRepo()
	extractor := &stubExtractor{}
	poller := newTestPoller(feedRepo, storyRepo, extractor)

	result, err := poller.Poll(context.Background(), "feed-1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.CategoryExcluded != 1 {
		t.Errorf("Expected 1 category exclusion, got: %d", result.CategoryExcluded)
	}
	if result.StoriesCreated != 1 {
		t.Errorf("Expected 1 story created, got: %d", result.StoriesCreated)
	}
	// Excluded entries must never reach the extractor.
	if extractor.calls != 1 {
		t.Errorf("Expected 1 extraction call, got: %d", extractor.calls)
	}
}

func TestPollMetadataExclusion(t *testing.T) {
	server := feedServer(t, pollFeedXML)
	defer server.Close()

	detail := testFeedDetail(server.URL)
	detail.ExclusionRules = []database.StoryExclusionRule{
		{FeedID: "feed-1", RuleType: database.RuleTypeOGType, Value: "video"},
	}

	videoType := "VIDEO"
	extractor := &stubExtractor{
		articles: map[string]*Article{
			"https://example.com/1": {
				Title:       "Video Page",
				TextContent: "video description",
				Metadata:    Metadata{OGType: &videoType},
			},
		},
	}

	feedRepo := &fakeFeedRepo{detail: detail}
	storyRepo := newFakeStoryRepo()
	poller := newTestPoller(feedRepo, storyRepo, extractor)

	result, err := poller.Poll(context.Background(), "feed-1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.MetadataExcluded != 1 {
		t.Errorf("Expected 1 metadata exclusion, got: %d", result.MetadataExcluded)
	}
	if result.StoriesCreated != 0 {
		t.Errorf("Expected 0 stories created, got: %d", result.StoriesCreated)
	}
	if len(storyRepo.stories) != 0 {
		t.Errorf("Expected no stories persisted, got: %d", len(storyRepo.stories))
	}
}

func TestPollExtractionFailureCreatesFailedStory(t *testing.T) {
	feedXML := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <item>
      <title>Broken</title>
      <link>https://example.com/broken</link>
      <guid>b1</guid>
    </item>
    <item>
      <title>Fine</title>
      <link>https://example.com/fine</link>
      <guid>f1</guid>
    </item>
  </channel>
</rss>`

	server := feedServer(t, feedXML)
	defer server.Close()

	extractor := &stubExtractor{errURLs: map[string]bool{"https://example.com/broken": true}}
	feedRepo := &fakeFeedRepo{detail: testFeedDetail(server.URL)}
	storyRepo := newFakeStoryRepo()
	poller := newTestPoller(feedRepo, storyRepo, extractor)

	result, err := poller.Poll(context.Background(), "feed-1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.StoriesFailed != 1 {
		t.Errorf("Expected 1 failed story, got: %d", result.StoriesFailed)
	}
	if result.StoriesCreated != 1 {
		t.Errorf("Expected 1 created story, got: %d", result.StoriesCreated)
	}

	var failed *database.Story
	for _, s := range storyRepo.stories {
		if s.GUID == "b1" {
			failed = s
		}
	}
	if failed == nil {
		t.Fatal("Expected failed story to be persisted")
	}
	if failed.Status != database.StoryStatusFailed {
		t.Errorf("Expected status 'failed', got: %s", failed.Status)
	}
	if failed.ErrorMessage == nil {
		t.Error("Expected error message on failed story")
	}
}

func TestPollInactiveFeedSkipped(t *testing.T) {
	detail := testFeedDetail("http://unused.invalid/feed")
	detail.Active = false

	feedRepo := &fakeFeedRepo{detail: detail}
	storyRepo := newFakeStoryRepo()
	poller := newTestPoller(feedRepo, storyRepo, &stubExtractor{})

	result, err := poller.Poll(context.Background(), "feed-1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !result.Skipped {
		t.Error("Expected poll to be skipped")
	}
	if feedRepo.lastPolled {
		t.Error("Expected poll timestamp untouched for inactive feed")
	}
}

func TestPollFeedFetchFailureRecordsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	feedRepo := &fakeFeedRepo{detail: testFeedDetail(server.URL)}
	storyRepo := newFakeStoryRepo()
	poller := newTestPoller(feedRepo, storyRepo, &stubExtractor{})

	_, err := poller.Poll(context.Background(), "feed-1")
	if err == nil {
		t.Fatal("Expected error for failing feed fetch, got nil")
	}

	if feedRepo.lastError == nil {
		t.Fatal("Expected last error to be recorded on feed")
	}
}

func TestPollFeedNotFound(t *testing.T) {
	feedRepo := &fakeFeedRepo{}
	storyRepo := newFakeStoryRepo()
	poller := newTestPoller(feedRepo, storyRepo, &stubExtractor{})

	_, err := poller.Poll(context.Background(), "missing")
	if err == nil {
		t.Fatal("Expected error for unknown feed, got nil")
	}
}
