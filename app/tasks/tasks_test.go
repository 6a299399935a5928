package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/mkarpenko/newspipe/app/database"
	"github.com/mkarpenko/newspipe/app/feed"
	"github.com/mkarpenko/newspipe/app/pipeline"
)

type fakeScheduler struct {
	polls      []string
	fetches    []string
	translates []string
	summarizes []string
}

func (s *fakeScheduler) Start() {}
func (s *fakeScheduler) Stop()  {}

func (s *fakeScheduler) EnqueueTask(task TaskInterface) error {
	return nil
}

func (s *fakeScheduler) EnqueuePoll(feedID string) error {
	s.polls = append(s.polls, feedID)
	return nil
}

func (s *fakeScheduler) EnqueueFetch(storyID string) error {
	s.fetches = append(s.fetches, storyID)
	return nil
}

func (s *fakeScheduler) EnqueueTranslate(storyID string) error {
	s.translates = append(s.translates, storyID)
	return nil
}

func (s *fakeScheduler) EnqueueSummarize(storyID string) error {
	s.summarizes = append(s.summarizes, storyID)
	return nil
}

type fakeStoryRepo struct {
	stories      map[string]*database.Story
	translations map[string]*database.Translation
	summaries    []*database.Summary
	statuses     map[string]string
	failed       map[string]string
	fetched      map[string]string
}

func newFakeStoryRepo(stories ...*database.Story) *fakeStoryRepo {
	repo := &fakeStoryRepo{
		stories:      make(map[string]*database.Story),
		translations: make(map[string]*database.Translation),
		statuses:     make(map[string]string),
		failed:       make(map[string]string),
		fetched:      make(map[string]string),
	}
	for _, s := range stories {
		repo.stories[s.ID] = s
	}
	return repo
}

func (r *fakeStoryRepo) GetStory(storyID string) (*database.Story, error) {
	return r.stories[storyID], nil
}

func (r *fakeStoryRepo) GetExistingGUIDs(feedID string) (map[string]struct{}, error) {
	return nil, nil
}

func (r *fakeStoryRepo) GetStoryCountsByStatus() (map[string]int, error) {
	return nil, nil
}

func (r *fakeStoryRepo) CreateStory(story *database.Story) error {
	r.stories[story.ID] = story
	return nil
}

func (r *fakeStoryRepo) UpdateStoryFetched(storyID string, content string, author *string) error {
	r.fetched[storyID] = content
	return nil
}

func (r *fakeStoryRepo) UpdateStoryStatus(storyID string, status string) error {
	r.statuses[storyID] = status
	return nil
}

func (r *fakeStoryRepo) MarkStoryFailed(storyID string, errorMessage string) error {
	r.failed[storyID] = errorMessage
	return nil
}

func (r *fakeStoryRepo) SaveTranslation(translation *database.Translation) error {
	r.translations[translation.StoryID] = translation
	return nil
}

func (r *fakeStoryRepo) SaveSummary(summary *database.Summary) error {
	r.summaries = append(r.summaries, summary)
	return nil
}

func (r *fakeStoryRepo) GetTranslation(storyID string) (*database.Translation, error) {
	return r.translations[storyID], nil
}

func (r *fakeStoryRepo) GetSummary(storyID string) (*database.Summary, error) {
	return nil, nil
}

type stubPoller struct {
	result *feed.PollResult
	err    error
}

func (p *stubPoller) Poll(ctx context.Context, feedID string) (*feed.PollResult, error) {
	return p.result, p.err
}

type stubTranslator struct {
	result *pipeline.TranslationResult
	err    error
	calls  int
}

func (t *stubTranslator) Run(ctx context.Context, input pipeline.TranslationInput) (*pipeline.TranslationResult, error) {
	t.calls++
	return t.result, t.err
}

type stubSummarizer struct {
	result    *pipeline.SummarizationResult
	err       error
	lastInput pipeline.SummarizationInput
}

func (s *stubSummarizer) Run(ctx context.Context, input pipeline.SummarizationInput) (*pipeline.SummarizationResult, error) {
	s.lastInput = input
	return s.result, s.err
}

func ukrainianStory() *database.Story {
	content := "Оригінальний текст статті."
	return &database.Story{
		ID:               "story-1",
		FeedID:           "feed-1",
		GUID:             "g1",
		SourceURL:        "https://example.com/1",
		OriginalTitle:    "Заголовок",
		OriginalContent:  &content,
		OriginalLanguage: "uk",
		Status:           database.StoryStatusFetched,
	}
}

func englishStory() *database.Story {
	content := "Original English article text."
	return &database.Story{
		ID:               "story-2",
		FeedID:           "feed-1",
		GUID:             "g2",
		SourceURL:        "https://example.com/2",
		OriginalTitle:    "Headline",
		OriginalContent:  &content,
		OriginalLanguage: "en",
		Status:           database.StoryStatusFetched,
	}
}

func TestPollFeedTaskChainsCreatedStories(t *testing.T) {
	scheduler := &fakeScheduler{}
	poller := &stubPoller{result: &feed.PollResult{
		EntriesFound:    3,
		NewEntries:      2,
		StoriesCreated:  2,
		CreatedStoryIDs: []string{"s1", "s2"},
	}}

	task := NewPollFeedTask("feed-1", poller, scheduler)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(scheduler.translates) != 2 {
		t.Fatalf("Expected 2 translate tasks enqueued, got: %d", len(scheduler.translates))
	}
	if scheduler.translates[0] != "s1" || scheduler.translates[1] != "s2" {
		t.Errorf("Unexpected enqueued story ids: %v", scheduler.translates)
	}
}

func TestPollFeedTaskPropagatesPollError(t *testing.T) {
	scheduler := &fakeScheduler{}
	poller := &stubPoller{err: errors.New("fetch failed")}

	task := NewPollFeedTask("feed-1", poller, scheduler)
	if err := task.Execute(context.Background()); err == nil {
		t.Fatal("Expected error from failing poll, got nil")
	}

	if len(scheduler.translates) != 0 {
		t.Errorf("Expected no translate tasks, got: %d", len(scheduler.translates))
	}
}

func TestTranslateStoryTask(t *testing.T) {
	story := ukrainianStory()
	repo := newFakeStoryRepo(story)
	scheduler := &fakeScheduler{}
	tokens := 321
	translator := &stubTranslator{result: &pipeline.TranslationResult{
		TranslatedTitle:   "Headline",
		TranslatedContent: "Translated article text.",
		ModelName:         "stub-model",
		TokenCount:        &tokens,
	}}

	task := NewTranslateStoryTask(story.ID, repo, translator, scheduler)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	translation := repo.translations[story.ID]
	if translation == nil {
		t.Fatal("Expected translation to be saved")
	}
	if translation.TargetLanguage != "en" {
		t.Errorf("Expected target language 'en', got: %s", translation.TargetLanguage)
	}
	if translation.TranslatedTitle != "Headline" {
		t.Errorf("Expected translated title 'Headline', got: %s", translation.TranslatedTitle)
	}

	if len(scheduler.summarizes) != 1 || scheduler.summarizes[0] != story.ID {
		t.Errorf("Expected summarize task for %s, got: %v", story.ID, scheduler.summarizes)
	}
}

func TestTranslateStoryTaskSkipsEnglish(t *testing.T) {
	story := englishStory()
	repo := newFakeStoryRepo(story)
	scheduler := &fakeScheduler{}
	translator := &stubTranslator{}

	task := NewTranslateStoryTask(story.ID, repo, translator, scheduler)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if translator.calls != 0 {
		t.Errorf("Expected no translator calls for English story, got: %d", translator.calls)
	}
	if repo.statuses[story.ID] != database.StoryStatusTranslated {
		t.Errorf("Expected status 'translated', got: %s", repo.statuses[story.ID])
	}
	if len(repo.translations) != 0 {
		t.Error("Expected no translation record for English story")
	}
	if len(scheduler.summarizes) != 1 {
		t.Errorf("Expected 1 summarize task, got: %d", len(scheduler.summarizes))
	}
}

func TestTranslateStoryTaskMarksFailedOnLastAttempt(t *testing.T) {
	story := ukrainianStory()
	repo := newFakeStoryRepo(story)
	scheduler := &fakeScheduler{}
	translator := &stubTranslator{err: errors.New("backend unavailable")}

	task := NewTranslateStoryTask(story.ID, repo, translator, scheduler)

	if err := task.Execute(context.Background()); err == nil {
		t.Fatal("Expected error, got nil")
	}
	if _, marked := repo.failed[story.ID]; marked {
		t.Error("Expected story not to be marked failed while retries remain")
	}

	// Simulate the scheduler exhausting the retry budget.
	for task.CanRetry() {
		task.IncrementRetryCount()
	}

	if err := task.Execute(context.Background()); err == nil {
		t.Fatal("Expected error, got nil")
	}
	if _, marked := repo.failed[story.ID]; !marked {
		t.Error("Expected story to be marked failed after final attempt")
	}
}

func TestTranslateStoryTaskMissingStory(t *testing.T) {
	repo := newFakeStoryRepo()
	task := NewTranslateStoryTask("missing", repo, &stubTranslator{}, &fakeScheduler{})

	if err := task.Execute(context.Background()); err == nil {
		t.Fatal("Expected error for missing story, got nil")
	}
}

func TestSummarizeStoryTaskUsesTranslation(t *testing.T) {
	story := ukrainianStory()
	repo := newFakeStoryRepo(story)
	repo.translations[story.ID] = &database.Translation{
		ID:                "tr-1",
		StoryID:           story.ID,
		TargetLanguage:    "en",
		TranslatedTitle:   "Translated Headline",
		TranslatedContent: "Translated text.",
	}

	tokens := 77
	summarizer := &stubSummarizer{result: &pipeline.SummarizationResult{
		SummarizedTitle: "Summary Headline",
		Summary:         "Short summary.",
		ModelName:       "stub-model",
		TokenCount:      &tokens,
	}}

	task := NewSummarizeStoryTask(story.ID, repo, summarizer)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if summarizer.lastInput.Title != "Translated Headline" {
		t.Errorf("Expected summarizer to receive translated title, got: %s", summarizer.lastInput.Title)
	}

	if len(repo.summaries) != 1 {
		t.Fatalf("Expected 1 summary saved, got: %d", len(repo.summaries))
	}
	summary := repo.summaries[0]
	if summary.TranslationID == nil || *summary.TranslationID != "tr-1" {
		t.Error("Expected summary to reference the translation")
	}
	if summary.SummarizedTitle != "Summary Headline" {
		t.Errorf("Expected summarized title 'Summary Headline', got: %s", summary.SummarizedTitle)
	}
}

func TestSummarizeStoryTaskUsesOriginalForEnglish(t *testing.T) {
	story := englishStory()
	repo := newFakeStoryRepo(story)
	summarizer := &stubSummarizer{result: &pipeline.SummarizationResult{
		SummarizedTitle: "Summary Headline",
		Summary:         "Short summary.",
		ModelName:       "stub-model",
	}}

	task := NewSummarizeStoryTask(story.ID, repo, summarizer)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if summarizer.lastInput.Title != story.OriginalTitle {
		t.Errorf("Expected summarizer to receive original title, got: %s", summarizer.lastInput.Title)
	}
	if summarizer.lastInput.Content != *story.OriginalContent {
		t.Error("Expected summarizer to receive original content")
	}

	if len(repo.summaries) != 1 {
		t.Fatalf("Expected 1 summary saved, got: %d", len(repo.summaries))
	}
	if repo.summaries[0].TranslationID != nil {
		t.Error("Expected no translation reference for English story")
	}
}

func TestFetchStoryTask(t *testing.T) {
	story := ukrainianStory()
	repo := newFakeStoryRepo(story)
	scheduler := &fakeScheduler{}
	author := "Reporter"
	extractor := &stubTaskExtractor{article: &feed.Article{
		Title:       "Page Title",
		TextContent: "Refetched body.",
		Author:      &author,
	}}

	task := NewFetchStoryTask(story.ID, repo, extractor, scheduler)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if repo.fetched[story.ID] != "Refetched body." {
		t.Errorf("Expected fetched content to be stored, got: %s", repo.fetched[story.ID])
	}
	if len(scheduler.translates) != 1 || scheduler.translates[0] != story.ID {
		t.Errorf("Expected translate task for %s, got: %v", story.ID, scheduler.translates)
	}
}

type stubTaskExtractor struct {
	article *feed.Article
	err     error
}

func (e *stubTaskExtractor) ExtractFromURL(ctx context.Context, pageURL string) (*feed.Article, error) {
	return e.article, e.err
}

func TestTaskRetryAccounting(t *testing.T) {
	task := NewTask(TaskTypeTranslateStory, "story-1")

	if task.GetMaxRetries() != DefaultMaxRetries {
		t.Errorf("Expected max retries %d, got: %d", DefaultMaxRetries, task.GetMaxRetries())
	}

	attempts := 0
	for task.CanRetry() {
		task.IncrementRetryCount()
		attempts++
	}

	if attempts != DefaultMaxRetries {
		t.Errorf("Expected %d retries, got: %d", DefaultMaxRetries, attempts)
	}
	if task.CanRetry() {
		t.Error("Expected retries to be exhausted")
	}
}
