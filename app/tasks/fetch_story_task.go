package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mkarpenko/newspipe/app/database"
	"github.com/mkarpenko/newspipe/app/feed"
)

// FetchStoryTask re-extracts article content for a single story, used when
// the initial extraction during polling failed or content must be refreshed.
type FetchStoryTask struct {
	Task
	storyRepo database.StoryRepository
	extractor feed.ContentExtractor
	scheduler TaskSchedulerInterface
}

func NewFetchStoryTask(storyID string, storyRepo database.StoryRepository, extractor feed.ContentExtractor, scheduler TaskSchedulerInterface) *FetchStoryTask {
	return &FetchStoryTask{
		Task:      NewTask(TaskTypeFetchStory, storyID),
		storyRepo: storyRepo,
		extractor: extractor,
		scheduler: scheduler,
	}
}

func (t *FetchStoryTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	story, err := t.storyRepo.GetStory(t.Ref)
	if err != nil {
		return fmt.Errorf("failed to get story: %w", err)
	}
	if story == nil {
		return fmt.Errorf("story not found: %s", t.Ref)
	}

	article, err := t.extractor.ExtractFromURL(ctx, story.SourceURL)
	if err != nil {
		t.markFailedOnLastAttempt(err)
		return fmt.Errorf("failed to extract article content: %w", err)
	}

	if err := t.storyRepo.UpdateStoryFetched(story.ID, article.TextContent, article.Author); err != nil {
		return fmt.Errorf("failed to update story content: %w", err)
	}

	if err := t.scheduler.EnqueueTranslate(story.ID); err != nil {
		slog.Warn("Failed to enqueue TranslateStoryTask", "story_id", story.ID, "error", err)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"story_id", t.Ref,
		"duration", t.GetDuration(),
		"content_length", len(article.TextContent))

	return nil
}

// markFailedOnLastAttempt flips the story to failed only once task retries
// are exhausted, so transient extraction errors do not strand stories.
func (t *FetchStoryTask) markFailedOnLastAttempt(cause error) {
	if t.CanRetry() {
		return
	}
	if err := t.storyRepo.MarkStoryFailed(t.Ref, cause.Error()); err != nil {
		slog.Error("Failed to mark story as failed", "story_id", t.Ref, "error", err)
	}
}
