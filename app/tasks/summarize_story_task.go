package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mkarpenko/newspipe/app/database"
	"github.com/mkarpenko/newspipe/app/pipeline"
)

// SummarizeStoryTask produces the bounded title and summary for a story.
// It summarizes the English translation when one exists, otherwise the
// original content of an English-language story.
type SummarizeStoryTask struct {
	Task
	storyRepo  database.StoryRepository
	summarizer SummarizerInterface
}

func NewSummarizeStoryTask(storyID string, storyRepo database.StoryRepository, summarizer SummarizerInterface) *SummarizeStoryTask {
	return &SummarizeStoryTask{
		Task:       NewTask(TaskTypeSummarizeStory, storyID),
		storyRepo:  storyRepo,
		summarizer: summarizer,
	}
}

func (t *SummarizeStoryTask) Execute(ctx context.Context) error {

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

	translation, err := t.storyRepo.GetTranslation(story.ID)
	if err != nil {
		return fmt.Errorf("failed to get translation: %w", err)
	}

	var title, content string
	var translationID *string

	if translation != nil {
		title = translation.TranslatedTitle
		content = translation.TranslatedContent
		translationID = &translation.ID
	} else {
		if story.OriginalContent == nil || *story.OriginalContent == "" {
			return fmt.Errorf("story has no content to summarize: %s", t.Ref)
		}
		title = story.OriginalTitle
		content = *story.OriginalContent
	}

	result, err := t.summarizer.Run(ctx, pipeline.SummarizationInput{
		Title:   title,
		Content: content,
	})
	if err != nil {
		t.markFailedOnLastAttempt(err)
		return fmt.Errorf("failed to summarize story: %w", err)
	}

	summary := &database.Summary{
		ID:              uuid.NewString(),
		StoryID:         story.ID,
		TranslationID:   translationID,
		SummarizedTitle: result.SummarizedTitle,
		Content:         result.Summary,
		ModelName:       result.ModelName,
		TokenCount:      result.TokenCount,
	}
	if err := t.storyRepo.SaveSummary(summary); err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"story_id", t.Ref,
		"duration", t.GetDuration(),
		"model", result.ModelName)

	return nil
}

func (t *SummarizeStoryTask) markFailedOnLastAttempt(cause error) {
	if t.CanRetry() {
		return
	}
	if err := t.storyRepo.MarkStoryFailed(t.Ref, cause.Error()); err != nil {
		slog.Error("Failed to mark story as failed", "story_id", t.Ref, "error", err)
	}
}
