package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mkarpenko/newspipe/app/database"
	"github.com/mkarpenko/newspipe/app/pipeline"
)

const translationTargetLanguage = "en"

// TranslateStoryTask translates a fetched story into English. Stories
// already in English advance without an LLM call or a translation record.
type TranslateStoryTask struct {
	Task
	storyRepo  database.StoryRepository
	translator TranslatorInterface
	scheduler  TaskSchedulerInterface
}

func NewTranslateStoryTask(storyID string, storyRepo database.StoryRepository, translator TranslatorInterface, scheduler TaskSchedulerInterface) *TranslateStoryTask {
	return &TranslateStoryTask{
		Task:       NewTask(TaskTypeTranslateStory, storyID),
		storyRepo:  storyRepo,
		translator: translator,
		scheduler:  scheduler,
	}
}

func (t *TranslateStoryTask) Execute(ctx context.Context) error {

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

	if story.OriginalContent == nil || *story.OriginalContent == "" {
		return fmt.Errorf("story has no content to translate: %s", t.Ref)
	}

	if pipeline.IsEnglish(story.OriginalLanguage) {
		if err := t.storyRepo.UpdateStoryStatus(story.ID, database.StoryStatusTranslated); err != nil {
			return fmt.Errorf("failed to update story status: %w", err)
		}
		if err := t.scheduler.EnqueueSummarize(story.ID); err != nil {
			slog.Warn("Failed to enqueue SummarizeStoryTask", "story_id", story.ID, "error", err)
		}

		slog.Info("Task completed",
			"type", t.GetType(),
			"story_id", t.Ref,
			"duration", t.GetDuration(),
			"skipped", "already in English")
		return nil
	}

	result, err := t.translator.Run(ctx, pipeline.TranslationInput{
		Title:          story.OriginalTitle,
		Content:        *story.OriginalContent,
		SourceLanguage: story.OriginalLanguage,
		TargetLanguage: "English",
	})
	if err != nil {
		t.markFailedOnLastAttempt(err)
		return fmt.Errorf("failed to translate story: %w", err)
	}

	translation := &database.Translation{
		ID:                uuid.NewString(),
		StoryID:           story.ID,
		TargetLanguage:    translationTargetLanguage,
		TranslatedTitle:   result.TranslatedTitle,
		TranslatedContent: result.TranslatedContent,
		ModelName:         result.ModelName,
		TokenCount:        result.TokenCount,
	}
	if err := t.storyRepo.SaveTranslation(translation); err != nil {
		return fmt.Errorf("failed to save translation: %w", err)
	}

	if err := t.scheduler.EnqueueSummarize(story.ID); err != nil {
		slog.Warn("Failed to enqueue SummarizeStoryTask", "story_id", story.ID, "error", err)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"story_id", t.Ref,
		"duration", t.GetDuration(),
		"source_language", story.OriginalLanguage,
		"model", result.ModelName)

	return nil
}

func (t *TranslateStoryTask) markFailedOnLastAttempt(cause error) {
	if t.CanRetry() {
		return
	}
	if err := t.storyRepo.MarkStoryFailed(t.Ref, cause.Error()); err != nil {
		slog.Error("Failed to mark story as failed", "story_id", t.Ref, "error", err)
	}
}
