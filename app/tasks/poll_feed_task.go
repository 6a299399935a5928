package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

// PollFeedTask runs a full poll cycle for one feed: fetch, parse, dedup,
// filter, extract, persist. Stories created by the poll enter the pipeline
// at the translation stage.
type PollFeedTask struct {
	Task
	poller    PollerInterface
	scheduler TaskSchedulerInterface
}

func NewPollFeedTask(feedID string, poller PollerInterface, scheduler TaskSchedulerInterface) *PollFeedTask {
	return &PollFeedTask{
		Task:      NewTask(TaskTypePollFeed, feedID),
		poller:    poller,
		scheduler: scheduler,
	}
}

func (t *PollFeedTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.poller.Poll(ctx, t.Ref)
	if err != nil {
		return fmt.Errorf("failed to poll feed: %w", err)
	}

	if result.Skipped {
		slog.Debug("Feed inactive, poll skipped", "feed_id", t.Ref)
		return nil
	}

	for _, storyID := range result.CreatedStoryIDs {
		if err := t.scheduler.EnqueueTranslate(storyID); err != nil {
			slog.Warn("Failed to enqueue TranslateStoryTask", "story_id", storyID, "error", err)
		}
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"feed_id", t.Ref,
		"duration", t.GetDuration(),
		"entries", result.EntriesFound,
		"new", result.NewEntries,
		"created", result.StoriesCreated,
		"excluded", result.CategoryExcluded+result.MetadataExcluded,
		"failed", result.StoriesFailed)

	return nil
}
