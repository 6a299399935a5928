package tasks

import (
	"context"

	"github.com/mkarpenko/newspipe/app/feed"
	"github.com/mkarpenko/newspipe/app/pipeline"
)

// TaskSchedulerInterface is the durable task queue the pipeline submits
// jobs to: at-least-once channel delivery with automatic retry and backoff
// when a job's handler fails. Stage jobs use the Enqueue* helpers to chain
// the next stage; the API server uses them for manual triggers.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	EnqueuePoll(feedID string) error
	EnqueueFetch(storyID string) error
	EnqueueTranslate(storyID string) error
	EnqueueSummarize(storyID string) error
}

type PollerInterface interface {
	Poll(ctx context.Context, feedID string) (*feed.PollResult, error)
}

type TranslatorInterface interface {
	Run(ctx context.Context, input pipeline.TranslationInput) (*pipeline.TranslationResult, error)
}

type SummarizerInterface interface {
	Run(ctx context.Context, input pipeline.SummarizationInput) (*pipeline.SummarizationResult, error)
}
