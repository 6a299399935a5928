package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mkarpenko/newspipe/app/cfg"
	"github.com/mkarpenko/newspipe/app/database"
	"github.com/mkarpenko/newspipe/app/feed"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	feedRepo     database.FeedRepository
	storyRepo    database.StoryRepository
	poller       PollerInterface
	extractor    feed.ContentExtractor
	translator   TranslatorInterface
	summarizer   SummarizerInterface
	interval     time.Duration
	pollInterval time.Duration
	workerCount  int
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	taskQueue    chan TaskInterface
}

func NewScheduler(feedRepo database.FeedRepository, storyRepo database.StoryRepository,
	poller PollerInterface, extractor feed.ContentExtractor,
	translator TranslatorInterface, summarizer SummarizerInterface) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		feedRepo:     feedRepo,
		storyRepo:    storyRepo,
		poller:       poller,
		extractor:    extractor,
		translator:   translator,
		summarizer:   summarizer,
		interval:     time.Duration(cfg.SchedulerInterval) * time.Second,
		pollInterval: time.Duration(cfg.PollInterval) * time.Second,
		workerCount:  cfg.WorkerCount,
		ctx:          ctx,
		cancel:       cancel,
		taskQueue:    make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueDuePolls()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueDuePolls()
			}
		}
	}()

}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) EnqueuePoll(feedID string) error {
	return s.EnqueueTask(NewPollFeedTask(feedID, s.poller, s))
}

func (s *Scheduler) EnqueueFetch(storyID string) error {
	return s.EnqueueTask(NewFetchStoryTask(storyID, s.storyRepo, s.extractor, s))
}

func (s *Scheduler) EnqueueTranslate(storyID string) error {
	return s.EnqueueTask(NewTranslateStoryTask(storyID, s.storyRepo, s.translator, s))
}

func (s *Scheduler) EnqueueSummarize(storyID string) error {
	return s.EnqueueTask(NewSummarizeStoryTask(storyID, s.storyRepo, s.summarizer))
}

// enqueueDuePolls schedules a poll for every active feed whose last poll is
// older than the poll interval. Never-polled feeds are always due.
func (s *Scheduler) enqueueDuePolls() {
	olderThan := time.Now().UTC().Add(-s.pollInterval)

	feeds, err := s.feedRepo.GetFeedsDueForPolling(olderThan)
	if err != nil {
		slog.Warn("Failed to load feeds due for polling", "error", err)
		return
	}
	if len(feeds) == 0 {
		slog.Debug("No feeds due for polling")
		return
	}

	slog.Debug("Scheduling feed polls", "count", len(feeds))

	for _, f := range feeds {
		if err := s.EnqueuePoll(f.ID); err != nil {
			slog.Warn("Failed to enqueue PollFeedTask", "feed", f.Name, "error", err)
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "ref", task.GetRef(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			go func() {
				time.Sleep(retryDelay)
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				default:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
