package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mkarpenko/newspipe/app/database"
	"github.com/mkarpenko/newspipe/app/sources"
	"github.com/mkarpenko/newspipe/app/tasks"
)

func NewHandler(feedRepo database.FeedRepository, storyRepo database.StoryRepository,
	loader *sources.Loader, scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		feedRepo:  feedRepo,
		storyRepo: storyRepo,
		loader:    loader,
		scheduler: scheduler,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		health["feeds"] = feedCount
	}

	health["loaded_sources"] = h.loader.GetDefinitionCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		stats["feeds"] = feedCount
	}

	if counts, err := h.storyRepo.GetStoryCountsByStatus(); err == nil {
		stats["stories"] = counts
	} else {
		slog.Error("Database error", "operation", "get_story_counts", "error", err)
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIListFeeds(c *gin.Context) {
	feedList, err := h.feedRepo.GetFeeds()
	if err != nil {
		slog.Error("Database error", "operation", "get_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	feeds := make([]map[string]interface{}, 0, len(feedList))
	for _, f := range feedList {
		feeds = append(feeds, map[string]interface{}{
			"id":             f.ID,
			"name":           f.Name,
			"url":            f.URL,
			"active":         f.Active,
			"last_polled_at": f.LastPolledAt,
			"last_error":     f.LastError,
			"updated_at":     f.UpdatedAt,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"feeds": feeds,
		"total": len(feeds),
	})
}

func (h *Handler) APIGetFeedDetails(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing feed id parameter"})
		return
	}

	detail, err := h.feedRepo.GetFeedDetail(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed_detail", "feed_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if detail == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	rules := make([]map[string]string, 0, len(detail.ExclusionRules))
	for _, rule := range detail.ExclusionRules {
		rules = append(rules, map[string]string{
			"type":  rule.RuleType,
			"value": rule.Value,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"id":     detail.ID,
		"name":   detail.Name,
		"url":    detail.URL,
		"active": detail.Active,
		"publisher": map[string]interface{}{
			"id":       detail.Publisher.ID,
			"name":     detail.Publisher.Name,
			"base_url": detail.Publisher.BaseURL,
			"language": detail.Publisher.LanguageCode,
		},
		"excluded_categories": detail.ExcludedCategories,
		"story_exclusions":    rules,
		"last_polled_at":      detail.LastPolledAt,
		"last_error":          detail.LastError,
	})
}

func (h *Handler) APIGetStory(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing story id parameter"})
		return
	}

	story, err := h.storyRepo.GetStory(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_story", "story_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if story == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Story not found"})
		return
	}

	response := map[string]interface{}{
		"id":                story.ID,
		"feed_id":           story.FeedID,
		"guid":              story.GUID,
		"source_url":        story.SourceURL,
		"original_title":    story.OriginalTitle,
		"original_content":  story.OriginalContent,
		"original_language": story.OriginalLanguage,
		"author":            story.Author,
		"published_at":      story.PublishedAt,
		"status":            story.Status,
		"error_message":     story.ErrorMessage,
		"created_at":        story.CreatedAt,
	}

	if translation, err := h.storyRepo.GetTranslation(id); err == nil && translation != nil {
		response["translation"] = map[string]interface{}{
			"id":              translation.ID,
			"target_language": translation.TargetLanguage,
			"title":           translation.TranslatedTitle,
			"content":         translation.TranslatedContent,
			"model":           translation.ModelName,
			"token_count":     translation.TokenCount,
		}
	}

	if summary, err := h.storyRepo.GetSummary(id); err == nil && summary != nil {
		response["summary"] = map[string]interface{}{
			"id":             summary.ID,
			"translation_id": summary.TranslationID,
			"title":          summary.SummarizedTitle,
			"content":        summary.Content,
			"model":          summary.ModelName,
			"token_count":    summary.TokenCount,
		}
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) APIPollFeed(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing feed id parameter"})
		return
	}

	f, err := h.feedRepo.GetFeed(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if f == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	if err := h.scheduler.EnqueuePoll(id); err != nil {
		slog.Error("Failed to enqueue PollFeedTask", "feed_id", id, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Task queue is full"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Poll scheduled",
		"feed_id": id,
	})
}

func (h *Handler) APIFetchStory(c *gin.Context) {
	h.enqueueStoryTask(c, string(tasks.TaskTypeFetchStory), h.scheduler.EnqueueFetch)
}

func (h *Handler) APITranslateStory(c *gin.Context) {
	h.enqueueStoryTask(c, string(tasks.TaskTypeTranslateStory), h.scheduler.EnqueueTranslate)
}

func (h *Handler) APISummarizeStory(c *gin.Context) {
	h.enqueueStoryTask(c, string(tasks.TaskTypeSummarizeStory), h.scheduler.EnqueueSummarize)
}

func (h *Handler) enqueueStoryTask(c *gin.Context, taskType string, enqueue func(string) error) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing story id parameter"})
		return
	}

	story, err := h.storyRepo.GetStory(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_story", "story_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if story == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Story not found"})
		return
	}

	if err := enqueue(id); err != nil {
		slog.Error("Failed to enqueue task", "type", taskType, "story_id", id, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Task queue is full"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":  "Task scheduled",
		"type":     taskType,
		"story_id": id,
	})
}
