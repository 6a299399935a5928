package api

import (
	"github.com/mkarpenko/newspipe/app/database"
	"github.com/mkarpenko/newspipe/app/sources"
	"github.com/mkarpenko/newspipe/app/tasks"
)

type Handler struct {
	feedRepo  database.FeedRepository
	storyRepo database.StoryRepository
	loader    *sources.Loader
	scheduler tasks.TaskSchedulerInterface
}
