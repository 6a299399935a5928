package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mkarpenko/newspipe/app/api"
	"github.com/mkarpenko/newspipe/app/cfg"
	"github.com/mkarpenko/newspipe/app/database"
	"github.com/mkarpenko/newspipe/app/feed"
	"github.com/mkarpenko/newspipe/app/llm"
	"github.com/mkarpenko/newspipe/app/pipeline"
	"github.com/mkarpenko/newspipe/app/sources"
	"github.com/mkarpenko/newspipe/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Newspipe server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "migration_version", version, "dirty", dirty)

	loader := sources.NewLoader(appCfg.SourcesDir)
	if err := loader.Run(); err != nil {
		slog.Error("Failed to load source definitions", "dir", appCfg.SourcesDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Source definitions loaded", "dir", appCfg.SourcesDir, "count", loader.GetDefinitionCount())

	feedRepo := database.NewFeedRepository(db)
	storyRepo := database.NewStoryRepository(db)

	registerSources(loader, feedRepo)

	httpClient := &http.Client{Timeout: time.Duration(appCfg.HTTPTimeout) * time.Second}

	parser := feed.NewParser()
	extractor := feed.NewExtractor(httpClient, appCfg.UserAgent)
	poller := feed.NewPoller(feedRepo, storyRepo, parser, extractor, httpClient,
		appCfg.UserAgent, time.Duration(appCfg.ExtractionDelay)*time.Millisecond)

	llmClient := llm.NewClient(llm.ClientConfig{
		APIKey: appCfg.GeminiAPIKey,
		Model:  appCfg.GeminiModel,
	})
	translator := pipeline.NewTranslator(llmClient)
	summarizer := pipeline.NewSummarizer(llmClient)

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount, "poll_interval", appCfg.PollInterval)
	scheduler := tasks.NewScheduler(feedRepo, storyRepo, poller, extractor, translator, summarizer)
	scheduler.Start()
	defer scheduler.Stop()

	apiHandler := api.NewHandler(feedRepo, storyRepo, loader, scheduler)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	slog.Info("Newspipe server started")

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	// Scheduler is stopped via defer
	slog.Info("Newspipe server shutdown complete")
}

// registerSources syncs the loaded source definitions into the database.
// A definition failure is logged and skipped so one bad file does not take
// the whole service down.
func registerSources(loader *sources.Loader, feedRepo database.FeedRepository) {
	registeredCount := 0

	for _, definition := range loader.GetDefinitions() {
		publisherID, err := feedRepo.UpsertPublisher(
			definition.Publisher.Name, definition.Publisher.BaseURL, definition.Publisher.Language)
		if err != nil {
			slog.Warn("Failed to register publisher", "publisher", definition.Publisher.Name, "error", err)
			continue
		}

		for _, f := range definition.Feeds {
			feedID, err := feedRepo.UpsertFeed(publisherID, f.Name, f.URL, f.IsActive())
			if err != nil {
				slog.Warn("Failed to register feed", "feed", f.Name, "error", err)
				continue
			}

			rules := make([]database.StoryExclusionRule, 0, len(f.StoryExclusions))
			for _, rule := range f.StoryExclusions {
				rules = append(rules, database.StoryExclusionRule{
					FeedID:   feedID,
					RuleType: rule.Type,
					Value:    rule.Value,
				})
			}

			if err := feedRepo.ReplaceFeedRules(feedID, f.CategoryExclusions, rules); err != nil {
				slog.Warn("Failed to register feed rules", "feed", f.Name, "error", err)
				continue
			}

			slog.Debug("Registered feed", "publisher", definition.Publisher.Name, "feed", f.Name, "feed_id", feedID)
			registeredCount++
		}
	}

	slog.Info("Feeds registered", "count", registeredCount)
}
