package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mkarpenko/newspipe/app/database"
)

type Poller struct {
	feedRepo  database.FeedRepository
	storyRepo database.StoryRepository
	parser    *Parser
	extractor ContentExtractor

	httpClient *http.Client
	userAgent  string

	// extractionDelay paces successive article fetches within one run to
	// avoid hammering the source site. Deliberate backpressure, keep it
	// above zero in production.
	extractionDelay time.Duration
}

func NewPoller(feedRepo database.FeedRepository, storyRepo database.StoryRepository,
	parser *Parser, extractor ContentExtractor, httpClient *http.Client,
	userAgent string, extractionDelay time.Duration) *Poller {
	return &Poller{
		feedRepo:        feedRepo,
		storyRepo:       storyRepo,
		parser:          parser,
		extractor:       extractor,
		httpClient:      httpClient,
		userAgent:       userAgent,
		extractionDelay: extractionDelay,
	}
}

// Poll runs one poll cycle for a feed: fetch and parse the feed document,
// dedup against known guids, apply category and metadata exclusion rules,
// and create a story per surviving entry. Per-entry failures are recorded
// on the story and never abort the run; a feed-level fetch/parse failure is
// persisted on the feed and returned so the caller's retry policy applies.
func (p *Poller) Poll(ctx context.Context, feedID string) (*PollResult, error) {
	detail, err := p.feedRepo.GetFeedDetail(feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to load feed: %w", err)
	}
	if detail == nil {
		return nil, fmt.Errorf("feed not found: %s", feedID)
	}

	if !detail.Active {
		slog.Debug("Feed inactive, skipping poll", "feed", detail.Name)
		return &PollResult{Skipped: true}, nil
	}

	parsed, err := p.fetchAndParse(ctx, detail.URL)
	if err != nil {
		message := err.Error()
		if updateErr := p.feedRepo.UpdateFeedPolled(feedID, &message); updateErr != nil {
			slog.Error("Failed to record feed error", "feed", detail.Name, "error", updateErr)
		}
		return nil, err
	}

	existing, err := p.storyRepo.GetExistingGUIDs(feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing guids: %w", err)
	}

	excludedCategories := make(map[string]struct{}, len(detail.ExcludedCategories))
	for _, category := range detail.ExcludedCategories {
		excludedCategories[strings.ToLower(category)] = struct{}{}
	}

	result := &PollResult{EntriesFound: len(parsed.Entries)}

	var candidates []Entry
	for _, entry := range parsed.Entries {
		if _, ok := existing[entry.GUID]; ok {
			continue
		}
		result.NewEntries++

		if hasExcludedCategory(entry, excludedCategories) {
			result.CategoryExcluded++
			slog.Debug("Entry excluded by category", "feed", detail.Name, "title", entry.Title, "categories", entry.Categories)
			continue
		}

		candidates = append(candidates, entry)
	}

	for i, entry := range candidates {
		if i > 0 && p.extractionDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.extractionDelay):
			}
		}

		article, extractErr := p.extractor.ExtractFromURL(ctx, entry.Link)
		if extractErr != nil {
			slog.Warn("Extraction failed for entry", "feed", detail.Name, "url", entry.Link, "error", extractErr)
			story := p.newStory(detail, entry)
			story.Status = database.StoryStatusFailed
			message := extractErr.Error()
			story.ErrorMessage = &message
			if err := p.storyRepo.CreateStory(story); err != nil {
				return nil, fmt.Errorf("failed to create failed story: %w", err)
			}
			result.StoriesFailed++
			continue
		}

		if rule := matchExclusionRule(article.Metadata, detail.ExclusionRules); rule != nil {
			result.MetadataExcluded++
			slog.Debug("Entry excluded by page metadata", "feed", detail.Name, "title", entry.Title,
				"rule_type", rule.RuleType, "value", rule.Value)
			continue
		}

		story := p.newStory(detail, entry)
		story.Status = database.StoryStatusFetched
		story.OriginalContent = &article.TextContent
		story.Author = article.Author
		if err := p.storyRepo.CreateStory(story); err != nil {
			return nil, fmt.Errorf("failed to create story: %w", err)
		}
		result.StoriesCreated++
		result.CreatedStoryIDs = append(result.CreatedStoryIDs, story.ID)
	}

	if err := p.feedRepo.UpdateFeedPolled(feedID, nil); err != nil {
		return nil, fmt.Errorf("failed to update feed poll status: %w", err)
	}

	slog.Info("Feed polled",
		"feed", detail.Name,
		"found", result.EntriesFound,
		"new", result.NewEntries,
		"category_excluded", result.CategoryExcluded,
		"metadata_excluded", result.MetadataExcluded,
		"created", result.StoriesCreated,
		"failed", result.StoriesFailed)

	return result, nil
}

func (p *Poller) fetchAndParse(ctx context.Context, feedURL string) (*ParsedFeed, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error fetching feed: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed body: %w", err)
	}

	return p.parser.Run(data)
}

func (p *Poller) newStory(detail *database.FeedDetail, entry Entry) *database.Story {
	return &database.Story{
		ID:               uuid.NewString(),
		FeedID:           detail.ID,
		GUID:             entry.GUID,
		SourceURL:        entry.Link,
		OriginalTitle:    entry.Title,
		OriginalLanguage: detail.Publisher.LanguageCode,
		PublishedAt:      entry.PublishedAt,
	}
}

func hasExcludedCategory(entry Entry, excluded map[string]struct{}) bool {
	if len(excluded) == 0 {
		return false
	}
	for _, category := range entry.Categories {
		if _, ok := excluded[strings.ToLower(category)]; ok {
			return true
		}
	}
	return false
}

func matchExclusionRule(metadata Metadata, rules []database.StoryExclusionRule) *database.StoryExclusionRule {
	for i, rule := range rules {
		switch rule.RuleType {
		case database.RuleTypeOGType:
			if metadata.OGType != nil && strings.EqualFold(*metadata.OGType, rule.Value) {
				return &rules[i]
			}
		case database.RuleTypeJSONLDType:
			for _, typeName := range metadata.JSONLDTypes {
				if strings.EqualFold(typeName, rule.Value) {
					return &rules[i]
				}
			}
		}
	}
	return nil
}
