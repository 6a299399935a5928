package database

import (
	"database/sql"
	"fmt"
	"time"
)

var _ StoryRepository = (*storyRepo)(nil)

type storyRepo struct {
	db *DB
}

func NewStoryRepository(db *DB) StoryRepository {
	return &storyRepo{db: db}
}

func (r *storyRepo) GetStory(storyID string) (*Story, error) {
	var story Story
	err := r.db.QueryRow(`
		SELECT id, feed_id, guid, source_url, original_title, original_content,
		       original_language, author, published_at, status, error_message,
		       created_at, updated_at
		FROM stories
		WHERE id = ?
	`, storyID).Scan(
		&story.ID, &story.FeedID, &story.GUID, &story.SourceURL, &story.OriginalTitle,
		&story.OriginalContent, &story.OriginalLanguage, &story.Author, &story.PublishedAt,
		&story.Status, &story.ErrorMessage, &story.CreatedAt, &story.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get story: %w", err)
	}

	return &story, nil
}

func (r *storyRepo) GetExistingGUIDs(feedID string) (map[string]struct{}, error) {
	rows, err := r.db.Query(`SELECT guid FROM stories WHERE feed_id = ?`, feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to get existing guids: %w", err)
	}
	defer rows.Close()

	guids := make(map[string]struct{})
	for rows.Next() {
		var guid string
		if err := rows.Scan(&guid); err != nil {
			return nil, fmt.Errorf("failed to scan guid: %w", err)
		}
		guids[guid] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating guid rows: %w", err)
	}

	return guids, nil
}

func (r *storyRepo) GetStoryCountsByStatus() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM stories GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to get story counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan story count: %w", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating story count rows: %w", err)
	}

	return counts, nil
}

func (r *storyRepo) CreateStory(story *Story) error {
	// The UNIQUE(feed_id, guid) constraint is the dedup guarantee: a
	// re-delivered poll job can never insert the same entry twice.
	_, err := r.db.Exec(`
		INSERT INTO stories (
			id, feed_id, guid, source_url, original_title, original_content,
			original_language, author, published_at, status, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, story.ID, story.FeedID, story.GUID, story.SourceURL, story.OriginalTitle,
		story.OriginalContent, story.OriginalLanguage, story.Author, story.PublishedAt,
		story.Status, story.ErrorMessage)

	if err != nil {
		return fmt.Errorf("failed to create story: %w", err)
	}

	return nil
}

func (r *storyRepo) UpdateStoryFetched(storyID string, content string, author *string) error {
	_, err := r.db.Exec(`
		UPDATE stories
		SET original_content = ?, author = ?, status = ?, updated_at = ?
		WHERE id = ?
	`, content, author, StoryStatusFetched, time.Now().UTC(), storyID)

	if err != nil {
		return fmt.Errorf("failed to update fetched story: %w", err)
	}

	return nil
}

func (r *storyRepo) UpdateStoryStatus(storyID string, status string) error {
	_, err := r.db.Exec(`
		UPDATE stories SET status = ?, updated_at = ? WHERE id = ?
	`, status, time.Now().UTC(), storyID)

	if err != nil {
		return fmt.Errorf("failed to update story status: %w", err)
	}

	return nil
}

func (r *storyRepo) MarkStoryFailed(storyID string, errorMessage string) error {
	_, err := r.db.Exec(`
		UPDATE stories SET status = ?, error_message = ?, updated_at = ? WHERE id = ?
	`, StoryStatusFailed, errorMessage, time.Now().UTC(), storyID)

	if err != nil {
		return fmt.Errorf("failed to mark story failed: %w", err)
	}

	return nil
}

func (r *storyRepo) SaveTranslation(translation *Translation) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO translations (
			id, story_id, target_language, translated_title, translated_content,
			model_name, token_count
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (story_id, target_language) DO UPDATE SET
			translated_title = excluded.translated_title,
			translated_content = excluded.translated_content,
			model_name = excluded.model_name,
			token_count = excluded.token_count
	`, translation.ID, translation.StoryID, translation.TargetLanguage,
		translation.TranslatedTitle, translation.TranslatedContent,
		translation.ModelName, translation.TokenCount)
	if err != nil {
		return fmt.Errorf("failed to save translation: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE stories SET status = ?, updated_at = ? WHERE id = ?
	`, StoryStatusTranslated, time.Now().UTC(), translation.StoryID)
	if err != nil {
		return fmt.Errorf("failed to advance story status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit translation: %w", err)
	}

	return nil
}

func (r *storyRepo) SaveSummary(summary *Summary) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO summaries (
			id, story_id, translation_id, summarized_title, content, model_name, token_count
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (story_id) DO UPDATE SET
			translation_id = excluded.translation_id,
			summarized_title = excluded.summarized_title,
			content = excluded.content,
			model_name = excluded.model_name,
			token_count = excluded.token_count
	`, summary.ID, summary.StoryID, summary.TranslationID, summary.SummarizedTitle,
		summary.Content, summary.ModelName, summary.TokenCount)
	if err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE stories SET status = ?, updated_at = ? WHERE id = ?
	`, StoryStatusSummarized, time.Now().UTC(), summary.StoryID)
	if err != nil {
		return fmt.Errorf("failed to advance story status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit summary: %w", err)
	}

	return nil
}

func (r *storyRepo) GetTranslation(storyID string) (*Translation, error) {
	var translation Translation
	err := r.db.QueryRow(`
		SELECT id, story_id, target_language, translated_title, translated_content,
		       model_name, token_count, created_at
		FROM translations
		WHERE story_id = ?
	`, storyID).Scan(
		&translation.ID, &translation.StoryID, &translation.TargetLanguage,
		&translation.TranslatedTitle, &translation.TranslatedContent,
		&translation.ModelName, &translation.TokenCount, &translation.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get translation: %w", err)
	}

	return &translation, nil
}

func (r *storyRepo) GetSummary(storyID string) (*Summary, error) {
	var summary Summary
	err := r.db.QueryRow(`
		SELECT id, story_id, translation_id, summarized_title, content,
		       model_name, token_count, created_at
		FROM summaries
		WHERE story_id = ?
	`, storyID).Scan(
		&summary.ID, &summary.StoryID, &summary.TranslationID, &summary.SummarizedTitle,
		&summary.Content, &summary.ModelName, &summary.TokenCount, &summary.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}

	return &summary, nil
}
