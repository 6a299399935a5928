package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ FeedRepository = (*feedRepo)(nil)

type feedRepo struct {
	db *DB
}

func NewFeedRepository(db *DB) FeedRepository {
	return &feedRepo{db: db}
}

func (r *feedRepo) GetFeed(feedID string) (*Feed, error) {
	var feed Feed
	err := r.db.QueryRow(`
		SELECT id, publisher_id, name, url, active, last_polled_at, last_error, created_at, updated_at
		FROM feeds
		WHERE id = ?
	`, feedID).Scan(
		&feed.ID, &feed.PublisherID, &feed.Name, &feed.URL, &feed.Active,
		&feed.LastPolledAt, &feed.LastError, &feed.CreatedAt, &feed.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}

	return &feed, nil
}

func (r *feedRepo) GetFeeds() ([]Feed, error) {
	rows, err := r.db.Query(`
		SELECT id, publisher_id, name, url, active, last_polled_at, last_error, created_at, updated_at
		FROM feeds
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get feeds: %w", err)
	}
	defer rows.Close()

	return scanFeeds(rows)
}

func (r *feedRepo) GetFeedDetail(feedID string) (*FeedDetail, error) {
	feed, err := r.GetFeed(feedID)
	if err != nil {
		return nil, err
	}
	if feed == nil {
		return nil, nil
	}

	detail := &FeedDetail{Feed: *feed}

	err = r.db.QueryRow(`
		SELECT id, name, base_url, language_code, created_at
		FROM publishers
		WHERE id = ?
	`, feed.PublisherID).Scan(
		&detail.Publisher.ID, &detail.Publisher.Name, &detail.Publisher.BaseURL,
		&detail.Publisher.LanguageCode, &detail.Publisher.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get publisher for feed: %w", err)
	}

	catRows, err := r.db.Query(`SELECT category FROM category_exclusions WHERE feed_id = ?`, feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to get category exclusions: %w", err)
	}
	defer catRows.Close()

	for catRows.Next() {
		var category string
		if err := catRows.Scan(&category); err != nil {
			return nil, fmt.Errorf("failed to scan category exclusion: %w", err)
		}
		detail.ExcludedCategories = append(detail.ExcludedCategories, category)
	}
	if err := catRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category exclusions: %w", err)
	}

	ruleRows, err := r.db.Query(`SELECT feed_id, rule_type, value FROM story_exclusion_rules WHERE feed_id = ?`, feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to get story exclusion rules: %w", err)
	}
	defer ruleRows.Close()

	for ruleRows.Next() {
		var rule StoryExclusionRule
		if err := ruleRows.Scan(&rule.FeedID, &rule.RuleType, &rule.Value); err != nil {
			return nil, fmt.Errorf("failed to scan story exclusion rule: %w", err)
		}
		detail.ExclusionRules = append(detail.ExclusionRules, rule)
	}
	if err := ruleRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating story exclusion rules: %w", err)
	}

	return detail, nil
}

func (r *feedRepo) GetFeedsDueForPolling(olderThan time.Time) ([]Feed, error) {
	rows, err := r.db.Query(`
		SELECT id, publisher_id, name, url, active, last_polled_at, last_error, created_at, updated_at
		FROM feeds
		WHERE active = 1
		  AND (last_polled_at IS NULL OR last_polled_at <= ?)
		ORDER BY last_polled_at
		LIMIT 50
	`, olderThan.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get feeds due for polling: %w", err)
	}
	defer rows.Close()

	return scanFeeds(rows)
}

func (r *feedRepo) GetFeedCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

func (r *feedRepo) UpsertPublisher(name, baseURL, languageCode string) (string, error) {
	var id string
	err := r.db.QueryRow(`SELECT id FROM publishers WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		id = uuid.NewString()
		_, err = r.db.Exec(`
			INSERT INTO publishers (id, name, base_url, language_code)
			VALUES (?, ?, ?, ?)
		`, id, name, baseURL, languageCode)
		if err != nil {
			return "", fmt.Errorf("failed to insert publisher: %w", err)
		}
		return id, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to check existing publisher: %w", err)
	}

	_, err = r.db.Exec(`
		UPDATE publishers SET base_url = ?, language_code = ? WHERE id = ?
	`, baseURL, languageCode, id)
	if err != nil {
		return "", fmt.Errorf("failed to update publisher: %w", err)
	}

	return id, nil
}

func (r *feedRepo) UpsertFeed(publisherID, name, url string, active bool) (string, error) {
	var id string
	err := r.db.QueryRow(`SELECT id FROM feeds WHERE url = ?`, url).Scan(&id)
	if err == sql.ErrNoRows {
		id = uuid.NewString()
		_, err = r.db.Exec(`
			INSERT INTO feeds (id, publisher_id, name, url, active)
			VALUES (?, ?, ?, ?, ?)
		`, id, publisherID, name, url, active)
		if err != nil {
			return "", fmt.Errorf("failed to insert feed: %w", err)
		}
		return id, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to check existing feed: %w", err)
	}

	_, err = r.db.Exec(`
		UPDATE feeds
		SET publisher_id = ?, name = ?, active = ?, updated_at = ?
		WHERE id = ?
	`, publisherID, name, active, time.Now().UTC(), id)
	if err != nil {
		return "", fmt.Errorf("failed to update feed: %w", err)
	}

	return id, nil
}

func (r *feedRepo) ReplaceFeedRules(feedID string, categories []string, rules []StoryExclusionRule) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM category_exclusions WHERE feed_id = ?`, feedID); err != nil {
		return fmt.Errorf("failed to clear category exclusions: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM story_exclusion_rules WHERE feed_id = ?`, feedID); err != nil {
		return fmt.Errorf("failed to clear story exclusion rules: %w", err)
	}

	for _, category := range categories {
		if _, err := tx.Exec(`
			INSERT INTO category_exclusions (feed_id, category) VALUES (?, ?)
		`, feedID, category); err != nil {
			return fmt.Errorf("failed to insert category exclusion: %w", err)
		}
	}

	for _, rule := range rules {
		if _, err := tx.Exec(`
			INSERT INTO story_exclusion_rules (feed_id, rule_type, value) VALUES (?, ?, ?)
		`, feedID, rule.RuleType, rule.Value); err != nil {
			return fmt.Errorf("failed to insert story exclusion rule: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit feed rules: %w", err)
	}

	return nil
}

func (r *feedRepo) UpdateFeedPolled(feedID string, lastError *string) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(`
		UPDATE feeds
		SET last_polled_at = ?, last_error = ?, updated_at = ?
		WHERE id = ?
	`, now, lastError, now, feedID)

	if err != nil {
		return fmt.Errorf("failed to update feed poll status: %w", err)
	}

	return nil
}

func scanFeeds(rows *sql.Rows) ([]Feed, error) {
	var feeds []Feed
	for rows.Next() {
		var feed Feed
		err := rows.Scan(
			&feed.ID, &feed.PublisherID, &feed.Name, &feed.URL, &feed.Active,
			&feed.LastPolledAt, &feed.LastError, &feed.CreatedAt, &feed.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}
