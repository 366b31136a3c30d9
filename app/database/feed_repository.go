package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ FeedRepository = (*FeedRepo)(nil)

type FeedRepo struct {
	db *DB
}

func NewFeedRepository(db *DB) *FeedRepo {
	return &FeedRepo{db: db}
}

const feedColumns = `id, name, feed_url, title, link, description, language, last_image_hash,
	last_fetched_at, next_fetch_at, created_at, updated_at`

// UpsertFeed registers a feed or updates its URL
func (r *FeedRepo) UpsertFeed(feedName, feedURL string) error {
	now := time.Now().UTC()

	_, err := r.db.Exec(`
		INSERT INTO feeds (id, name, feed_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			feed_url = excluded.feed_url,
			updated_at = excluded.updated_at
	`, uuid.NewString(), feedName, feedURL, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert feed: %w", err)
	}

	return nil
}

// UpdateFeedMetadata stores channel metadata after a successful fetch and schedules the next one
func (r *FeedRepo) UpdateFeedMetadata(feedName string, title string, link string, description string, language string, nextFetch time.Time) error {
	now := time.Now().UTC()

	_, err := r.db.Exec(`
		UPDATE feeds
		SET title = ?, link = ?, description = ?, language = ?,
		    last_fetched_at = ?, next_fetch_at = ?, updated_at = ?
		WHERE name = ?
	`, title, link, description, language, now, nextFetch.UTC(), now, feedName)
	if err != nil {
		return fmt.Errorf("failed to update feed metadata: %w", err)
	}

	return nil
}

func (r *FeedRepo) UpdateLastImageHash(feedName string, hash string) error {
	_, err := r.db.Exec(`
		UPDATE feeds SET last_image_hash = ?, updated_at = ? WHERE name = ?
	`, hash, time.Now().UTC(), feedName)
	if err != nil {
		return fmt.Errorf("failed to update last image hash: %w", err)
	}

	return nil
}

// GetFeed returns nil without error when the feed is not registered
func (r *FeedRepo) GetFeed(feedName string) (*Feed, error) {
	var feed Feed
	var lastFetchedAt, nextFetchAt sql.NullTime

	err := r.db.QueryRow(`SELECT `+feedColumns+` FROM feeds WHERE name = ?`, feedName).Scan(
		&feed.ID, &feed.Name, &feed.FeedURL, &feed.Title, &feed.Link, &feed.Description,
		&feed.Language, &feed.LastImageHash, &lastFetchedAt, &nextFetchAt,
		&feed.CreatedAt, &feed.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}

	feed.LastFetchedAt = nullTime(lastFetchedAt)
	feed.NextFetchAt = nullTime(nextFetchAt)

	return &feed, nil
}

func (r *FeedRepo) GetFeedCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
