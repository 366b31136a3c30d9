package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/rss-poster/app/post"
)

var _ EntryRepository = (*EntryRepo)(nil)

type EntryRepo struct {
	db *DB
}

func NewEntryRepository(db *DB) *EntryRepo {
	return &EntryRepo{db: db}
}

const entryColumns = `id, feed_name, guid, link, title, short_url,
	thumbnail_url, thumbnail_width, thumbnail_height, data, post,
	is_filtered, filter_reason, published_at, created_at`

func (r *EntryRepo) EntryExists(feedName, guid string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(`
		SELECT EXISTS (SELECT 1 FROM entries WHERE feed_name = ? AND guid = ?)
	`, feedName, guid).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check entry: %w", err)
	}
	return exists, nil
}

// InsertEntry stores a new entry and returns its id
func (r *EntryRepo) InsertEntry(feedName string, entry Entry) (string, error) {
	postJSON, err := encodePost(entry.Post)
	if err != nil {
		return "", err
	}

	var thumb post.Thumbnail
	if entry.Thumbnail != nil {
		thumb = *entry.Thumbnail
	}

	id := uuid.NewString()
	_, err = r.db.Exec(`
		INSERT INTO entries (
			id, feed_name, guid, link, title, short_url,
			thumbnail_url, thumbnail_width, thumbnail_height, data, post,
			is_filtered, filter_reason, published_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, feedName, entry.GUID, entry.Link, entry.Title, entry.ShortURL,
		thumb.URL, thumb.Width, thumb.Height, string(entry.Data), postJSON,
		entry.IsFiltered, entry.FilterReason, entry.PublishedAt.UTC(), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to insert entry: %w", err)
	}

	return id, nil
}

// UpdateEntryPost replaces the composed post and filter status of an entry
func (r *EntryRepo) UpdateEntryPost(id string, shortURL string, p *post.Post, isFiltered bool, filterReason string) error {
	postJSON, err := encodePost(p)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		UPDATE entries
		SET short_url = ?, post = ?, is_filtered = ?, filter_reason = ?
		WHERE id = ?
	`, shortURL, postJSON, isFiltered, filterReason, id)
	if err != nil {
		return fmt.Errorf("failed to update entry post: %w", err)
	}

	return nil
}

// GetVisibleEntries returns non-filtered entries for a feed, newest first
func (r *EntryRepo) GetVisibleEntries(feedName string, limit int) ([]Entry, error) {
	rows, err := r.db.Query(`
		SELECT `+entryColumns+`
		FROM entries
		WHERE feed_name = ? AND is_filtered = FALSE
		ORDER BY published_at DESC, created_at DESC
		LIMIT ?
	`, feedName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get visible entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// GetAllEntries returns all entries for a feed (including filtered ones)
func (r *EntryRepo) GetAllEntries(feedName string) ([]Entry, error) {
	rows, err := r.db.Query(`
		SELECT `+entryColumns+`
		FROM entries
		WHERE feed_name = ?
		ORDER BY published_at DESC, created_at DESC
	`, feedName)
	if err != nil {
		return nil, fmt.Errorf("failed to get all entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// GetEntry returns nil without error when no entry has the id
func (r *EntryRepo) GetEntry(id string) (*Entry, error) {
	rows, err := r.db.Query(`SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func (r *EntryRepo) GetEntryCount(feedName string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM entries WHERE feed_name = ?", feedName).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get entry count: %w", err)
	}
	return count, nil
}

// GetEntryStats returns total, visible and filtered counts for a feed
func (r *EntryRepo) GetEntryStats(feedName string) (total, visible, filtered int, err error) {
	err = r.db.QueryRow(`
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN is_filtered = FALSE THEN 1 ELSE 0 END), 0) AS visible,
			COALESCE(SUM(CASE WHEN is_filtered = TRUE THEN 1 ELSE 0 END), 0) AS filtered
		FROM entries
		WHERE feed_name = ?
	`, feedName).Scan(&total, &visible, &filtered)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to get entry stats: %w", err)
	}

	return total, visible, filtered, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var entry Entry
		var thumb post.Thumbnail
		var data string
		var postJSON sql.NullString

		err := rows.Scan(
			&entry.ID, &entry.FeedName, &entry.GUID, &entry.Link, &entry.Title, &entry.ShortURL,
			&thumb.URL, &thumb.Width, &thumb.Height, &data, &postJSON,
			&entry.IsFiltered, &entry.FilterReason, &entry.PublishedAt, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry row: %w", err)
		}

		entry.Data = json.RawMessage(data)
		if thumb.URL != "" {
			entry.Thumbnail = &thumb
		}
		if postJSON.Valid && postJSON.String != "" {
			var p post.Post
			if err := json.Unmarshal([]byte(postJSON.String), &p); err != nil {
				return nil, fmt.Errorf("failed to decode post for entry %s: %w", entry.ID, err)
			}
			entry.Post = &p
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry rows: %w", err)
	}

	return entries, nil
}

func encodePost(p *post.Post) (any, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode post: %w", err)
	}
	return string(data), nil
}
