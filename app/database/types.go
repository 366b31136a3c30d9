package database

import (
	"encoding/json"
	"time"

	"github.com/lysyi3m/rss-poster/app/post"
)

type Feed struct {
	ID            string // Database UUID
	Name          string // Configuration feed identifier derived from filename
	FeedURL       string // RSS/Atom feed URL from configuration
	Link          string // Homepage URL from feed's <link> element
	Title         string
	Description   string
	Language      string
	LastImageHash string // Fingerprint of the last thumbnail attached to a post
	LastFetchedAt *time.Time
	NextFetchAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Entry struct {
	ID           string
	FeedName     string
	GUID         string
	Link         string
	Title        string
	ShortURL     string
	Thumbnail    *post.Thumbnail
	Data         json.RawMessage // Serialized entry, enough to recompose the post
	Post         *post.Post      // nil for filtered entries
	IsFiltered   bool
	FilterReason string
	PublishedAt  time.Time
	CreatedAt    time.Time
}
