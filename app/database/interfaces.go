package database

import (
	"time"

	"github.com/lysyi3m/rss-poster/app/post"
)

type FeedRepository interface {
	GetFeed(feedName string) (*Feed, error)
	GetFeedCount() (int, error)

	UpsertFeed(feedName, feedURL string) error
	UpdateFeedMetadata(feedName string, title string, link string, description string, language string, nextFetch time.Time) error
	UpdateLastImageHash(feedName string, hash string) error
}

type EntryRepository interface {
	GetVisibleEntries(feedName string, limit int) ([]Entry, error)
	GetAllEntries(feedName string) ([]Entry, error)
	GetEntry(id string) (*Entry, error)
	GetEntryCount(feedName string) (int, error)
	GetEntryStats(feedName string) (int, int, int, error)

	EntryExists(feedName, guid string) (bool, error)
	InsertEntry(feedName string, entry Entry) (string, error)
	UpdateEntryPost(id string, shortURL string, p *post.Post, isFiltered bool, filterReason string) error
}
