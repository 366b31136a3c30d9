package api

import (
	"github.com/lysyi3m/rss-poster/app/database"
	"github.com/lysyi3m/rss-poster/app/feed"
	"github.com/lysyi3m/rss-poster/app/tasks"
)

type GeneratorInterface interface {
	Run(feed database.Feed, entries []database.Entry) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

type Handler struct {
	feedRepo    database.FeedRepository
	entryRepo   database.EntryRepository
	generator   GeneratorInterface
	configCache *feed.ConfigCache
	pipeline    *tasks.Pipeline
	scheduler   tasks.TaskSchedulerInterface
}

// postView is the JSON shape of a stored entry and its composed post.
type postView struct {
	ID           string `json:"id"`
	GUID         string `json:"guid"`
	Title        string `json:"title"`
	Link         string `json:"link"`
	ShortURL     string `json:"short_url,omitempty"`
	PublishedAt  string `json:"published_at"`
	IsFiltered   bool   `json:"is_filtered"`
	FilterReason string `json:"filter_reason,omitempty"`
	Summary      string `json:"summary,omitempty"`
	Post         any    `json:"post,omitempty"`
	HTML         string `json:"html,omitempty"`
}
