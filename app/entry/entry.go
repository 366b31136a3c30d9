// Package entry prepares a feed item for posting: title cleanup, permalink
// resolution, thumbnail and video discovery.
package entry

import (
	"time"

	"github.com/lysyi3m/rss-poster/app/feed"
	"github.com/lysyi3m/rss-poster/app/post"
)

const (
	DefaultTitle  = "No Title"
	MaxTitleChars = 499
	MaxLinkChars  = 500
	MaxGUIDChars  = 500
)

// Entry is everything the composer needs to build a post. It is stored as
// JSON so a post can be recomposed later without refetching anything.
type Entry struct {
	GUID        string          `json:"guid"`
	Title       string          `json:"title"`
	Link        string          `json:"link"`
	ShortURL    string          `json:"short_url,omitempty"`
	Summary     string          `json:"summary,omitempty"`
	Language    string          `json:"language,omitempty"`
	Author      string          `json:"author,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	PublishedAt time.Time       `json:"published_at"`
	Thumbnail   *post.Thumbnail `json:"thumbnail,omitempty"`
	Video       map[string]any  `json:"video,omitempty"`

	// Kept so thumbnails can still be resolved after a filtered entry is
	// let through.
	MediaThumbnails []feed.MediaThumbnail `json:"media_thumbnails,omitempty"`

	// Taken from the article page when it was fetched.
	PageDescription string `json:"page_description,omitempty"`
	PageExcerpt     string `json:"page_excerpt,omitempty"`
}

// bare copies the item's own fields into an Entry.
func bare(fc *feed.Context, item feed.Item) *Entry {
	e := &Entry{
		GUID:            item.GUID,
		Title:           PrepareTitle(item),
		Link:            item.Link,
		Summary:         item.Summary(),
		Language:        fc.Settings.Language,
		Author:          item.Author(),
		PublishedAt:     item.PublishedAt,
		MediaThumbnails: item.MediaThumbnails,
	}

	for _, tag := range item.Categories {
		if tag != "" {
			e.Tags = append(e.Tags, tag)
		}
	}

	return e
}

// Item is the filterable view of a stored entry.
func (e *Entry) Item() feed.Item {
	item := feed.Item{
		GUID:            e.GUID,
		Title:           e.Title,
		Link:            e.Link,
		Description:     e.Summary,
		PublishedAt:     e.PublishedAt,
		Categories:      e.Tags,
		MediaThumbnails: e.MediaThumbnails,
	}
	if e.Author != "" {
		item.Authors = []string{e.Author}
	}
	return item
}
