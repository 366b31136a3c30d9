package feed

import (
	"cmp"
	"slices"
	"time"
)

// Feed processing types

type Metadata struct {
	Title           string
	Link            string
	Description     string
	ImageURL        string
	Language        string
	FeedPublishedAt *time.Time
}

type Item struct {
	GUID        string
	Title       string
	TitleIsHTML bool
	Link        string
	Links       []string // alternate links, in feed order
	Description string
	Content     string
	PublishedAt time.Time
	UpdatedAt   *time.Time
	Authors     []string // Multiple authors in format "email (name)" or "name"
	Categories  []string

	MediaThumbnails []MediaThumbnail

	ContentHash  string
	IsFiltered   bool
	FilterReason string
}

// MediaThumbnail is a media:thumbnail descriptor. Width and Height are zero
// when the feed omits them.
type MediaThumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Summary is the item's HTML summary: the description, else the content.
func (i Item) Summary() string {
	return cmp.Or(i.Description, i.Content)
}

func (i Item) Author() string {
	if len(i.Authors) == 0 {
		return ""
	}
	return i.Authors[0]
}

// Configuration types

type FormatMode string

const (
	FormatTitleOnly     FormatMode = "TITLE_ONLY"
	FormatTitleThenLink FormatMode = "TITLE_THEN_LINK"
	FormatBroadcast     FormatMode = "BROADCAST"
)

const (
	ImageStrategyRSS     = "rss"
	ImageStrategyContent = "content"
	ImageStrategyMeta    = "meta"
	ImageStrategyHTML    = "html"
)

const DefaultMaxChars = 256

type Config struct {
	Name     string         // Derived from filename (without .yml extension)
	URL      string         `yaml:"url"`
	Settings ConfigSettings `yaml:"settings"`
	Filters  []ConfigFilter `yaml:"filters"`
}

type ConfigSettings struct {
	Enabled         bool `yaml:"enabled"`
	RefreshInterval int  `yaml:"refresh_interval"` // seconds
	MaxItems        int  `yaml:"max_items"`
	Timeout         int  `yaml:"timeout"` // seconds

	LinkedListMode         bool              `yaml:"linked_list_mode"`
	FormatMode             FormatMode        `yaml:"format_mode"`
	IncludeSummary         bool              `yaml:"include_summary"`
	IncludeThumb           bool              `yaml:"include_thumb"`
	IncludeVideo           bool              `yaml:"include_video"`
	RemoteFetch            *bool             `yaml:"remote_fetch"`
	MaxChars               int               `yaml:"max_chars"`
	Language               string            `yaml:"language"`
	ImageStrategyBlacklist []string          `yaml:"image_strategy_blacklist"`
	Shortener              ShortenerSettings `yaml:"shortener"`
	UTMSource              string            `yaml:"utm_source"`
	UTMMedium              string            `yaml:"utm_medium"`
}

type ShortenerSettings struct {
	Login  string `yaml:"login"`
	APIKey string `yaml:"api_key"`
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// AllowRemoteFetch defaults to true when the setting is absent.
func (s ConfigSettings) AllowRemoteFetch() bool {
	return s.RemoteFetch == nil || *s.RemoteFetch
}

func (s ConfigSettings) ImageStrategyAllowed(strategy string) bool {
	return !slices.Contains(s.ImageStrategyBlacklist, strategy)
}

func (s ConfigSettings) HasShortenerCredentials() bool {
	return s.Shortener.Login != "" && s.Shortener.APIKey != ""
}

// Context is the per-pass view of a feed handed to the posting pipeline.
// LastImageHash is the only field the pipeline mutates; persisting it is
// the caller's job.
type Context struct {
	Name          string
	URL           string
	Settings      ConfigSettings
	LastImageHash string
}

func (c *Config) Context(lastImageHash string) *Context {
	return &Context{
		Name:          c.Name,
		URL:           c.URL,
		Settings:      c.Settings,
		LastImageHash: lastImageHash,
	}
}
