package entry

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rss-poster/app/feed"
	"github.com/lysyi3m/rss-poster/app/pagemeta"
	"github.com/lysyi3m/rss-poster/app/permalink"
	"github.com/lysyi3m/rss-poster/app/sanitize"
	"github.com/lysyi3m/rss-poster/app/thumbnail"
)

var ErrMalformedItem = errors.New("malformed feed item")

type PageSource interface {
	Fetch(ctx context.Context, url string) *pagemeta.Metadata
}

type VideoSource interface {
	Lookup(ctx context.Context, html string) map[string]any
}

type Builder struct {
	thumbnails *thumbnail.Engine
	pages      PageSource
	videos     VideoSource
}

func NewBuilder(thumbnails *thumbnail.Engine, pages PageSource, videos VideoSource) *Builder {
	return &Builder{
		thumbnails: thumbnails,
		pages:      pages,
		videos:     videos,
	}
}

// Build turns item into an Entry. Items without a usable link or guid, or
// with oversized ones, fail with ErrMalformedItem; every optional lookup
// that fails simply leaves its field empty.
//
// An accepted thumbnail updates fc.LastImageHash.
func (b *Builder) Build(ctx context.Context, fc *feed.Context, item feed.Item) (*Entry, error) {
	e, err := Prepare(fc, item)
	if err != nil {
		return nil, err
	}

	b.enrich(ctx, fc, e, item)

	return e, nil
}

// Enrich runs the remote lookups Build performs on an entry that was only
// prepared, such as one stored while filtered.
func (b *Builder) Enrich(ctx context.Context, fc *feed.Context, e *Entry) {
	b.enrich(ctx, fc, e, e.Item())
}

func (b *Builder) enrich(ctx context.Context, fc *feed.Context, e *Entry, item feed.Item) {
	remote := fc.Settings.AllowRemoteFetch()

	var page *pagemeta.Metadata
	if remote && b.pages != nil {
		page = b.pages.Fetch(ctx, e.Link)
		e.PageDescription = sanitize.Text(page.Description())
		e.PageExcerpt = page.Excerpt
	}

	if b.thumbnails != nil {
		in := thumbnail.Input{Item: item, Page: page, AllowRemoteFetch: remote}
		if t := b.thumbnails.Resolve(ctx, fc, in); t != nil {
			if thumbnail.Accept(fc, t) {
				e.Thumbnail = t
			} else {
				slog.Debug("Thumbnail unchanged since last post, skipping", "feed", fc.Name, "url", t.URL)
			}
		}
	}

	if fc.Settings.IncludeVideo && b.videos != nil {
		e.Video = b.videos.Lookup(ctx, e.Summary)
	}
}

// Prepare resolves the item's permalink and checks it is postable, without
// touching the network.
func Prepare(fc *feed.Context, item feed.Item) (*Entry, error) {
	link := sanitize.URL(permalink.Resolve(fc, item))
	guid := item.GUID

	switch {
	case len(guid) > MaxGUIDChars:
		return nil, fmt.Errorf("%w: guid longer than %d characters", ErrMalformedItem, MaxGUIDChars)
	case link == "":
		return nil, fmt.Errorf("%w: no link", ErrMalformedItem)
	case len(link) > MaxLinkChars:
		return nil, fmt.Errorf("%w: link longer than %d characters", ErrMalformedItem, MaxLinkChars)
	case guid == "":
		return nil, fmt.Errorf("%w: no guid", ErrMalformedItem)
	}

	e := bare(fc, item)
	e.Link = link
	return e, nil
}

// PrepareTitle decodes HTML titles to text, falls back to DefaultTitle and
// caps the length at MaxTitleChars characters.
func PrepareTitle(item feed.Item) string {
	title := item.Title
	if item.TitleIsHTML {
		title = sanitize.Text(title)
	}
	title = cmp.Or(title, DefaultTitle)

	runes := []rune(title)
	if len(runes) > MaxTitleChars {
		title = string(runes[:MaxTitleChars])
	}
	return title
}
