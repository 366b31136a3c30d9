// Package compose builds the post payload for an entry: bounded text, link
// entities and annotations.
package compose

import (
	"cmp"
	"context"
	"log/slog"
	"maps"

	"github.com/lysyi3m/rss-poster/app/entry"
	"github.com/lysyi3m/rss-poster/app/feed"
	"github.com/lysyi3m/rss-poster/app/post"
	"github.com/lysyi3m/rss-poster/app/sanitize"
	"github.com/lysyi3m/rss-poster/app/shortener"
)

const (
	MaxLinkChars     = 40
	MinSummaryRoom   = 40
	MaxSubjectChars  = 128
	DefaultUTMMedium = "Social"
)

type Shortener interface {
	Shorten(ctx context.Context, longURL string, creds shortener.Credentials) (string, error)
}

type Composer struct {
	shortener Shortener
	defaults  shortener.Credentials
	splitter  Splitter
}

// NewComposer builds a composer. defaults are used when a feed needs a
// short link but has no shortener credentials of its own.
func NewComposer(s Shortener, defaults shortener.Credentials, splitter Splitter) *Composer {
	if splitter == nil {
		splitter = UnicodeSplitter{}
	}
	return &Composer{
		shortener: s,
		defaults:  defaults,
		splitter:  splitter,
	}
}

// Compose builds the post for e. A short link obtained along the way is
// stored on e.ShortURL so composing again does not shorten again.
func (c *Composer) Compose(ctx context.Context, fc *feed.Context, e *entry.Entry) *post.Post {
	if fc.Settings.FormatMode == feed.FormatBroadcast {
		return c.broadcast(fc, e)
	}

	appendLink := fc.Settings.FormatMode == feed.FormatTitleThenLink

	summary := ""
	if fc.Settings.IncludeSummary {
		summary = Summarize(e.Summary, c.splitter)
	}

	link := FormatLink(e.Link, fc.Settings.UTMSource, cmp.Or(fc.Settings.UTMMedium, DefaultUTMMedium))
	if fc.Settings.HasShortenerCredentials() || appendLink {
		link = c.shorten(ctx, fc, e, link)
	}

	budget := cmp.Or(fc.Settings.MaxChars, feed.DefaultMaxChars)
	linkText := Ellipsize(link, MaxLinkChars)
	if appendLink {
		budget -= Len(" " + linkText)
	}

	text := e.Title
	if summary != "" && Len(text) < budget-MinSummaryRoom {
		text += "\n" + summary
	}
	text = EllipsizeWords(text, budget)

	var candidates []post.LinkEntity
	if appendLink {
		text += " " + linkText
		candidates = append(candidates, post.LinkEntity{URL: link, Text: linkText})
	} else {
		candidates = append(candidates, post.LinkEntity{URL: link, Text: e.Title})
	}

	p := &post.Post{
		Text:        text,
		Annotations: []post.Annotation{crossPost(link)},
	}

	if links := placeEntities(text, candidates); len(links) > 0 {
		p.Entities = &post.Entities{Links: links}
	} else {
		slog.Debug("Link entity not found in post text", "feed", fc.Name, "guid", e.GUID)
	}

	if fc.Settings.IncludeThumb && e.Thumbnail != nil {
		p.Annotations = append(p.Annotations, photo(e))
	}

	if fc.Settings.IncludeVideo && e.Video != nil {
		video := maps.Clone(e.Video)
		video["embeddable_url"] = e.Link
		p.Annotations = append(p.Annotations, post.Annotation{Type: post.AnnotationOembed, Value: video})
	}

	p.Annotations = append(p.Annotations, common(e)...)

	return p
}

// broadcast posts the page description under a subject line, or nothing
// but annotations when the page had no description.
func (c *Composer) broadcast(fc *feed.Context, e *entry.Entry) *post.Post {
	medium := cmp.Or(fc.Settings.UTMMedium, DefaultUTMMedium) + " Broadcast"
	link := FormatLink(e.Link, fc.Settings.UTMSource, medium)

	p := &post.Post{
		Annotations: []post.Annotation{
			{Type: post.AnnotationMetadata, Value: map[string]any{"subject": Ellipsize(e.Title, MaxSubjectChars)}},
			crossPost(link),
		},
	}
	p.Annotations = append(p.Annotations, common(e)...)

	if fc.Settings.IncludeThumb && e.Thumbnail != nil {
		p.Annotations = append(p.Annotations, photo(e))
	}

	description := cmp.Or(e.PageDescription, sanitize.Text(e.PageExcerpt))
	if description == "" {
		p.MachineOnly = true
		return p
	}

	p.Text = EllipsizeWords(description, cmp.Or(fc.Settings.MaxChars, feed.DefaultMaxChars))
	return p
}

func (c *Composer) shorten(ctx context.Context, fc *feed.Context, e *entry.Entry, link string) string {
	if e.ShortURL != "" {
		return e.ShortURL
	}
	if c.shortener == nil {
		return link
	}

	creds := shortener.Credentials{Login: fc.Settings.Shortener.Login, APIKey: fc.Settings.Shortener.APIKey}
	if !creds.Valid() {
		creds = c.defaults
	}
	if !creds.Valid() {
		return link
	}

	short, err := c.shortener.Shorten(ctx, link, creds)
	if err != nil {
		slog.Warn("Failed to shorten link", "feed", fc.Name, "url", link, "error", err)
		return link
	}

	e.ShortURL = short
	return short
}

// placeEntities finds each candidate's text in the final text, scanning
// forward from the end of the previous match. Candidates that cannot be
// found are dropped.
func placeEntities(text string, candidates []post.LinkEntity) []post.LinkEntity {
	runes := []rune(text)
	var links []post.LinkEntity

	from := 0
	for _, candidate := range candidates {
		needle := []rune(candidate.Text)
		pos := indexRunes(runes, needle, from)
		if pos < 0 {
			continue
		}
		links = append(links, post.LinkEntity{
			URL:  candidate.URL,
			Text: candidate.Text,
			Pos:  pos,
			Len:  len(needle),
		})
		from = pos + len(needle)
	}

	return links
}

func indexRunes(haystack, needle []rune, from int) int {
	if len(needle) == 0 {
		return -1
	}
	for i := from; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func crossPost(link string) post.Annotation {
	return post.Annotation{
		Type:  post.AnnotationCrossPost,
		Value: map[string]any{"canonical_url": link},
	}
}

func photo(e *entry.Entry) post.Annotation {
	t := e.Thumbnail
	return post.Annotation{
		Type: post.AnnotationOembed,
		Value: map[string]any{
			"version":          "1.0",
			"type":             "photo",
			"title":            e.Title,
			"width":            t.Width,
			"height":           t.Height,
			"url":              sanitize.URL(t.URL),
			"thumbnail_width":  t.Width,
			"thumbnail_height": t.Height,
			"thumbnail_url":    sanitize.URL(t.URL),
			"embeddable_url":   sanitize.URL(e.Link),
		},
	}
}

func common(e *entry.Entry) []post.Annotation {
	var annotations []post.Annotation

	if lang := Language(e.Language); lang != "" {
		annotations = append(annotations, post.Annotation{
			Type:  post.AnnotationLanguage,
			Value: map[string]any{"language": lang},
		})
	}

	if e.Author != "" {
		annotations = append(annotations, post.Annotation{
			Type:  post.AnnotationAuthor,
			Value: map[string]any{"author": e.Author},
		})
	}

	if len(e.Tags) > 0 {
		annotations = append(annotations, post.Annotation{
			Type:  post.AnnotationTags,
			Value: map[string]any{"tags": e.Tags},
		})
	}

	return annotations
}
