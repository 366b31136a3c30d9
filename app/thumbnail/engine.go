// Package thumbnail picks one image for a post from the item's media
// descriptors, its summary HTML, and the article page, in that order.
package thumbnail

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/rss-poster/app/feed"
	"github.com/lysyi3m/rss-poster/app/pagemeta"
	"github.com/lysyi3m/rss-poster/app/post"
)

type ImageSizer interface {
	ImageSize(ctx context.Context, url string) (int, int, error)
}

// Input is everything a source may look at during one resolution pass.
// Page is nil when the article page was not fetched.
type Input struct {
	Item             feed.Item
	Page             *pagemeta.Metadata
	AllowRemoteFetch bool
}

type Source struct {
	Name string
	Find func(ctx context.Context, in Input) *post.Thumbnail
}

type Engine struct {
	sizer   ImageSizer
	sources []Source
}

func NewEngine(sizer ImageSizer) *Engine {
	e := &Engine{sizer: sizer}
	e.sources = []Source{
		{Name: feed.ImageStrategyRSS, Find: e.fromRSS},
		{Name: feed.ImageStrategyContent, Find: e.fromContent},
		{Name: feed.ImageStrategyMeta, Find: e.fromMeta},
		{Name: feed.ImageStrategyHTML, Find: fromPageImages},
	}
	return e
}

// Resolve returns the first valid thumbnail produced by a source the feed
// has not excluded, or nil.
func (e *Engine) Resolve(ctx context.Context, fc *feed.Context, in Input) *post.Thumbnail {
	for _, source := range e.allowed(fc) {
		t := source.Find(ctx, in)
		if t == nil || !t.Valid() {
			continue
		}
		slog.Debug("Thumbnail found", "feed", fc.Name, "source", source.Name, "url", t.URL,
			"width", t.Width, "height", t.Height)
		return t
	}
	return nil
}

func (e *Engine) allowed(fc *feed.Context) []Source {
	sources := make([]Source, 0, len(e.sources))
	for _, source := range e.sources {
		if fc.Settings.ImageStrategyAllowed(source.Name) {
			sources = append(sources, source)
		}
	}
	return sources
}

func (e *Engine) fromRSS(ctx context.Context, in Input) *post.Thumbnail {
	for _, thumb := range in.Item.MediaThumbnails {
		w, h := thumb.Width, thumb.Height
		if (w == 0 || h == 0) && in.AllowRemoteFetch {
			w, h = e.measure(ctx, thumb.URL)
		}
		if post.Fits(w, h) {
			return &post.Thumbnail{URL: thumb.URL, Width: w, Height: h}
		}
	}
	return nil
}

func (e *Engine) fromContent(ctx context.Context, in Input) *post.Thumbnail {
	summary := in.Item.Summary()
	if summary == "" {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(summary))
	if err != nil {
		slog.Debug("Failed to parse summary for images", "error", err)
		return nil
	}

	images := doc.Find("img")

	var found *post.Thumbnail
	images.EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src := strings.TrimSpace(img.AttrOr("src", ""))
		w, h, ok := declaredSize(img)
		if src == "" || !ok || !post.Fits(w, h) {
			return true
		}
		found = &post.Thumbnail{URL: src, Width: w, Height: h}
		return false
	})
	if found != nil {
		return found
	}

	if !in.AllowRemoteFetch || images.Length() == 0 {
		return nil
	}

	src := strings.TrimSpace(images.First().AttrOr("src", ""))
	if w, h := e.measure(ctx, src); post.Fits(w, h) {
		return &post.Thumbnail{URL: src, Width: w, Height: h}
	}
	return nil
}

// fromMeta prefers og:image over twitter:image. A value that already
// carries its dimensions is trusted; a bare URL is measured when allowed.
func (e *Engine) fromMeta(ctx context.Context, in Input) *post.Thumbnail {
	if in.Page == nil {
		return nil
	}

	value, ok := in.Page.Namespace("og")["image"]
	if !ok {
		value = in.Page.Namespace("twitter")["image"]
	}

	var src string
	var w, h int
	switch v := value.(type) {
	case string:
		src = v
	case map[string]any:
		src, _ = v["url"].(string)
		if src == "" {
			src, _ = v["src"].(string)
		}
		w, h = toInt(v["width"]), toInt(v["height"])
	}

	src = strings.TrimSpace(src)
	if src == "" {
		return nil
	}

	if w > 0 && h > 0 {
		return &post.Thumbnail{URL: src, Width: w, Height: h}
	}

	if !in.AllowRemoteFetch {
		return nil
	}
	if w, h = e.measure(ctx, src); post.Fits(w, h) {
		return &post.Thumbnail{URL: src, Width: w, Height: h}
	}
	return nil
}

func fromPageImages(_ context.Context, in Input) *post.Thumbnail {
	if in.Page == nil || len(in.Page.Images) == 0 {
		return nil
	}
	t := in.Page.Images[0]
	return &t
}

// measure downloads an image and reports its decoded size; failures count
// as an image without dimensions.
func (e *Engine) measure(ctx context.Context, url string) (int, int) {
	if url == "" || e.sizer == nil {
		return 0, 0
	}
	w, h, err := e.sizer.ImageSize(ctx, url)
	if err != nil {
		slog.Debug("Failed to measure image", "url", url, "error", err)
		return 0, 0
	}
	return w, h
}

// declaredSize reads width and height attributes, falling back to the
// inline style declarations.
func declaredSize(img *goquery.Selection) (int, int, bool) {
	w := strings.TrimSpace(img.AttrOr("width", ""))
	h := strings.TrimSpace(img.AttrOr("height", ""))

	if w == "" || h == "" {
		style := parseStyle(img.AttrOr("style", ""))
		if v, ok := style["width"]; ok {
			w = v
		}
		if v, ok := style["height"]; ok {
			h = v
		}
	}

	width, errW := strconv.Atoi(strings.TrimSuffix(w, "px"))
	height, errH := strconv.Atoi(strings.TrimSuffix(h, "px"))
	if errW != nil || errH != nil {
		return 0, 0, false
	}
	return width, height, true
}

func parseStyle(style string) map[string]string {
	decls := make(map[string]string)
	for _, decl := range strings.Split(style, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		decls[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}
	return decls
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(n), "px"))
		return i
	}
	return 0
}
