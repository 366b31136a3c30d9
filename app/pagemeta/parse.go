// Package pagemeta extracts social meta tags, inline images and a readable
// excerpt from an article page.
package pagemeta

import (
	"bytes"
	"cmp"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/lysyi3m/rss-poster/app/post"
)

// Metadata is what a page tells us about itself. Meta maps a namespace
// ("og", "twitter", ...) to its keys; values are strings, ints, or nested
// maps when a key has sub-properties (og:image:width). Images holds the
// <img> elements whose declared size already fits thumbnail bounds.
type Metadata struct {
	Meta    map[string]map[string]any `json:"meta,omitempty"`
	Images  []post.Thumbnail          `json:"images,omitempty"`
	Excerpt string                    `json:"excerpt,omitempty"`
}

// Empty is returned whenever a page could not be fetched or parsed.
func Empty() *Metadata {
	return &Metadata{Meta: map[string]map[string]any{}}
}

func Parse(html []byte, pageURL string) *Metadata {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		slog.Debug("Failed to parse page HTML", "url", pageURL, "error", err)
		return Empty()
	}

	base, _ := url.Parse(pageURL)

	meta := parseMetaTags(doc)
	resolveMetaImages(meta, base)

	return &Metadata{
		Meta:    meta,
		Images:  parseImages(doc, base),
		Excerpt: excerpt(html, base),
	}
}

// Namespace returns the keys of one meta namespace, never nil.
func (m *Metadata) Namespace(ns string) map[string]any {
	if m == nil || m.Meta[ns] == nil {
		return map[string]any{}
	}
	return m.Meta[ns]
}

// Description prefers the Open Graph description over the Twitter card one.
func (m *Metadata) Description() string {
	og, _ := m.Namespace("og")["description"].(string)
	twitter, _ := m.Namespace("twitter")["description"].(string)
	return cmp.Or(og, twitter)
}

func parseMetaTags(doc *goquery.Document) map[string]map[string]any {
	data := make(map[string]map[string]any)

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key, ok := s.Attr("property")
		if !ok {
			key = s.AttrOr("name", "")
		}
		if key == "" {
			return
		}

		raw, ok := s.Attr("content")
		if !ok {
			raw = s.AttrOr("value", "")
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return
		}

		var value any = raw
		if isDigits(raw) {
			if n, err := strconv.Atoi(raw); err == nil {
				value = n
			}
		}

		parts := strings.Split(key, ":")
		ns := parts[0]
		if data[ns] == nil {
			data[ns] = make(map[string]any)
		}
		assign(data[ns], parts[1:], value)
	})

	return data
}

// assign stores value under the path. A scalar that gains children is
// promoted to {"url": scalar} so og:image followed by og:image:width
// yields one map.
func assign(ref map[string]any, path []string, value any) {
	for i, part := range path {
		if i == len(path)-1 {
			ref[part] = value
			return
		}

		switch existing := ref[part].(type) {
		case map[string]any:
			ref = existing
		case nil:
			child := make(map[string]any)
			ref[part] = child
			ref = child
		default:
			child := map[string]any{"url": existing}
			ref[part] = child
			ref = child
		}
	}
}

// resolveMetaImages makes every namespace's image URL absolute against the
// page it was found on.
func resolveMetaImages(meta map[string]map[string]any, base *url.URL) {
	for _, keys := range meta {
		switch image := keys["image"].(type) {
		case string:
			keys["image"] = resolve(base, image)
		case map[string]any:
			for _, key := range []string{"url", "src", "secure_url"} {
				if ref, ok := image[key].(string); ok {
					image[key] = resolve(base, ref)
				}
			}
		}
	}
}

func parseImages(doc *goquery.Document, base *url.URL) []post.Thumbnail {
	var images []post.Thumbnail

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		w, errW := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(s.AttrOr("width", "")), "px"))
		h, errH := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(s.AttrOr("height", "")), "px"))
		if errW != nil || errH != nil {
			return
		}

		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" || !post.Fits(w, h) {
			return
		}

		images = append(images, post.Thumbnail{URL: resolve(base, src), Width: w, Height: h})
	})

	return images
}

func excerpt(html []byte, base *url.URL) string {
	article, err := readability.FromReader(bytes.NewReader(html), base)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.Excerpt)
}

func resolve(base *url.URL, ref string) string {
	if base == nil || strings.HasPrefix(ref, "//") {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
