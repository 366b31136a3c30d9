// Package oembed finds an embedded YouTube or Vimeo player in item HTML
// and looks up its oembed description.
package oembed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/rss-poster/app/fetch"
)

type Provider string

const (
	YouTube Provider = "youtube"
	Vimeo   Provider = "vimeo"
)

type Fetcher interface {
	Fetch(ctx context.Context, url string, followRedirects bool) (int, []byte, error)
}

type Client struct {
	fetcher   Fetcher
	endpoints map[Provider]string
}

func NewClient(fetcher Fetcher, youtubeEndpoint, vimeoEndpoint string) *Client {
	return &Client{
		fetcher: fetcher,
		endpoints: map[Provider]string{
			YouTube: youtubeEndpoint,
			Vimeo:   vimeoEndpoint,
		},
	}
}

// Lookup returns the oembed object for the first video embedded in html,
// or nil when there is none or the provider does not answer.
func (c *Client) Lookup(ctx context.Context, html string) map[string]any {
	src, provider := FindVideo(html)
	if src == "" {
		return nil
	}

	src = fetch.NormalizeURL(src)
	if provider == YouTube {
		if src = NormalizeYouTube(src); src == "" {
			return nil
		}
	}

	endpoint := c.endpoints[provider]
	if endpoint == "" {
		return nil
	}

	status, body, err := c.fetcher.Fetch(ctx, endpoint+"?"+url.Values{"url": {src}}.Encode(), true)
	if err != nil {
		slog.Debug("Failed to fetch oembed", "provider", provider, "url", src, "error", err)
		return nil
	}
	if status != http.StatusOK {
		slog.Debug("Oembed provider refused", "provider", provider, "url", src, "status", status)
		return nil
	}

	var embed map[string]any
	if err := json.Unmarshal(body, &embed); err != nil {
		slog.Debug("Failed to decode oembed", "provider", provider, "url", src, "error", err)
		return nil
	}
	return embed
}

// FindVideo returns the src of the first iframe or embed hosted by a
// known provider. Iframes are checked before embeds.
func FindVideo(html string) (string, Provider) {
	if html == "" {
		return "", ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", ""
	}

	var src string
	var provider Provider
	doc.Find("iframe").AddSelection(doc.Find("embed")).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		candidate := s.AttrOr("src", "")
		u, err := url.Parse(fetch.NormalizeURL(candidate))
		if err != nil {
			return true
		}

		host := strings.ToLower(u.Host)
		switch {
		case strings.HasSuffix(host, "youtube.com"):
			src, provider = candidate, YouTube
		case strings.HasSuffix(host, "vimeo.com"):
			src, provider = candidate, Vimeo
		default:
			return true
		}
		return false
	})

	return src, provider
}

// NormalizeYouTube maps the youtu.be, watch, embed and v URL shapes to a
// canonical watch URL. It returns "" when no video id can be found.
func NormalizeYouTube(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}

	var id string
	switch strings.ToLower(u.Hostname()) {
	case "youtu.be":
		id = strings.TrimPrefix(u.Path, "/")
	case "www.youtube.com", "youtube.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/embed/"), strings.HasPrefix(u.Path, "/v/"):
			parts := strings.Split(u.Path, "/")
			id = parts[2]
		}
	}

	if id == "" {
		return ""
	}
	return "http://www.youtube.com/watch?v=" + id
}
