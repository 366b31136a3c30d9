// Package permalink decides which link a post should credit for a feed item.
package permalink

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/rss-poster/app/feed"
)

// Resolve returns the canonical link for item, or "" when the item carries
// no usable link at all. It never fails.
//
// Outside linked-list mode the item's own link wins. In linked-list mode a
// link on another host is checked against alternates on the feed's host,
// then against permalink/bookmark anchors in the summary, then against the
// summary's last anchor.
func Resolve(fc *feed.Context, item feed.Item) string {
	candidate := item.Link
	if candidate == "" {
		for _, href := range item.Links {
			if href != "" {
				candidate = href
				break
			}
		}
	}

	if !fc.Settings.LinkedListMode || fc.URL == "" {
		return candidate
	}

	feedHost := hostname(fc.URL)
	if sameHost(candidate, feedHost) {
		return candidate
	}

	// Matching the feed's own host here returns the owner's page rather than
	// the external article. Kept as is; see DESIGN.md.
	for _, href := range item.Links {
		if href != "" && sameHost(href, feedHost) {
			return href
		}
	}

	return fromSummary(item.Summary(), feedHost, candidate)
}

func fromSummary(summary, feedHost, candidate string) string {
	if summary == "" {
		return candidate
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(summary))
	if err != nil {
		slog.Debug("Failed to parse item summary for permalink", "error", err)
		return candidate
	}

	anchors := doc.Find("a")
	if anchors.Length() == 0 {
		return candidate
	}

	for _, rel := range []string{"permalink", "bookmark"} {
		if href := anchors.Filter(`[rel~="`+rel+`"]`).First().AttrOr("href", ""); href != "" {
			return href
		}
	}

	if href := anchors.Last().AttrOr("href", ""); href != "" && sameHost(href, feedHost) {
		return href
	}

	return candidate
}

func sameHost(link, host string) bool {
	return host != "" && hostname(link) == host
}

func hostname(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
