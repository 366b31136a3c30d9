package feed

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Discoverer finds the feed advertised by an HTML page, for feed URLs that
// point at a site instead of its feed.
type Discoverer struct{}

func NewDiscoverer() *Discoverer {
	return &Discoverer{}
}

// Run returns the shortest RSS or Atom <link> href on the page, resolved
// against pageURL. The main feed of a site usually has the shortest URL.
func (d *Discoverer) Run(data []byte, pageURL string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	// RSS links are ranked before Atom links, so RSS wins a tie.
	var shortest string
	for _, feedType := range []string{"application/rss+xml", "application/atom+xml"} {
		doc.Find(`link[type="` + feedType + `"]`).Each(func(_ int, s *goquery.Selection) {
			href := strings.TrimSpace(s.AttrOr("href", ""))
			if href == "" {
				return
			}
			if shortest == "" || len(href) < len(shortest) {
				shortest = href
			}
		})
	}

	if shortest == "" {
		return "", fmt.Errorf("no feed link found in HTML")
	}

	resolved := shortest
	if base, err := url.Parse(pageURL); err == nil {
		if ref, err := url.Parse(shortest); err == nil {
			resolved = base.ResolveReference(ref).String()
		}
	}

	slog.Debug("Feed discovered in HTML page", "page", pageURL, "feed", resolved)

	return resolved, nil
}

// IsHTMLPage reports whether a fetched feed body is an HTML page.
func IsHTMLPage(data []byte) bool {
	head := bytes.ToLower(bytes.TrimSpace(data[:min(len(data), 512)]))
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html")) ||
		bytes.Contains(head, []byte("<head"))
}
