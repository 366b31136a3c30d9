package feed

import (
	"bytes"
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"
	ext "github.com/mmcdole/gofeed/extensions"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	gofeedParser := gofeed.NewParser()
	gofeedParser.AtomTranslator = &atomTranslator{}

	return &Parser{
		gofeedParser: gofeedParser,
	}
}

// atomTranslator keeps every entry link in document order. The default
// translator drops related and via links, which linked-list feeds use to
// point back at the owner's page.
type atomTranslator struct {
	gofeed.DefaultAtomTranslator
}

func (t *atomTranslator) Translate(feed interface{}) (*gofeed.Feed, error) {
	result, err := t.DefaultAtomTranslator.Translate(feed)
	if err != nil {
		return nil, err
	}

	atomFeed, ok := feed.(*atom.Feed)
	if !ok || len(atomFeed.Entries) != len(result.Items) {
		return result, nil
	}

	for i, entry := range atomFeed.Entries {
		var links []string
		for _, link := range entry.Links {
			// Enclosures are media, never article pages.
			if link.Href == "" || link.Rel == "enclosure" {
				continue
			}
			links = append(links, link.Href)
		}
		result.Items[i].Links = links
	}

	return result, nil
}

func (p *Parser) Run(data []byte) (*Metadata, []Item, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		Title:       feed.Title,
		Link:        feed.Link,
		Description: feed.Description,
		Language:    feed.Language,
	}

	if feed.Image != nil {
		metadata.ImageURL = feed.Image.URL
	}

	if feed.PublishedParsed != nil {
		metadata.FeedPublishedAt = feed.PublishedParsed
	}
	items := make([]Item, 0, len(feed.Items))
	for _, item := range feed.Items {
		normalized := p.normalizeItem(item)
		normalized.ContentHash = p.generateContentHash(normalized)
		items = append(items, normalized)
	}

	return metadata, items, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Item {
	normalized := Item{
		GUID:        cmp.Or(item.GUID, item.Link),
		Title:       item.Title,
		TitleIsHTML: looksLikeHTML(item.Title),
		Link:        item.Link,
		Description: item.Description,
		Content:     item.Content,
	}

	for _, link := range item.Links {
		if link != "" && link != item.Link {
			normalized.Links = append(normalized.Links, link)
		}
	}

	if item.PublishedParsed != nil {
		normalized.PublishedAt = *item.PublishedParsed
	}

	if item.UpdatedParsed != nil {
		normalized.UpdatedAt = item.UpdatedParsed
	}

	normalized.Authors = p.extractAuthors(item)

	if item.Categories != nil {
		normalized.Categories = item.Categories
	}

	normalized.MediaThumbnails = p.extractMediaThumbnails(item.Extensions)

	return normalized
}

// extractMediaThumbnails collects media:thumbnail descriptors at the top
// level of the item and nested inside media:group and media:content.
func (p *Parser) extractMediaThumbnails(extensions ext.Extensions) []MediaThumbnail {
	media, ok := extensions["media"]
	if !ok {
		return nil
	}

	var thumbs []MediaThumbnail
	thumbs = appendThumbnails(thumbs, media["thumbnail"])
	for _, parent := range []string{"group", "content"} {
		for _, e := range media[parent] {
			thumbs = appendThumbnails(thumbs, e.Children["thumbnail"])
			for _, nested := range e.Children["content"] {
				thumbs = appendThumbnails(thumbs, nested.Children["thumbnail"])
			}
		}
	}
	return thumbs
}

func appendThumbnails(thumbs []MediaThumbnail, exts []ext.Extension) []MediaThumbnail {
	for _, e := range exts {
		url := strings.TrimSpace(e.Attrs["url"])
		if url == "" {
			continue
		}
		// Unparseable dimensions count as absent.
		width, _ := strconv.Atoi(strings.TrimSpace(e.Attrs["width"]))
		height, _ := strconv.Atoi(strings.TrimSpace(e.Attrs["height"]))
		thumbs = append(thumbs, MediaThumbnail{URL: url, Width: width, Height: height})
	}
	return thumbs
}

func (p *Parser) generateContentHash(item Item) string {
	content := fmt.Sprintf("%s|%s",
		item.Title,
		item.Link)

	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

func (p *Parser) extractAuthors(item *gofeed.Item) []string {
	var authors []string

	if len(item.Authors) > 0 {
		for _, author := range item.Authors {
			if author != nil {
				authorStr := p.formatAuthor(author.Name, author.Email)
				if authorStr != "" {
					authors = append(authors, authorStr)
				}
			}
		}
	} else if item.Author != nil {
		authorStr := p.formatAuthor(item.Author.Name, item.Author.Email)
		if authorStr != "" {
			authors = append(authors, authorStr)
		}
	}

	return authors
}

func (p *Parser) formatAuthor(name, email string) string {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name != "" && email != "" {
		return fmt.Sprintf("%s (%s)", email, name)
	} else if name != "" {
		return name
	} else if email != "" {
		return email
	}

	return ""
}

func looksLikeHTML(s string) bool {
	return strings.ContainsAny(s, "<>") || strings.Contains(s, "&")
}
