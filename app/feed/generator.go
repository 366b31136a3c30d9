package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/lysyi3m/rss-poster/app/cfg"
	"github.com/lysyi3m/rss-poster/app/database"
	"github.com/lysyi3m/rss-poster/app/post"
	"github.com/lysyi3m/rss-poster/app/render"
)

// Generator writes the composed posts of a feed as RSS 2.0. Item
// descriptions are the posts rendered back to HTML.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Run(feed database.Feed, entries []database.Entry) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", cmp.Or(feed.Title, feed.Name), 4)
	g.writeElement(&buf, "link", feed.Link, 4)
	description := feed.Description
	if description == "" {
		description = fmt.Sprintf("Posts composed from %s", feed.FeedURL)
	}
	g.writeElement(&buf, "description", description, 4)

	var selfLink string
	if cfg.Get().BaseUrl != "" {
		selfLink = fmt.Sprintf("%s/feeds/%s", cfg.Get().BaseUrl, feed.Name)
	} else {
		selfLink = fmt.Sprintf("http://localhost:%s/feeds/%s", cfg.Get().Port, feed.Name)
	}
	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(selfLink)))

	lastBuildDate := time.Now().In(time.Local)
	if len(entries) > 0 {
		lastBuildDate = cmp.Or(entries[0].PublishedAt, entries[0].CreatedAt, lastBuildDate)
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("RSS-Poster/%s", cfg.Get().Version), 4)
	if feed.Language != "" {
		g.writeElement(&buf, "language", feed.Language, 4)
	}

	for _, entry := range entries {
		g.writeItem(&buf, entry)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, entry database.Entry) {
	buf.WriteString("    <item>\n")

	if entry.GUID != "" {
		buf.WriteString(fmt.Sprintf("      <guid isPermaLink=\"%t\">", g.isURL(entry.GUID)))
		xml.EscapeText(buf, []byte(entry.GUID))
		buf.WriteString("</guid>\n")
	}

	g.writeElement(buf, "title", entry.Title, 6)
	g.writeElement(buf, "link", cmp.Or(entry.ShortURL, entry.Link), 6)

	var p post.Post
	if entry.Post != nil {
		p = *entry.Post
	}

	description := "No description available"
	if p.Text != "" {
		description = render.Post(p)
	}
	g.writeElement(buf, "description", description, 6)

	if entry.Thumbnail != nil {
		buf.WriteString("      <content:encoded><![CDATA[")
		buf.WriteString(fmt.Sprintf(`<img src="%s" width="%d" height="%d" />`,
			html.EscapeString(entry.Thumbnail.URL), entry.Thumbnail.Width, entry.Thumbnail.Height))
		if p.Text != "" {
			buf.WriteString(description)
		}
		buf.WriteString("]]></content:encoded>\n")
	}

	g.writeElement(buf, "pubDate", entry.PublishedAt.Format(time.RFC1123Z), 6)

	author, tags := annotationValues(p)
	g.writeElement(buf, "author", author, 6)
	for _, tag := range tags {
		g.writeElement(buf, "category", tag, 6)
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func (g *Generator) isURL(s string) bool {
	return (len(s) > 7 && s[:7] == "http://") || (len(s) > 8 && s[:8] == "https://")
}

// annotationValues reads the author and tags back out of a post. Tags are
// []string on a fresh post and []any once decoded from storage.
func annotationValues(p post.Post) (string, []string) {
	var author string
	var tags []string

	for _, a := range p.Annotations {
		switch a.Type {
		case post.AnnotationAuthor:
			author, _ = a.Value["author"].(string)
		case post.AnnotationTags:
			switch v := a.Value["tags"].(type) {
			case []string:
				tags = v
			case []any:
				for _, tag := range v {
					if s, ok := tag.(string); ok && strings.TrimSpace(s) != "" {
						tags = append(tags, s)
					}
				}
			}
		}
	}

	return author, tags
}
