// Package render turns composed post text and its link entities back into
// HTML.
package render

import (
	"bytes"
	"cmp"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/lysyi3m/rss-poster/app/post"
)

// HTML wraps text in a span, placing an anchor over each entity's
// character range and turning newlines into <br>. Entities that fall
// outside the text or overlap an earlier one are skipped.
func HTML(text string, entities []post.LinkEntity) string {
	runes := []rune(text)
	root := element(atom.Span)

	sorted := slices.Clone(entities)
	slices.SortStableFunc(sorted, func(a, b post.LinkEntity) int {
		return cmp.Compare(a.Pos, b.Pos)
	})

	cursor := 0
	for _, entity := range sorted {
		end := entity.Pos + entity.Len
		if entity.Pos < cursor || entity.Len <= 0 || end > len(runes) {
			slog.Debug("Skipping link entity outside text", "url", entity.URL, "pos", entity.Pos, "len", entity.Len)
			continue
		}

		appendText(root, string(runes[cursor:entity.Pos]))

		a := element(atom.A)
		a.Attr = []html.Attribute{
			{Key: "href", Val: entity.URL},
			{Key: "target", Val: "_blank"},
			{Key: "rel", Val: "nofollow"},
		}
		appendText(a, string(runes[entity.Pos:end]))
		root.AppendChild(a)

		cursor = end
	}
	appendText(root, string(runes[cursor:]))

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		slog.Warn("Failed to render post html", "error", err)
		return ""
	}
	return buf.String()
}

// Post renders p's text and link entities.
func Post(p post.Post) string {
	return HTML(p.Text, p.Links())
}

func element(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
}

func appendText(parent *html.Node, text string) {
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			parent.AppendChild(element(atom.Br))
		}
		if line != "" {
			parent.AppendChild(&html.Node{Type: html.TextNode, Data: line})
		}
	}
}
