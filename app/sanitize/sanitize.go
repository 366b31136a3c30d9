// Package sanitize turns untrusted feed and page markup into plain text,
// allow-listed HTML, or ASCII-safe URLs.
package sanitize

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"
)

// Text returns the concatenated text nodes of s in NFC form, with entities
// decoded and surrounding whitespace trimmed.
func Text(s string) string {
	if s == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return norm.NFC.String(strings.TrimSpace(s))
	}
	return norm.NFC.String(strings.TrimSpace(doc.Text()))
}

var allowedTags = map[atom.Atom]bool{
	atom.A:      true,
	atom.P:      true,
	atom.Ul:     true,
	atom.Ol:     true,
	atom.Li:     true,
	atom.Span:   true,
	atom.B:      true,
	atom.Strong: true,
	atom.Br:     true,
}

// Elements dropped together with everything inside them.
var droppedTags = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Iframe:   true,
	atom.Object:   true,
	atom.Embed:    true,
	atom.Noscript: true,
	atom.Head:     true,
}

// HTML keeps only the allow-listed tags of s. Other tags are unwrapped,
// attributes are dropped except http(s) and mailto hrefs on anchors, and
// anchors get rel="nofollow".
func HTML(s string) string {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(s), body)
	if err != nil {
		return html.EscapeString(Text(s))
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		writeClean(&buf, n)
	}
	return buf.String()
}

func writeClean(buf *bytes.Buffer, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		buf.WriteString(html.EscapeString(n.Data))
		return
	case html.ElementNode:
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeClean(buf, c)
		}
		return
	}

	if droppedTags[n.DataAtom] {
		return
	}

	allowed := allowedTags[n.DataAtom]
	if allowed {
		buf.WriteByte('<')
		buf.WriteString(n.Data)
		if n.DataAtom == atom.A {
			if href := safeHref(n); href != "" {
				buf.WriteString(` href="`)
				buf.WriteString(html.EscapeString(href))
				buf.WriteByte('"')
			}
			buf.WriteString(` rel="nofollow"`)
		}
		buf.WriteByte('>')
		if n.DataAtom == atom.Br {
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeClean(buf, c)
	}

	if allowed {
		buf.WriteString("</")
		buf.WriteString(n.Data)
		buf.WriteByte('>')
	}
}

func safeHref(n *html.Node) string {
	for _, attr := range n.Attr {
		if attr.Key != "href" {
			continue
		}
		href := strings.TrimSpace(attr.Val)
		lower := strings.ToLower(href)
		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") ||
			strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "//") {
			return href
		}
	}
	return ""
}
