package compose

import (
	"net/url"
	"slices"
	"strings"

	"golang.org/x/text/language"

	"github.com/lysyi3m/rss-poster/app/sanitize"
)

const MaxSummaryChars = 200

// Summarize strips html to text and keeps whole leading sentences while
// they fit in MaxSummaryChars. The first sentence is always kept and
// ellipsized if it alone is too long.
func Summarize(html string, splitter Splitter) string {
	text := sanitize.Text(html)
	if text == "" {
		return ""
	}

	sentences := splitter.Split(text)
	if len(sentences) == 0 {
		return ""
	}

	summary := sentences[0]
	for _, sentence := range sentences[1:] {
		next := summary + " " + sentence
		if Len(next) > MaxSummaryChars {
			break
		}
		summary = next
	}

	return Ellipsize(summary, MaxSummaryChars)
}

// Language codes accepted by the posting network.
var validLanguages = strings.Fields(`ar az bg bn bs ca cs cy da de el en en_GB es es_AR es_MX es_NI et eu
	fa fi fr fy_NL ga gl he hi hr hu id is it ja ka kk km kn ko lt lv mk ml mn nb ne nl nn no pa pl
	pt pt_BR ro ru sk sl sq sr sr_Latn sv sw ta te th tr tt uk ur vi zh_CN zh_TW`)

// Language maps a feed language tag onto the network's list: region and
// script subtags use underscores, en_US collapses to en, and unknown
// regional variants fall back to their base language. Unsupported
// languages yield "".
func Language(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}

	candidate := strings.ReplaceAll(code, "-", "_")
	tag, err := language.Parse(code)
	if err == nil {
		candidate = strings.ReplaceAll(tag.String(), "-", "_")
	}

	if candidate == "en_US" {
		return "en"
	}
	if slices.Contains(validLanguages, candidate) {
		return candidate
	}

	if err == nil {
		base, _ := tag.Base()
		if slices.Contains(validLanguages, base.String()) {
			return base.String()
		}
	}
	return ""
}

// FormatLink converts link to a URI and appends utm_source and utm_medium
// when source is set and the link carries neither already. A fragment
// stays at the end.
func FormatLink(link, source, medium string) string {
	if link == "" {
		return ""
	}
	link = sanitize.URL(link)

	if source == "" || strings.Contains(link, "utm_source") || strings.Contains(link, "utm_medium") {
		return link
	}

	params := url.Values{}
	params.Set("utm_source", source)
	if medium != "" {
		params.Set("utm_medium", medium)
	}

	base, fragment, hasFragment := strings.Cut(link, "#")
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}

	formatted := base + sep + params.Encode()
	if hasFragment {
		formatted += "#" + fragment
	}
	return formatted
}
