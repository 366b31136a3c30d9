package compose

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/clipperhouse/uax29/v2/sentences"
)

const Ellipsis = "…"

// Len counts characters, not bytes.
func Len(s string) int {
	return utf8.RuneCountInString(s)
}

// Ellipsize cuts text to at most max characters, the last of which is an
// ellipsis when anything was removed.
func Ellipsize(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	if max <= 0 {
		return ""
	}
	return string(runes[:max-1]) + Ellipsis
}

// EllipsizeWords is Ellipsize that backs off to the last whitespace so no
// word is split. Text without whitespace in range is cut hard.
func EllipsizeWords(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	if max <= 0 {
		return ""
	}

	cut := runes[:max-1]
	if !unicode.IsSpace(runes[max-1]) {
		for i := len(cut) - 1; i > 0; i-- {
			if unicode.IsSpace(cut[i]) {
				cut = cut[:i]
				break
			}
		}
	}

	return strings.TrimRightFunc(string(cut), unicode.IsSpace) + Ellipsis
}

type Splitter interface {
	Split(text string) []string
}

// UnicodeSplitter segments text on UAX #29 sentence boundaries.
type UnicodeSplitter struct{}

func (UnicodeSplitter) Split(text string) []string {
	var out []string
	iter := sentences.FromString(text)
	for iter.Next() {
		if s := strings.TrimSpace(iter.Value()); s != "" {
			out = append(out, s)
		}
	}
	return out
}
