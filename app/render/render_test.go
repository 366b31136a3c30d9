package render

import (
	"testing"

	"github.com/lysyi3m/rss-poster/app/post"
)

func TestHTML(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		entities []post.LinkEntity
		expected string
	}{
		{
			name:     "no entities",
			text:     "Plain text",
			expected: "<span>Plain text</span>",
		},
		{
			name:     "empty",
			expected: "<span></span>",
		},
		{
			name:     "single entity",
			text:     "Hello World",
			entities: []post.LinkEntity{{URL: "http://x.com/a", Text: "Hello World", Pos: 0, Len: 11}},
			expected: `<span><a href="http://x.com/a" target="_blank" rel="nofollow">Hello World</a></span>`,
		},
		{
			name:     "gap and trailing text",
			text:     "Read this now",
			entities: []post.LinkEntity{{URL: "http://x.com/a", Text: "this", Pos: 5, Len: 4}},
			expected: `<span>Read <a href="http://x.com/a" target="_blank" rel="nofollow">this</a> now</span>`,
		},
		{
			name: "unsorted entities",
			text: "one two",
			entities: []post.LinkEntity{
				{URL: "http://x.com/2", Text: "two", Pos: 4, Len: 3},
				{URL: "http://x.com/1", Text: "one", Pos: 0, Len: 3},
			},
			expected: `<span><a href="http://x.com/1" target="_blank" rel="nofollow">one</a> <a href="http://x.com/2" target="_blank" rel="nofollow">two</a></span>`,
		},
		{
			name:     "newlines",
			text:     "Title\nSummary",
			expected: "<span>Title<br/>Summary</span>",
		},
		{
			name:     "escapes text",
			text:     "a < b & c",
			expected: "<span>a &lt; b &amp; c</span>",
		},
		{
			name:     "character offsets",
			text:     "日本語 link",
			entities: []post.LinkEntity{{URL: "http://x.com/a", Text: "link", Pos: 4, Len: 4}},
			expected: `<span>日本語 <a href="http://x.com/a" target="_blank" rel="nofollow">link</a></span>`,
		},
		{
			name: "skips overlapping and out of range",
			text: "abcdef",
			entities: []post.LinkEntity{
				{URL: "http://x.com/1", Text: "abc", Pos: 0, Len: 3},
				{URL: "http://x.com/2", Text: "bcd", Pos: 1, Len: 3},
				{URL: "http://x.com/3", Text: "fgh", Pos: 5, Len: 3},
			},
			expected: `<span><a href="http://x.com/1" target="_blank" rel="nofollow">abc</a>def</span>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTML(tt.text, tt.entities); got != tt.expected {
				t.Errorf("HTML() = %q, expected %q", got, tt.expected)
			}
		})
	}
}
