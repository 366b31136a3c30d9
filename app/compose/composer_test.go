package compose

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lysyi3m/rss-poster/app/entry"
	"github.com/lysyi3m/rss-poster/app/feed"
	"github.com/lysyi3m/rss-poster/app/post"
	"github.com/lysyi3m/rss-poster/app/shortener"
)

type stubShortener struct {
	short string
	err   error
	calls int
	creds []shortener.Credentials
}

func (s *stubShortener) Shorten(_ context.Context, _ string, creds shortener.Credentials) (string, error) {
	s.calls++
	s.creds = append(s.creds, creds)
	return s.short, s.err
}

func feedContext(settings feed.ConfigSettings) *feed.Context {
	return &feed.Context{Name: "test", URL: "http://x.com/feed", Settings: settings}
}

func TestComposeTitleOnly(t *testing.T) {
	c := NewComposer(nil, shortener.Credentials{}, nil)
	e := &entry.Entry{GUID: "g", Title: "Hello World", Link: "http://x.com/a"}

	p := c.Compose(context.Background(), feedContext(feed.ConfigSettings{FormatMode: feed.FormatTitleOnly}), e)

	if p.Text != "Hello World" {
		t.Errorf("Expected text to be the title, got %q", p.Text)
	}

	expected := post.LinkEntity{URL: "http://x.com/a", Text: "Hello World", Pos: 0, Len: 11}
	links := p.Links()
	if len(links) != 1 || links[0] != expected {
		t.Errorf("Expected entity %+v, got %+v", expected, links)
	}

	if len(p.Annotations) == 0 || p.Annotations[0].Type != post.AnnotationCrossPost {
		t.Fatalf("Expected crosspost annotation first, got %+v", p.Annotations)
	}
	if p.Annotations[0].Value["canonical_url"] != "http://x.com/a" {
		t.Errorf("Unexpected crosspost value: %v", p.Annotations[0].Value)
	}
}

func TestComposeTitleThenLinkBudget(t *testing.T) {
	c := NewComposer(nil, shortener.Credentials{}, nil)
	e := &entry.Entry{GUID: "g", Title: strings.Repeat("A", 300), Link: "http://x.com/a"}

	p := c.Compose(context.Background(), feedContext(feed.ConfigSettings{FormatMode: feed.FormatTitleThenLink}), e)

	suffix := " http://x.com/a"
	if !strings.HasSuffix(p.Text, suffix) {
		t.Fatalf("Expected text to end with the link, got %q", p.Text)
	}
	if Len(p.Text) != feed.DefaultMaxChars {
		t.Errorf("Expected text to fill the budget exactly, got %d characters", Len(p.Text))
	}

	body := strings.TrimSuffix(p.Text, suffix)
	if Len(body) != feed.DefaultMaxChars-Len(suffix) || !strings.HasSuffix(body, Ellipsis) {
		t.Errorf("Expected ellipsized title within the reduced budget, got %d characters", Len(body))
	}

	links := p.Links()
	if len(links) != 1 {
		t.Fatalf("Expected one entity, got %+v", links)
	}
	if links[0].Pos+links[0].Len != Len(p.Text) {
		t.Errorf("Expected entity to end the text, got pos %d len %d for %d characters", links[0].Pos, links[0].Len, Len(p.Text))
	}
	if links[0].Text != "http://x.com/a" || links[0].URL != "http://x.com/a" {
		t.Errorf("Unexpected entity %+v", links[0])
	}
}

func TestComposeLongLinkIsEllipsized(t *testing.T) {
	link := "http://example.com/" + strings.Repeat("path/", 20)
	c := NewComposer(nil, shortener.Credentials{}, nil)
	e := &entry.Entry{GUID: "g", Title: "Short", Link: link}

	p := c.Compose(context.Background(), feedContext(feed.ConfigSettings{FormatMode: feed.FormatTitleThenLink}), e)

	display := Ellipsize(link, MaxLinkChars)
	if p.Text != "Short "+display {
		t.Errorf("Unexpected text %q", p.Text)
	}
	links := p.Links()
	if len(links) != 1 || links[0].URL != link || links[0].Text != display || links[0].Len != MaxLinkChars {
		t.Errorf("Expected entity for the full link with display text, got %+v", links)
	}
}

func TestComposeBudgetAndEntityBounds(t *testing.T) {
	words := strings.Repeat("word ", 80)
	summary := "<p>" + strings.Repeat("Sentence with several words. ", 12) + "</p>"

	tests := []struct {
		name     string
		title    string
		mode     feed.FormatMode
		maxChars int
	}{
		{"title only long", words, feed.FormatTitleOnly, 0},
		{"title then link long", words, feed.FormatTitleThenLink, 0},
		{"small budget", "Tiny title", feed.FormatTitleThenLink, 60},
		{"unicode title", strings.Repeat("日本語 ", 100), feed.FormatTitleThenLink, 140},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewComposer(nil, shortener.Credentials{}, nil)
			e := &entry.Entry{GUID: "g", Title: tt.title, Link: "http://x.com/a", Summary: summary}
			settings := feed.ConfigSettings{FormatMode: tt.mode, MaxChars: tt.maxChars, IncludeSummary: true}

			p := c.Compose(context.Background(), feedContext(settings), e)

			budget := tt.maxChars
			if budget == 0 {
				budget = feed.DefaultMaxChars
			}
			if Len(p.Text) > budget {
				t.Errorf("Text exceeds budget: %d > %d", Len(p.Text), budget)
			}

			runes := []rune(p.Text)
			end := 0
			for _, link := range p.Links() {
				if link.Pos < end || link.Pos+link.Len > len(runes) {
					t.Fatalf("Entity out of order or out of range: %+v", link)
				}
				if string(runes[link.Pos:link.Pos+link.Len]) != link.Text {
					t.Errorf("Entity text %q does not match text at offset", link.Text)
				}
				end = link.Pos + link.Len
			}
		})
	}
}

func TestComposeTruncatedTitleDropsEntity(t *testing.T) {
	c := NewComposer(nil, shortener.Credentials{}, nil)
	e := &entry.Entry{GUID: "g", Title: strings.Repeat("word ", 80), Link: "http://x.com/a"}

	p := c.Compose(context.Background(), feedContext(feed.ConfigSettings{FormatMode: feed.FormatTitleOnly}), e)

	if p.Entities != nil {
		t.Errorf("Expected no entity when the title no longer appears whole, got %+v", p.Entities)
	}
	if !strings.HasSuffix(p.Text, Ellipsis) {
		t.Errorf("Expected ellipsized text, got %q", p.Text)
	}
}

func TestComposeSummary(t *testing.T) {
	c := NewComposer(nil, shortener.Credentials{}, nil)
	e := &entry.Entry{
		GUID:    "g",
		Title:   "Title",
		Link:    "http://x.com/a",
		Summary: "<p>First sentence. Second one.</p>",
	}

	withSummary := c.Compose(context.Background(), feedContext(feed.ConfigSettings{IncludeSummary: true}), e)
	if withSummary.Text != "Title\nFirst sentence. Second one." {
		t.Errorf("Unexpected text with summary: %q", withSummary.Text)
	}

	withoutSummary := c.Compose(context.Background(), feedContext(feed.ConfigSettings{}), e)
	if withoutSummary.Text != "Title" {
		t.Errorf("Unexpected text without summary: %q", withoutSummary.Text)
	}

	crowded := &entry.Entry{GUID: "g", Title: strings.Repeat("t", 220), Link: "http://x.com/a", Summary: "Summary."}
	p := c.Compose(context.Background(), feedContext(feed.ConfigSettings{IncludeSummary: true}), crowded)
	if strings.Contains(p.Text, "Summary.") {
		t.Error("Expected summary to be skipped without headroom")
	}
}

func TestComposeShortensOnce(t *testing.T) {
	s := &stubShortener{short: "http://bit.ly/abc"}
	defaults := shortener.Credentials{Login: "default", APIKey: "key"}
	c := NewComposer(s, defaults, nil)
	e := &entry.Entry{GUID: "g", Title: "Title", Link: "http://x.com/a"}
	fc := feedContext(feed.ConfigSettings{FormatMode: feed.FormatTitleThenLink})

	first := c.Compose(context.Background(), fc, e)
	second := c.Compose(context.Background(), fc, e)

	if s.calls != 1 {
		t.Errorf("Expected one shortener call, got %d", s.calls)
	}
	if s.creds[0] != defaults {
		t.Errorf("Expected default credentials, got %+v", s.creds[0])
	}
	if e.ShortURL != "http://bit.ly/abc" {
		t.Errorf("Expected short link cached on entry, got %q", e.ShortURL)
	}
	if first.Text != "Title http://bit.ly/abc" || first.Text != second.Text {
		t.Errorf("Expected stable text, got %q and %q", first.Text, second.Text)
	}
	if first.Annotations[0].Value["canonical_url"] != "http://bit.ly/abc" {
		t.Errorf("Expected crosspost to use the short link, got %v", first.Annotations[0].Value)
	}
}

func TestComposeShortenerCredentials(t *testing.T) {
	own := feed.ShortenerSettings{Login: "feed", APIKey: "secret"}

	tests := []struct {
		name          string
		settings      feed.ConfigSettings
		shortenerErr  error
		expectedCalls int
		expectedLink  string
	}{
		{"title only without credentials", feed.ConfigSettings{}, nil, 0, "http://x.com/a"},
		{"title only with feed credentials", feed.ConfigSettings{Shortener: own}, nil, 1, "http://bit.ly/abc"},
		{"failure falls back to long link", feed.ConfigSettings{Shortener: own}, errors.New("boom"), 1, "http://x.com/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &stubShortener{short: "http://bit.ly/abc", err: tt.shortenerErr}
			c := NewComposer(s, shortener.Credentials{}, nil)
			e := &entry.Entry{GUID: "g", Title: "Title", Link: "http://x.com/a"}

			p := c.Compose(context.Background(), feedContext(tt.settings), e)

			if s.calls != tt.expectedCalls {
				t.Errorf("Expected %d shortener calls, got %d", tt.expectedCalls, s.calls)
			}
			if tt.expectedCalls > 0 && s.creds[0].Login != "feed" {
				t.Errorf("Expected feed credentials, got %+v", s.creds[0])
			}
			if links := p.Links(); len(links) != 1 || links[0].URL != tt.expectedLink {
				t.Errorf("Expected entity url %q, got %+v", tt.expectedLink, links)
			}
		})
	}
}

func TestComposeAnnotations(t *testing.T) {
	c := NewComposer(nil, shortener.Credentials{}, nil)
	e := &entry.Entry{
		GUID:      "g",
		Title:     "Title",
		Link:      "http://x.com/a",
		Language:  "en-US",
		Author:    "Jane",
		Tags:      []string{"go"},
		Thumbnail: &post.Thumbnail{URL: "http://x.com/t.png", Width: 300, Height: 200},
		Video:     map[string]any{"type": "video", "html": "<iframe></iframe>"},
	}
	settings := feed.ConfigSettings{IncludeThumb: true, IncludeVideo: true, UTMSource: "poster"}

	p := c.Compose(context.Background(), feedContext(settings), e)

	types := make([]string, len(p.Annotations))
	for i, a := range p.Annotations {
		types[i] = a.Type
	}
	expected := []string{
		post.AnnotationCrossPost,
		post.AnnotationOembed,
		post.AnnotationOembed,
		post.AnnotationLanguage,
		post.AnnotationAuthor,
		post.AnnotationTags,
	}
	if strings.Join(types, ",") != strings.Join(expected, ",") {
		t.Fatalf("Expected annotations %v, got %v", expected, types)
	}

	crosspost := p.Annotations[0].Value["canonical_url"]
	if crosspost != "http://x.com/a?utm_medium=Social&utm_source=poster" {
		t.Errorf("Unexpected crosspost link %v", crosspost)
	}

	photo := p.Annotations[1].Value
	if photo["type"] != "photo" || photo["width"] != 300 || photo["thumbnail_url"] != "http://x.com/t.png" {
		t.Errorf("Unexpected photo annotation %v", photo)
	}

	video := p.Annotations[2].Value
	if video["embeddable_url"] != "http://x.com/a" {
		t.Errorf("Expected embeddable url on video, got %v", video)
	}
	if _, ok := e.Video["embeddable_url"]; ok {
		t.Error("Expected entry video to be left untouched")
	}

	if p.Annotations[3].Value["language"] != "en" {
		t.Errorf("Expected normalized language, got %v", p.Annotations[3].Value)
	}
}

func TestComposeSkipsDisabledMedia(t *testing.T) {
	c := NewComposer(nil, shortener.Credentials{}, nil)
	e := &entry.Entry{
		GUID:      "g",
		Title:     "Title",
		Link:      "http://x.com/a",
		Thumbnail: &post.Thumbnail{URL: "http://x.com/t.png", Width: 300, Height: 200},
		Video:     map[string]any{"type": "video"},
	}

	p := c.Compose(context.Background(), feedContext(feed.ConfigSettings{}), e)

	if len(p.Annotations) != 1 {
		t.Errorf("Expected only the crosspost annotation, got %+v", p.Annotations)
	}
}

func TestComposeBroadcast(t *testing.T) {
	c := NewComposer(nil, shortener.Credentials{}, nil)
	settings := feed.ConfigSettings{FormatMode: feed.FormatBroadcast, UTMSource: "poster"}

	t.Run("with description", func(t *testing.T) {
		e := &entry.Entry{GUID: "g", Title: "Title", Link: "http://x.com/a", PageDescription: "Page description."}
		p := c.Compose(context.Background(), feedContext(settings), e)

		if p.Text != "Page description." || p.MachineOnly {
			t.Errorf("Unexpected broadcast post %+v", p)
		}
		if p.Annotations[0].Type != post.AnnotationMetadata || p.Annotations[0].Value["subject"] != "Title" {
			t.Errorf("Expected subject annotation first, got %+v", p.Annotations[0])
		}
		if p.Annotations[1].Value["canonical_url"] != "http://x.com/a?utm_medium=Social+Broadcast&utm_source=poster" {
			t.Errorf("Unexpected broadcast link %v", p.Annotations[1].Value)
		}
	})

	t.Run("falls back to excerpt", func(t *testing.T) {
		e := &entry.Entry{GUID: "g", Title: "Title", Link: "http://x.com/a", PageExcerpt: "Readable excerpt"}
		p := c.Compose(context.Background(), feedContext(settings), e)

		if p.Text != "Readable excerpt" {
			t.Errorf("Expected excerpt text, got %q", p.Text)
		}
	})

	t.Run("machine only", func(t *testing.T) {
		e := &entry.Entry{GUID: "g", Title: strings.Repeat("T", 200), Link: "http://x.com/a"}
		p := c.Compose(context.Background(), feedContext(settings), e)

		if !p.MachineOnly || p.Text != "" {
			t.Errorf("Expected machine-only post, got %+v", p)
		}
		if Len(p.Annotations[0].Value["subject"].(string)) != MaxSubjectChars {
			t.Error("Expected subject ellipsized")
		}
	})
}
