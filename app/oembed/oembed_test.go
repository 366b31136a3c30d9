package oembed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lysyi3m/rss-poster/app/fetch"
)

func TestNormalizeYouTube(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"http://youtu.be/SA2iWivDJiE", "http://www.youtube.com/watch?v=SA2iWivDJiE"},
		{"http://www.youtube.com/watch?v=_oPAwA_Udwc&feature=feedu", "http://www.youtube.com/watch?v=_oPAwA_Udwc"},
		{"http://www.youtube.com/embed/SA2iWivDJiE", "http://www.youtube.com/watch?v=SA2iWivDJiE"},
		{"https://youtube.com/v/SA2iWivDJiE?version=3&hl=en_US", "http://www.youtube.com/watch?v=SA2iWivDJiE"},
		{"http://www.youtube.com/user/someone", ""},
		{"http://vimeo.com/123", ""},
	}

	for _, tt := range tests {
		if got := NormalizeYouTube(tt.input); got != tt.expected {
			t.Errorf("NormalizeYouTube(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestFindVideo(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		src      string
		provider Provider
	}{
		{"empty", "", "", ""},
		{"no embeds", "<p>hello</p>", "", ""},
		{"youtube iframe", `<iframe src="//www.youtube.com/embed/abc"></iframe>`, "//www.youtube.com/embed/abc", YouTube},
		{"vimeo embed", `<embed src="http://player.vimeo.com/video/42">`, "http://player.vimeo.com/video/42", Vimeo},
		{
			"unknown provider skipped",
			`<iframe src="http://example.com/player"></iframe><iframe src="http://vimeo.com/7"></iframe>`,
			"http://vimeo.com/7", Vimeo,
		},
		{
			"iframes before embeds",
			`<embed src="http://vimeo.com/1"><iframe src="http://youtube.com/embed/x"></iframe>`,
			"http://youtube.com/embed/x", YouTube,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, provider := FindVideo(tt.html)
			if src != tt.src || provider != tt.provider {
				t.Errorf("FindVideo() = (%q, %q), expected (%q, %q)", src, provider, tt.src, tt.provider)
			}
		})
	}
}

func TestClientLookup(t *testing.T) {
	var requested string
	youtube := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.Query().Get("url")
		w.Write([]byte(`{"type": "video", "provider_name": "YouTube", "width": 480, "height": 270, "html": "<iframe></iframe>"}`))
	}))
	defer youtube.Close()

	vimeo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer vimeo.Close()

	client := NewClient(fetch.NewClient(time.Second, 0, "test"), youtube.URL, vimeo.URL)
	ctx := context.Background()

	embed := client.Lookup(ctx, `<p>Watch</p><iframe src="//www.youtube.com/embed/SA2iWivDJiE?rel=0"></iframe>`)
	if embed == nil {
		t.Fatal("Expected oembed object")
	}
	if embed["type"] != "video" || embed["provider_name"] != "YouTube" {
		t.Errorf("Unexpected oembed: %v", embed)
	}
	if requested != "http://www.youtube.com/watch?v=SA2iWivDJiE" {
		t.Errorf("Expected normalized YouTube URL, got %q", requested)
	}

	if embed := client.Lookup(ctx, `<iframe src="http://player.vimeo.com/video/1"></iframe>`); embed != nil {
		t.Errorf("Expected nil for provider error, got %v", embed)
	}

	if embed := client.Lookup(ctx, `<p>no video</p>`); embed != nil {
		t.Errorf("Expected nil without video, got %v", embed)
	}
}
