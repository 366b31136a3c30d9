package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/rss-poster/app/cfg"
	"github.com/lysyi3m/rss-poster/app/database"
	"github.com/lysyi3m/rss-poster/app/feed"
	"github.com/lysyi3m/rss-poster/app/post"
	"github.com/lysyi3m/rss-poster/app/tasks"
)

const testAPIKey = "secret"

type mockFeedRepository struct {
	feeds map[string]*database.Feed
}

func (m *mockFeedRepository) GetFeed(name string) (*database.Feed, error) {
	return m.feeds[name], nil
}

func (m *mockFeedRepository) GetFeedCount() (int, error) { return len(m.feeds), nil }

func (m *mockFeedRepository) UpsertFeed(string, string) error { return nil }

func (m *mockFeedRepository) UpdateFeedMetadata(string, string, string, string, string, time.Time) error {
	return nil
}

func (m *mockFeedRepository) UpdateLastImageHash(string, string) error { return nil }

type mockEntryRepository struct {
	entries []database.Entry
}

func (m *mockEntryRepository) GetVisibleEntries(name string, limit int) ([]database.Entry, error) {
	var out []database.Entry
	for _, e := range m.entries {
		if e.FeedName == name && !e.IsFiltered && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockEntryRepository) GetAllEntries(name string) ([]database.Entry, error) {
	var out []database.Entry
	for _, e := range m.entries {
		if e.FeedName == name {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockEntryRepository) GetEntry(id string) (*database.Entry, error) {
	for _, e := range m.entries {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, nil
}

func (m *mockEntryRepository) GetEntryCount(name string) (int, error) {
	all, _ := m.GetAllEntries(name)
	return len(all), nil
}

func (m *mockEntryRepository) GetEntryStats(name string) (int, int, int, error) {
	all, _ := m.GetAllEntries(name)
	visible, _ := m.GetVisibleEntries(name, len(all))
	return len(all), len(visible), len(all) - len(visible), nil
}

func (m *mockEntryRepository) EntryExists(string, string) (bool, error) { return false, nil }

func (m *mockEntryRepository) InsertEntry(string, database.Entry) (string, error) { return "", nil }

func (m *mockEntryRepository) UpdateEntryPost(string, string, *post.Post, bool, string) error {
	return nil
}

type recordingScheduler struct {
	enqueued []tasks.TaskInterface
}

func (s *recordingScheduler) Start() {}
func (s *recordingScheduler) Stop()  {}
func (s *recordingScheduler) EnqueueTask(task tasks.TaskInterface) error {
	s.enqueued = append(s.enqueued, task)
	return nil
}

func setupServer(t *testing.T) (*gin.Engine, *recordingScheduler) {
	t.Helper()

	cfg.Set(&cfg.Cfg{Port: "8080", Version: "test"})
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	config := "url: http://blog.com/feed\nsettings:\n  enabled: true\n  max_items: 10\n"
	if err := os.WriteFile(filepath.Join(dir, "blog.yml"), []byte(config), 0o644); err != nil {
		t.Fatal(err)
	}
	configCache := feed.NewConfigCache(dir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	feedRepo := &mockFeedRepository{feeds: map[string]*database.Feed{
		"blog": {ID: "feed-1", Name: "blog", Title: "Blog", Link: "http://blog.com", FeedURL: "http://blog.com/feed"},
	}}

	published := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	entryRepo := &mockEntryRepository{entries: []database.Entry{
		{
			ID: "e1", FeedName: "blog", GUID: "a", Title: "Hello World", Link: "http://blog.com/a",
			PublishedAt: published,
			Post: &post.Post{
				Text:     "Hello World",
				Entities: &post.Entities{Links: []post.LinkEntity{{URL: "http://blog.com/a", Text: "Hello World", Pos: 0, Len: 11}}},
			},
		},
		{
			ID: "e2", FeedName: "blog", GUID: "b", Title: "Spam", Link: "http://blog.com/b",
			PublishedAt: published, IsFiltered: true, FilterReason: "Excluded by title filter: contains 'spam'",
		},
	}}

	scheduler := &recordingScheduler{}
	handler := NewHandler(configCache, feedRepo, entryRepo, &tasks.Pipeline{}, scheduler)

	return NewServer(handler, testAPIKey), scheduler
}

func serve(r *gin.Engine, method, path string, authorized bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if authorized {
		req.Header.Set("X-API-Key", testAPIKey)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetFeed(t *testing.T) {
	r, _ := setupServer(t)

	w := serve(r, http.MethodGet, "/feeds/blog", false)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/xml") {
		t.Errorf("Expected XML content type, got %q", ct)
	}
	if w.Header().Get("X-Feed-Items") != "1" {
		t.Errorf("Expected only the visible entry, got %s", w.Header().Get("X-Feed-Items"))
	}
	if !strings.Contains(w.Body.String(), "&lt;a href=&#34;http://blog.com/a&#34;") {
		t.Errorf("Expected rendered post HTML in description, got %s", w.Body.String())
	}

	if w := serve(r, http.MethodGet, "/feeds/missing", false); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown feed, got %d", w.Code)
	}
}

func TestGetHealth(t *testing.T) {
	r, _ := setupServer(t)

	w := serve(r, http.MethodGet, "/health", false)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["feeds"] != float64(1) || body["loaded_configurations"] != float64(1) {
		t.Errorf("Unexpected health body %v", body)
	}
}

func TestAuthMiddleware(t *testing.T) {
	r, _ := setupServer(t)

	tests := []struct {
		name     string
		header   string
		value    string
		expected int
	}{
		{"missing key", "", "", http.StatusUnauthorized},
		{"wrong key", "X-API-Key", "nope", http.StatusUnauthorized},
		{"api key header", "X-API-Key", testAPIKey, http.StatusOK},
		{"bearer token", "Authorization", "Bearer " + testAPIKey, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/feeds", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, w.Code)
			}
		})
	}
}

func TestAPIListPosts(t *testing.T) {
	r, _ := setupServer(t)

	tests := []struct {
		name     string
		path     string
		code     int
		expected int
	}{
		{"visible only", "/api/feeds/blog/posts", http.StatusOK, 1},
		{"all entries", "/api/feeds/blog/posts?all=true", http.StatusOK, 2},
		{"limited", "/api/feeds/blog/posts?all=true&limit=1", http.StatusOK, 1},
		{"bad limit", "/api/feeds/blog/posts?limit=zero", http.StatusBadRequest, 0},
		{"unknown feed", "/api/feeds/missing/posts", http.StatusNotFound, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, http.MethodGet, tt.path, true)
			if w.Code != tt.code {
				t.Fatalf("Expected %d, got %d", tt.code, w.Code)
			}
			if tt.code != http.StatusOK {
				return
			}

			var body struct {
				Posts []postView `json:"posts"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if len(body.Posts) != tt.expected {
				t.Errorf("Expected %d posts, got %d", tt.expected, len(body.Posts))
			}
			if body.Posts[0].HTML == "" {
				t.Error("Expected first post to carry rendered HTML")
			}
		})
	}
}

func TestAPIGetEntryHTML(t *testing.T) {
	r, _ := setupServer(t)

	w := serve(r, http.MethodGet, "/api/entries/e1/html", true)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	expected := `<span><a href="http://blog.com/a" target="_blank" rel="nofollow">Hello World</a></span>`
	if w.Body.String() != expected {
		t.Errorf("Expected %q, got %q", expected, w.Body.String())
	}

	if w := serve(r, http.MethodGet, "/api/entries/e2/html", true); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for filtered entry, got %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/api/entries/nope/html", true); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown entry, got %d", w.Code)
	}
}

func TestAPIGetFeedDetails(t *testing.T) {
	r, _ := setupServer(t)

	w := serve(r, http.MethodGet, "/api/feeds/blog/details", true)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	entries, _ := body["entries"].(map[string]any)
	if entries["total"] != float64(2) || entries["filtered"] != float64(1) {
		t.Errorf("Unexpected entry stats %v", body["entries"])
	}
}

func TestAPIReloadFeed(t *testing.T) {
	r, scheduler := setupServer(t)

	w := serve(r, http.MethodPost, "/api/feeds/blog/reload", true)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if len(scheduler.enqueued) != 2 {
		t.Fatalf("Expected sync and recompose tasks, got %d", len(scheduler.enqueued))
	}
	if scheduler.enqueued[0].GetType() != tasks.TaskTypeSyncFeedConfig || scheduler.enqueued[1].GetType() != tasks.TaskTypeRecomposeFeed {
		t.Errorf("Unexpected task order %s, %s", scheduler.enqueued[0].GetType(), scheduler.enqueued[1].GetType())
	}

	if w := serve(r, http.MethodPost, "/api/feeds/missing/reload", true); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown feed, got %d", w.Code)
	}
}

func TestNewPostViewSummary(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		expected string
	}{
		{
			name:     "markup reduced to allowed tags",
			data:     `{"summary":"<p onclick=\"x()\">Buy <script>steal()</script><em>now</em></p>"}`,
			expected: "<p>Buy now</p>",
		},
		{
			name:     "unsafe href dropped",
			data:     `{"summary":"<a href=\"javascript:alert(1)\">click</a>"}`,
			expected: `<a rel="nofollow">click</a>`,
		},
		{
			name:     "http href kept",
			data:     `{"summary":"<a href=\"http://blog.com/a\">read</a>"}`,
			expected: `<a href="http://blog.com/a" rel="nofollow">read</a>`,
		},
		{"no data", "", ""},
		{"unreadable data", "{", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := newPostView(database.Entry{ID: "e1", Data: []byte(tt.data)})
			if view.Summary != tt.expected {
				t.Errorf("Expected summary %q, got %q", tt.expected, view.Summary)
			}
		})
	}
}
