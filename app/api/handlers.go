package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/rss-poster/app/database"
	"github.com/lysyi3m/rss-poster/app/entry"
	"github.com/lysyi3m/rss-poster/app/feed"
	"github.com/lysyi3m/rss-poster/app/render"
	"github.com/lysyi3m/rss-poster/app/sanitize"
	"github.com/lysyi3m/rss-poster/app/tasks"
)

const maxPostsLimit = 500

func NewHandler(configCache *feed.ConfigCache, feedRepo database.FeedRepository,
	entryRepo database.EntryRepository, pipeline *tasks.Pipeline,
	scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		feedRepo:    feedRepo,
		entryRepo:   entryRepo,
		generator:   feed.NewGenerator(),
		configCache: configCache,
		pipeline:    pipeline,
		scheduler:   scheduler,
	}
}

func (h *Handler) GetFeed(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	feedConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		slog.Error("Feed configuration not found", "feed", name, "error", err)
		c.Status(http.StatusNotFound)
		return
	}

	feed, err := h.feedRepo.GetFeed(name)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if feed == nil {
		slog.Error("Feed not found in database", "feed", name)
		c.Status(http.StatusNotFound)
		return
	}

	entries, err := h.entryRepo.GetVisibleEntries(name, feedConfig.Settings.MaxItems)
	if err != nil {
		slog.Error("Database error", "operation", "get_entries", "feed", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.generator.Run(*feed, entries)
	if err != nil {
		slog.Error("RSS generation error", "feed", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(entries)))
	c.Header("X-Feed-Name", name)
	c.Header("X-Last-Updated", feed.UpdatedAt.Format(time.RFC3339))

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]any{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		health["feeds"] = feedCount
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListFeeds(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	feeds := make([]map[string]any, 0, len(configs))

	for _, feedConfig := range configs {
		feedInfo := map[string]any{
			"name":             feedConfig.Name,
			"url":              feedConfig.URL,
			"title":            "",
			"enabled":          feedConfig.Settings.Enabled,
			"format_mode":      feedConfig.Settings.FormatMode,
			"max_items":        feedConfig.Settings.MaxItems,
			"refresh_interval": (time.Duration(feedConfig.Settings.RefreshInterval) * time.Second).String(),
			"filters":          len(feedConfig.Filters),
		}

		if feed, err := h.feedRepo.GetFeed(feedConfig.Name); err == nil && feed != nil {
			feedInfo["title"] = feed.Title
			feedInfo["last_fetched_at"] = feed.LastFetchedAt
			feedInfo["next_fetch_at"] = feed.NextFetchAt
			feedInfo["updated_at"] = feed.UpdatedAt
		}

		if entryCount, err := h.entryRepo.GetEntryCount(feedConfig.Name); err == nil {
			feedInfo["entry_count"] = entryCount
		}

		feeds = append(feeds, feedInfo)
	}

	c.JSON(http.StatusOK, map[string]any{
		"feeds": feeds,
		"total": len(feeds),
	})
}

func (h *Handler) APIGetFeedDetails(c *gin.Context) {
	name := c.Param("name")

	feedConfig, feed, ok := h.lookupFeed(c, name)
	if !ok {
		return
	}

	details := map[string]any{
		"name":             name,
		"url":              feedConfig.URL,
		"title":            feed.Title,
		"enabled":          feedConfig.Settings.Enabled,
		"max_items":        feedConfig.Settings.MaxItems,
		"refresh_interval": (time.Duration(feedConfig.Settings.RefreshInterval) * time.Second).String(),
		"timeout":          (time.Duration(feedConfig.Settings.Timeout) * time.Second).String(),
		"settings": map[string]any{
			"format_mode":              feedConfig.Settings.FormatMode,
			"linked_list_mode":         feedConfig.Settings.LinkedListMode,
			"include_summary":          feedConfig.Settings.IncludeSummary,
			"include_thumb":            feedConfig.Settings.IncludeThumb,
			"include_video":            feedConfig.Settings.IncludeVideo,
			"remote_fetch":             feedConfig.Settings.AllowRemoteFetch(),
			"max_chars":                feedConfig.Settings.MaxChars,
			"image_strategy_blacklist": feedConfig.Settings.ImageStrategyBlacklist,
			"shortener":                feedConfig.Settings.HasShortenerCredentials(),
		},
		"filters": feedConfig.Filters,
	}

	details["database"] = map[string]any{
		"id":              feed.ID,
		"name":            feed.Name,
		"last_image_hash": feed.LastImageHash,
		"last_fetched_at": feed.LastFetchedAt,
		"next_fetch_at":   feed.NextFetchAt,
		"created_at":      feed.CreatedAt,
		"updated_at":      feed.UpdatedAt,
	}

	if total, visible, filtered, err := h.entryRepo.GetEntryStats(name); err == nil {
		details["entries"] = map[string]any{
			"total":    total,
			"visible":  visible,
			"filtered": filtered,
		}
	}

	c.JSON(http.StatusOK, details)
}

// APIListPosts returns the feed's composed posts, newest first. Filtered
// entries are included with ?all=true.
func (h *Handler) APIListPosts(c *gin.Context) {
	name := c.Param("name")

	feedConfig, _, ok := h.lookupFeed(c, name)
	if !ok {
		return
	}

	limit := feedConfig.Settings.MaxItems
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = min(parsed, maxPostsLimit)
	}

	var entries []database.Entry
	var err error
	if c.Query("all") == "true" {
		entries, err = h.entryRepo.GetAllEntries(name)
		if len(entries) > limit {
			entries = entries[:limit]
		}
	} else {
		entries, err = h.entryRepo.GetVisibleEntries(name, limit)
	}
	if err != nil {
		slog.Error("Database error", "operation", "get_entries", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	posts := make([]postView, 0, len(entries))
	for _, e := range entries {
		posts = append(posts, newPostView(e))
	}

	c.JSON(http.StatusOK, gin.H{
		"feed":  name,
		"posts": posts,
		"total": len(posts),
	})
}

// APIGetEntryHTML serves the entry's post text as HTML with its links
// restored.
func (h *Handler) APIGetEntryHTML(c *gin.Context) {
	id := c.Param("id")

	e, err := h.entryRepo.GetEntry(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_entry", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if e == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
		return
	}

	if e.Post == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Entry has no post", "filter_reason": e.FilterReason})
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(render.Post(*e.Post)))
}

// APIReloadFeed rereads the feed's configuration file, then syncs it to
// the database and recomposes every stored post under the new settings.
func (h *Handler) APIReloadFeed(c *gin.Context) {
	name := c.Param("name")

	_, feed, ok := h.lookupFeed(c, name)
	if !ok {
		return
	}

	feedConfig, err := h.configCache.LoadConfig(name)
	if err != nil {
		slog.Error("Error reloading configuration", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	syncFeedTask := tasks.NewSyncFeedConfigTask(name, feedConfig, h.feedRepo)
	err = h.scheduler.EnqueueTask(syncFeedTask)
	if err != nil {
		slog.Error("Error enqueueing sync task", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue sync task",
			"details": err.Error(),
		})
		return
	}

	recomposeFeedTask := tasks.NewRecomposeFeedTask(name, feedConfig, h.pipeline, h.entryRepo)
	err = h.scheduler.EnqueueTask(recomposeFeedTask)
	if err != nil {
		slog.Error("Error enqueueing recompose task", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue recompose task",
			"details": err.Error(),
		})
		return
	}

	response := gin.H{
		"success": true,
		"message": "Configuration reloaded and tasks enqueued successfully",
		"feed": gin.H{
			"name":  name,
			"title": feed.Title,
			"url":   feedConfig.URL,
		},
		"tasks": []gin.H{
			{
				"id":   syncFeedTask.ID,
				"type": syncFeedTask.Type,
			},
			{
				"id":   recomposeFeedTask.ID,
				"type": recomposeFeedTask.Type,
			},
		},
	}

	c.JSON(http.StatusOK, response)
}

// lookupFeed resolves a feed's configuration and database row, writing
// the error response itself when either is missing.
func (h *Handler) lookupFeed(c *gin.Context, name string) (*feed.Config, *database.Feed, bool) {
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing feed name parameter"})
		return nil, nil, false
	}

	feedConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		slog.Error("Feed configuration not found", "feed", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed configuration not found"})
		return nil, nil, false
	}

	feed, err := h.feedRepo.GetFeed(name)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil, nil, false
	}

	if feed == nil {
		slog.Error("Feed not found in database", "feed", name)
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found in database"})
		return nil, nil, false
	}

	return feedConfig, feed, true
}

func newPostView(e database.Entry) postView {
	view := postView{
		ID:           e.ID,
		GUID:         e.GUID,
		Title:        e.Title,
		Link:         e.Link,
		ShortURL:     e.ShortURL,
		PublishedAt:  e.PublishedAt.Format(time.RFC3339),
		IsFiltered:   e.IsFiltered,
		FilterReason: e.FilterReason,
	}
	if e.Post != nil {
		view.Post = e.Post
		view.HTML = render.Post(*e.Post)
	}

	// The stored summary is feed markup, so only allow-listed tags go out.
	var stored entry.Entry
	if len(e.Data) > 0 && json.Unmarshal(e.Data, &stored) == nil {
		view.Summary = sanitize.HTML(stored.Summary)
	}
	return view
}
