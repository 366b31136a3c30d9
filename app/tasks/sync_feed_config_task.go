package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rss-poster/app/database"
	"github.com/lysyi3m/rss-poster/app/feed"
)

// SyncFeedConfigTask registers a feed's configuration in the database. The
// stored thumbnail fingerprint is cleared when it no longer describes the
// configured source, either because the URL changed or thumbnails are off.
type SyncFeedConfigTask struct {
	Task
	FeedConfig *feed.Config
	feedRepo   database.FeedRepository
}

func NewSyncFeedConfigTask(feedName string, feedConfig *feed.Config, feedRepo database.FeedRepository) *SyncFeedConfigTask {
	return &SyncFeedConfigTask{
		Task:       NewTask(TaskTypeSyncFeedConfig, feedName),
		FeedConfig: feedConfig,
		feedRepo:   feedRepo,
	}
}

func (t *SyncFeedConfigTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	existing, err := t.feedRepo.GetFeed(t.FeedConfig.Name)
	if err != nil {
		return fmt.Errorf("failed to get feed: %w", err)
	}

	err = t.feedRepo.UpsertFeed(t.FeedConfig.Name, t.FeedConfig.URL)
	if err != nil {
		slog.Error("Task failed", "type", "SyncFeedConfig", "feed", t.FeedName, "error", err)
		return fmt.Errorf("failed to sync feed config to database: %w", err)
	}

	if existing != nil && existing.LastImageHash != "" &&
		(existing.FeedURL != t.FeedConfig.URL || !t.FeedConfig.Settings.IncludeThumb) {
		if err := t.feedRepo.UpdateLastImageHash(t.FeedConfig.Name, ""); err != nil {
			return fmt.Errorf("failed to reset last image hash: %w", err)
		}
		slog.Info("Thumbnail fingerprint reset", "feed", t.FeedName, "old_url", existing.FeedURL, "url", t.FeedConfig.URL)
	}

	slog.Info("Task completed",
		"type", "SyncFeedConfig",
		"feed", t.FeedName,
		"duration", t.GetDuration())

	return nil
}
