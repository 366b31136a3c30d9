package tasks

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/rss-poster/app/database"
	"github.com/lysyi3m/rss-poster/app/entry"
	"github.com/lysyi3m/rss-poster/app/feed"
	"github.com/lysyi3m/rss-poster/app/post"
)

type ProcessFeedTask struct {
	Task
	FeedConfig *feed.Config
	pipeline   *Pipeline
	feedRepo   database.FeedRepository
	entryRepo  database.EntryRepository
}

func NewProcessFeedTask(feedName string, feedConfig *feed.Config, pipeline *Pipeline, feedRepo database.FeedRepository, entryRepo database.EntryRepository) *ProcessFeedTask {
	return &ProcessFeedTask{
		Task:       NewTask(TaskTypeProcessFeed, feedName),
		FeedConfig: feedConfig,
		pipeline:   pipeline,
		feedRepo:   feedRepo,
		entryRepo:  entryRepo,
	}
}

type processStats struct {
	duplicates int
	filtered   int
	malformed  int
	posted     int
}

func (t *ProcessFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.FeedConfig.Settings.Enabled {
		slog.Debug("Feed disabled, skipping", "feed", t.FeedName)
		return nil
	}

	unlock, err := t.pipeline.Locker.Lock(ctx, t.FeedName)
	if err != nil {
		return fmt.Errorf("failed to lock feed: %w", err)
	}
	defer unlock()

	feedRow, err := t.feedRepo.GetFeed(t.FeedName)
	if err != nil {
		return fmt.Errorf("failed to get feed: %w", err)
	}
	if feedRow == nil {
		return fmt.Errorf("feed %s is not registered", t.FeedName)
	}

	data, err := t.fetchFeed(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	metadata, items, err := t.pipeline.Parser.Run(data)
	if err != nil {
		return fmt.Errorf("failed to parse feed: %w", err)
	}

	if err := t.storeFeedMetadata(metadata); err != nil {
		return fmt.Errorf("failed to store feed metadata: %w", err)
	}

	if limit := t.FeedConfig.Settings.MaxItems; limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	fc := t.FeedConfig.Context(feedRow.LastImageHash)
	stats, err := t.processItems(ctx, fc, items)

	// Entries stored before a failure already carry their thumbnails.
	if fc.LastImageHash != feedRow.LastImageHash {
		if hashErr := t.feedRepo.UpdateLastImageHash(t.FeedName, fc.LastImageHash); hashErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to store image fingerprint: %w", hashErr))
		}
	}
	if err != nil {
		return err
	}

	slog.Info("Task completed",
		"type", "ProcessFeed",
		"feed", t.FeedName,
		"duration", t.GetDuration(),
		"total", len(items),
		"duplicates", stats.duplicates,
		"filtered", stats.filtered,
		"malformed", stats.malformed,
		"posted", stats.posted)

	return nil
}

func (t *ProcessFeedTask) fetchFeed(ctx context.Context) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(t.FeedConfig.Settings.Timeout)*time.Second)
	defer cancel()

	data, err := t.pipeline.Fetcher.FetchOK(timeoutCtx, t.FeedConfig.URL)
	if err != nil {
		return nil, err
	}

	if !feed.IsHTMLPage(data) {
		return data, nil
	}

	feedURL, err := t.pipeline.Discoverer.Run(data, t.FeedConfig.URL)
	if err != nil {
		return nil, fmt.Errorf("feed URL returned HTML: %w", err)
	}

	slog.Warn("Feed URL points at an HTML page, using discovered feed", "feed", t.FeedName, "url", t.FeedConfig.URL, "discovered", feedURL)

	return t.pipeline.Fetcher.FetchOK(timeoutCtx, feedURL)
}

func (t *ProcessFeedTask) storeFeedMetadata(metadata *feed.Metadata) error {
	nextFetch := time.Now().UTC().Add(time.Duration(t.FeedConfig.Settings.RefreshInterval) * time.Second)

	err := t.feedRepo.UpdateFeedMetadata(t.FeedName, metadata.Title, metadata.Link, metadata.Description, metadata.Language, nextFetch)
	if err != nil {
		return fmt.Errorf("failed to update feed metadata and next fetch time: %w", err)
	}

	return nil
}

func (t *ProcessFeedTask) processItems(ctx context.Context, fc *feed.Context, items []feed.Item) (processStats, error) {
	var stats processStats

	var fresh []feed.Item
	for _, item := range items {
		if item.GUID != "" {
			exists, err := t.entryRepo.EntryExists(t.FeedName, item.GUID)
			if err != nil {
				return stats, fmt.Errorf("failed to check for duplicates: %w", err)
			}
			if exists {
				stats.duplicates++
				continue
			}
		}
		fresh = append(fresh, item)
	}

	for _, item := range t.pipeline.Filterer.Run(fresh, t.FeedConfig.Filters) {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		// Filtered items skip only the remote lookups, so a later recompose
		// starts from the same resolved permalink.
		if item.IsFiltered {
			e, err := entry.Prepare(fc, item)
			if errors.Is(err, entry.ErrMalformedItem) {
				slog.Warn("Skipping malformed item", "feed", t.FeedName, "guid", item.GUID, "link", item.Link, "error", err)
				stats.malformed++
				continue
			}
			if err != nil {
				return stats, fmt.Errorf("failed to prepare entry: %w", err)
			}
			if err := t.storeEntry(e, nil, item.FilterReason); err != nil {
				return stats, err
			}
			stats.filtered++
			continue
		}

		e, err := t.pipeline.Builder.Build(ctx, fc, item)
		if errors.Is(err, entry.ErrMalformedItem) {
			slog.Warn("Skipping malformed item", "feed", t.FeedName, "guid", item.GUID, "link", item.Link, "error", err)
			stats.malformed++
			continue
		}
		if err != nil {
			return stats, fmt.Errorf("failed to build entry: %w", err)
		}

		p := t.pipeline.Composer.Compose(ctx, fc, e)
		if err := t.storeEntry(e, p, ""); err != nil {
			return stats, err
		}
		stats.posted++
	}

	return stats, nil
}

func (t *ProcessFeedTask) storeEntry(e *entry.Entry, p *post.Post, filterReason string) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode entry: %w", err)
	}

	_, err = t.entryRepo.InsertEntry(t.FeedName, database.Entry{
		GUID:         e.GUID,
		Link:         e.Link,
		Title:        e.Title,
		ShortURL:     e.ShortURL,
		Thumbnail:    e.Thumbnail,
		Data:         data,
		Post:         p,
		IsFiltered:   p == nil,
		FilterReason: filterReason,
		PublishedAt:  cmp.Or(e.PublishedAt, time.Now().UTC()),
	})
	if err != nil {
		return fmt.Errorf("failed to store entry: %w", err)
	}

	return nil
}
