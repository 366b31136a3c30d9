package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rss-poster/app/database"
	"github.com/lysyi3m/rss-poster/app/entry"
	"github.com/lysyi3m/rss-poster/app/feed"
)

// RecomposeFeedTask reapplies filters and rebuilds every stored post of a
// feed after its configuration changed. Nothing is fetched again except
// short links that were never obtained and the page lookups of entries
// that were filtered until now.
type RecomposeFeedTask struct {
	Task
	FeedConfig *feed.Config
	pipeline   *Pipeline
	entryRepo  database.EntryRepository
}

func NewRecomposeFeedTask(feedName string, feedConfig *feed.Config, pipeline *Pipeline, entryRepo database.EntryRepository) *RecomposeFeedTask {
	return &RecomposeFeedTask{
		Task:       NewTask(TaskTypeRecomposeFeed, feedName),
		FeedConfig: feedConfig,
		pipeline:   pipeline,
		entryRepo:  entryRepo,
	}
}

func (t *RecomposeFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	unlock, err := t.pipeline.Locker.Lock(ctx, t.FeedName)
	if err != nil {
		return fmt.Errorf("failed to lock feed: %w", err)
	}
	defer unlock()

	stored, err := t.entryRepo.GetAllEntries(t.FeedName)
	if err != nil {
		return fmt.Errorf("failed to get feed entries: %w", err)
	}

	entries := make([]*entry.Entry, 0, len(stored))
	rows := make([]database.Entry, 0, len(stored))
	for _, row := range stored {
		var e entry.Entry
		if err := json.Unmarshal(row.Data, &e); err != nil {
			slog.Warn("Skipping entry with unreadable data", "feed", t.FeedName, "id", row.ID, "error", err)
			continue
		}
		if e.ShortURL == "" {
			e.ShortURL = row.ShortURL
		}
		entries = append(entries, &e)
		rows = append(rows, row)
	}

	items := make([]feed.Item, len(entries))
	for i, e := range entries {
		items[i] = e.Item()
	}

	// The fingerprint gate only applies to new entries.
	fc := t.FeedConfig.Context("")

	updatedCount := 0
	errorCount := 0

	for i, item := range t.pipeline.Filterer.Run(items, t.FeedConfig.Filters) {
		if err := ctx.Err(); err != nil {
			return err
		}

		e := entries[i]
		if item.IsFiltered {
			err = t.entryRepo.UpdateEntryPost(rows[i].ID, e.ShortURL, nil, true, item.FilterReason)
		} else {
			if rows[i].Post == nil {
				t.pipeline.Builder.Enrich(ctx, fc, e)
			}
			p := t.pipeline.Composer.Compose(ctx, fc, e)
			err = t.entryRepo.UpdateEntryPost(rows[i].ID, e.ShortURL, p, false, "")
		}

		if err != nil {
			slog.Error("Failed to update entry post", "feed", t.FeedName, "id", rows[i].ID, "error", err)
			errorCount++
			continue
		}
		updatedCount++
	}

	slog.Info("Task completed",
		"type", "RecomposeFeed",
		"feed", t.FeedName,
		"duration", t.GetDuration(),
		"success", updatedCount,
		"errors", errorCount)

	return nil
}
