package tasks

import (
	"context"

	"github.com/lysyi3m/rss-poster/app/entry"
	"github.com/lysyi3m/rss-poster/app/feed"
	"github.com/lysyi3m/rss-poster/app/post"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application and the API to manage background task processing.
// Example usage:
//
//	scheduler := NewScheduler(configCache, feedRepo, entryRepo, pipeline)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewProcessFeedTask(...))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

type FeedFetcher interface {
	FetchOK(ctx context.Context, url string) ([]byte, error)
}

type EntryBuilder interface {
	Build(ctx context.Context, fc *feed.Context, item feed.Item) (*entry.Entry, error)
	Enrich(ctx context.Context, fc *feed.Context, e *entry.Entry)
}

type PostComposer interface {
	Compose(ctx context.Context, fc *feed.Context, e *entry.Entry) *post.Post
}

// Pipeline bundles the collaborators a feed pass needs.
type Pipeline struct {
	Fetcher    FeedFetcher
	Parser     *feed.Parser
	Discoverer *feed.Discoverer
	Filterer   *feed.Filterer
	Builder    EntryBuilder
	Composer   PostComposer
	Locker     FeedLocker
}
