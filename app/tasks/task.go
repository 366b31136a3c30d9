package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type TaskType string

const (
	TaskTypeProcessFeed    TaskType = "process_feed"
	TaskTypeRecomposeFeed  TaskType = "recompose_feed"
	TaskTypeSyncFeedConfig TaskType = "sync_feed_config"
)

const (
	DefaultMaxRetries = 3
)

// Recomposing and syncing only touch the database and the shortener, so a
// second failure is not worth waiting for.
var retryBudgets = map[TaskType]int{
	TaskTypeProcessFeed:    DefaultMaxRetries,
	TaskTypeRecomposeFeed:  1,
	TaskTypeSyncFeedConfig: 1,
}

type TaskInterface interface {
	Execute(ctx context.Context) error
	GetID() string
	GetType() TaskType
	GetFeedName() string
	GetRetryCount() int
	GetMaxRetries() int
	IncrementRetryCount()
	CanRetry() bool
	Start()
	GetDuration() time.Duration
}

type Task struct {
	ID         string
	Type       TaskType
	FeedName   string
	RetryCount int
	MaxRetries int
	StartedAt  *time.Time
}

func (t *Task) GetID() string {
	return t.ID
}

func (t *Task) GetType() TaskType {
	return t.Type
}

func (t *Task) GetFeedName() string {
	return t.FeedName
}

func (t *Task) GetRetryCount() int {
	return t.RetryCount
}

func (t *Task) GetMaxRetries() int {
	return t.MaxRetries
}

func (t *Task) IncrementRetryCount() {
	t.RetryCount++
}

func (t *Task) CanRetry() bool {
	return t.RetryCount < t.MaxRetries
}

func (t *Task) Start() {
	now := time.Now()
	t.StartedAt = &now
}

func (t *Task) GetDuration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	return time.Since(*t.StartedAt)
}

// LogValue groups the task identity for log lines.
func (t *Task) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("type", string(t.Type)),
		slog.String("id", t.ID),
		slog.String("feed", t.FeedName),
		slog.Int("retry_count", t.RetryCount),
	)
}

func NewTask(taskType TaskType, feedName string) Task {
	maxRetries, ok := retryBudgets[taskType]
	if !ok {
		maxRetries = DefaultMaxRetries
	}

	return Task{
		ID:         uuid.NewString(),
		Type:       taskType,
		FeedName:   feedName,
		MaxRetries: maxRetries,
	}
}
