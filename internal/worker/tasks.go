package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TaskGenerateInsights  = "insights:generate"
	TaskCloseExpiredPolls = "polls:close-expired"
)

type insightsPayload struct {
	PollID string `json:"poll_id"`
}

// NewGenerateInsightsTask builds the task that runs insights generation for
// a poll already marked processing. It is never retried: a retry would
// overwrite whatever a newer request has written meanwhile.
func NewGenerateInsightsTask(pollID string) (*asynq.Task, error) {
	payload, err := json.Marshal(insightsPayload{PollID: pollID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskGenerateInsights,
		payload,
		asynq.MaxRetry(0),
		asynq.Timeout(5*time.Minute),
		asynq.Retention(24*time.Hour),
	), nil
}

// Queue enqueues insights generation on the asynq queue. It implements
// insights.Dispatcher.
type Queue struct {
	client *asynq.Client
}

// NewQueue connects an asynq client to redisURL.
func NewQueue(redisURL string) (*Queue, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &Queue{client: asynq.NewClient(opt)}, nil
}

// Dispatch enqueues generation for pollID.
func (q *Queue) Dispatch(ctx context.Context, pollID string) error {
	task, err := NewGenerateInsightsTask(pollID)
	if err != nil {
		return err
	}
	if _, err := q.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue generation task: %w", err)
	}
	return nil
}

// Close closes the Asynq client connection gracefully.
func (q *Queue) Close() error {
	return q.client.Close()
}
