package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dkarlovi/babelshot/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	QueueGenerateBatch = "queue:generate_batch"
	QueueExtendBatch   = "queue:extend_batch"
)

type Queue struct {
	client *redis.Client
}

// Job is the unit dequeued by the background worker. Generation jobs carry
// the full request so the worker does not re-read it from the API layer.
type Job struct {
	ID        uuid.UUID                 `json:"id"`
	Type      string                    `json:"type"`
	BatchID   uuid.UUID                 `json:"batch_id"`
	SessionID *uuid.UUID                `json:"session_id,omitempty"`
	Request   *models.GenerationRequest `json:"request,omitempty"`
	MediaKind models.MediaKind          `json:"media_kind,omitempty"`
	CreatedAt time.Time                 `json:"created_at"`
}

func New(redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Queue{client: client}, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

func (q *Queue) Enqueue(ctx context.Context, queueName string, job *Job) error {
	job.CreatedAt = time.Now()

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return q.client.RPush(ctx, queueName, data).Err()
}

func (q *Queue) Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, queueName).Result()
	if err == redis.Nil {
		return nil, nil // No job available
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected redis response")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

func (q *Queue) GetQueueLength(ctx context.Context, queueName string) (int64, error) {
	return q.client.LLen(ctx, queueName).Result()
}

// EnqueueGenerateBatch enqueues a media generation batch job.
func (q *Queue) EnqueueGenerateBatch(ctx context.Context, batchID uuid.UUID, kind models.MediaKind, req *models.GenerationRequest) error {
	job := &Job{
		ID:        uuid.New(),
		Type:      "generate_batch",
		BatchID:   batchID,
		SessionID: req.SessionID,
		MediaKind: kind,
		Request:   req,
	}
	return q.Enqueue(ctx, QueueGenerateBatch, job)
}

// EnqueueExtendBatch enqueues a duration-extension pass over a batch's videos.
func (q *Queue) EnqueueExtendBatch(ctx context.Context, batchID uuid.UUID) error {
	job := &Job{
		ID:      uuid.New(),
		Type:    "extend_batch",
		BatchID: batchID,
	}
	return q.Enqueue(ctx, QueueExtendBatch, job)
}
