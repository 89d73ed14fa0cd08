// Package queue implements the Redis-backed job queues that decouple the
// HTTP surface from the extraction and webhook-delivery pipelines. Jobs are
// tagged variants (never an untyped bag) so producers and consumers agree
// on shape at compile time.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Kind discriminates the job payload shape.
type Kind string

const (
	KindExtraction Kind = "extraction"
	KindWebhook    Kind = "webhook"
)

// ExtractionPayload is enqueued after an order's raw inputs are accepted
// and before the extraction worker runs the LLM call.
type ExtractionPayload struct {
	OrganizationID  string   `json:"organizationId"`
	CorrelationID   string   `json:"correlationId"`
	ChatLog         bool     `json:"chatLog"`
	RawText         string   `json:"rawText,omitempty"`
	RawMessageLines []string `json:"rawMessageLines,omitempty"`
	WebhookURL      string   `json:"webhookUrl,omitempty"`
}

// WebhookPayload is enqueued when an extraction completes or permanently
// fails, for delivery to the webhook URL supplied with the extraction
// request.
type WebhookPayload struct {
	WebhookURL     string         `json:"webhookUrl"`
	OrganizationID string         `json:"organizationId"`
	CorrelationID  string         `json:"correlationId"`
	Event          string         `json:"event"`
	OrderID        string         `json:"orderId"`
	Data           map[string]any `json:"data,omitempty"`
}

// Job is one unit of work read off the queue, carrying retry bookkeeping.
type Job struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	MaxRetries int             `json:"maxRetries"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
}

// Options configures enqueue behavior.
type Options struct {
	MaxRetries int
	Priority   bool // priority jobs are pushed to the head of the list
}

// DefaultMaxRetries matches the extraction pipeline's documented retry
// budget before a job moves to the dead-letter list.
const DefaultMaxRetries = 3

func keyFor(kind Kind) string {
	return fmt.Sprintf("chatinvoice:queue:%s", kind)
}

func deadLetterKeyFor(kind Kind) string {
	return fmt.Sprintf("chatinvoice:queue:%s:dead", kind)
}

func processingKeyFor(kind Kind) string {
	return fmt.Sprintf("chatinvoice:queue:%s:processing", kind)
}

// Queue is a Redis list-backed job queue for one Kind.
type Queue struct {
	rdb  *redis.Client
	kind Kind
}

// New returns a Queue bound to rdb for the given Kind.
func New(rdb *redis.Client, kind Kind) *Queue {
	return &Queue{rdb: rdb, kind: kind}
}

// Enqueue pushes a new job carrying payload onto the queue.
func (q *Queue) Enqueue(ctx context.Context, payload any, opts Options) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("queue: marshal payload: %w", err)
	}
	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}
	job := Job{
		ID:         uuid.NewString(),
		Kind:       q.kind,
		Payload:    raw,
		MaxRetries: maxRetries,
		EnqueuedAt: time.Now().UTC(),
	}
	encoded, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("queue: marshal job: %w", err)
	}
	key := keyFor(q.kind)
	if opts.Priority {
		err = q.rdb.LPush(ctx, key, encoded).Err()
	} else {
		err = q.rdb.RPush(ctx, key, encoded).Err()
	}
	if err != nil {
		return "", fmt.Errorf("queue: push job: %w", err)
	}
	return job.ID, nil
}

// Dequeue blocks up to timeout for the next job, moving it into a
// processing list so a crashed worker's in-flight jobs remain recoverable.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	key := keyFor(q.kind)
	result, err := q.rdb.BLMove(ctx, key, processingKeyFor(q.kind), "LEFT", "RIGHT", timeout).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("queue: dequeue: %w", err)
	}
	var job Job
	if err := json.Unmarshal([]byte(result), &job); err != nil {
		return nil, fmt.Errorf("queue: decode job: %w", err)
	}
	return &job, nil
}

// Ack removes a completed job from the processing list.
func (q *Queue) Ack(ctx context.Context, job *Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal job for ack: %w", err)
	}
	return q.rdb.LRem(ctx, processingKeyFor(q.kind), 1, encoded).Err()
}

// Retry increments the job's attempt count and either re-enqueues it with
// backoff or moves it to the dead-letter list once MaxRetries is exceeded.
func (q *Queue) Retry(ctx context.Context, job *Job, backoff time.Duration) error {
	if err := q.Ack(ctx, job); err != nil {
		return err
	}
	job.Attempts++
	if job.Attempts > job.MaxRetries {
		return q.deadLetter(ctx, job)
	}
	encoded, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal retried job: %w", err)
	}
	if backoff > 0 {
		time.AfterFunc(backoff, func() {
			q.rdb.RPush(context.Background(), keyFor(q.kind), encoded)
		})
		return nil
	}
	return q.rdb.RPush(ctx, keyFor(q.kind), encoded).Err()
}

func (q *Queue) deadLetter(ctx context.Context, job *Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal dead-lettered job: %w", err)
	}
	return q.rdb.RPush(ctx, deadLetterKeyFor(q.kind), encoded).Err()
}

// ListFailed returns the jobs currently in the dead-letter list.
func (q *Queue) ListFailed(ctx context.Context) ([]Job, error) {
	raw, err := q.rdb.LRange(ctx, deadLetterKeyFor(q.kind), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: list dead letters: %w", err)
	}
	jobs := make([]Job, 0, len(raw))
	for _, r := range raw {
		var job Job
		if err := json.Unmarshal([]byte(r), &job); err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// RetryOne moves a single dead-lettered job (matched by ID) back onto the
// live queue with its attempt counter reset.
func (q *Queue) RetryOne(ctx context.Context, jobID string) error {
	jobs, err := q.ListFailed(ctx)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if job.ID != jobID {
			continue
		}
		encoded, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("queue: marshal dead-lettered job: %w", err)
		}
		if err := q.rdb.LRem(ctx, deadLetterKeyFor(q.kind), 1, encoded).Err(); err != nil {
			return fmt.Errorf("queue: remove dead letter: %w", err)
		}
		job.Attempts = 0
		encoded, err = json.Marshal(job)
		if err != nil {
			return fmt.Errorf("queue: marshal retried job: %w", err)
		}
		return q.rdb.LPush(ctx, keyFor(q.kind), encoded).Err()
	}
	return fmt.Errorf("queue: dead letter %s not found", jobID)
}

// RetryAll moves every dead-lettered job back onto the live queue.
func (q *Queue) RetryAll(ctx context.Context) (int, error) {
	jobs, err := q.ListFailed(ctx)
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, job := range jobs {
		if err := q.RetryOne(ctx, job.ID); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

// Depth reports the number of jobs waiting (not yet dequeued).
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, keyFor(q.kind)).Result()
}
