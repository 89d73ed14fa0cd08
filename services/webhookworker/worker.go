// Package webhookworker drains the webhook delivery queue, POSTing each
// payload to its destination and letting the queue's own retry/backoff and
// dead-letter handling absorb delivery failures.
package webhookworker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"chatinvoice/correlation"
	"chatinvoice/queue"
)

// Concurrency is the number of delivery goroutines draining the queue.
const Concurrency = 5

const deliveryTimeout = 10 * time.Second
const dequeueTimeout = 5 * time.Second

// backoffBase is the webhook queue's documented retry base: 5s, 10s, 20s...
const backoffBase = 5 * time.Second

// Worker delivers queued webhook payloads over HTTP.
type Worker struct {
	queue  *queue.Queue
	client *http.Client
	logger *slog.Logger

	wg sync.WaitGroup
}

// New constructs a Worker bound to the webhook queue.
func New(q *queue.Queue, logger *slog.Logger) *Worker {
	return &Worker{
		queue:  q,
		client: &http.Client{Timeout: deliveryTimeout},
		logger: logger,
	}
}

// Run starts Concurrency delivery goroutines. It blocks until ctx is
// cancelled, then waits for in-flight deliveries to finish.
func (w *Worker) Run(ctx context.Context) {
	w.wg.Add(Concurrency)
	for i := 0; i < Concurrency; i++ {
		go func() {
			defer w.wg.Done()
			w.loop(ctx)
		}()
	}
	w.wg.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := w.queue.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.ErrorContext(ctx, "webhook dequeue failed", "error", err)
			continue
		}
		if job == nil {
			continue
		}
		w.deliver(ctx, job)
	}
}

func (w *Worker) deliver(ctx context.Context, job *queue.Job) {
	var payload queue.WebhookPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		w.logger.ErrorContext(ctx, "webhook job payload malformed", "jobId", job.ID, "error", err)
		_ = w.queue.Ack(ctx, job)
		return
	}

	jobCtx := correlation.WithID(context.WithoutCancel(ctx), payload.CorrelationID)
	logger := w.logger.With("jobId", job.ID, "organizationId", payload.OrganizationID, "event", payload.Event)

	if err := w.post(jobCtx, payload); err != nil {
		logger.WarnContext(jobCtx, "webhook delivery failed", "attempt", job.Attempts+1, "error", err)
		if retryErr := w.queue.Retry(jobCtx, job, w.backoff(job.Attempts+1)); retryErr != nil {
			logger.ErrorContext(jobCtx, "failed to schedule webhook retry", "error", retryErr)
		}
		return
	}

	if err := w.queue.Ack(jobCtx, job); err != nil {
		logger.ErrorContext(jobCtx, "failed to ack delivered webhook job", "error", err)
	}
}

func (w *Worker) post(ctx context.Context, payload queue.WebhookPayload) error {
	if payload.WebhookURL == "" {
		return fmt.Errorf("webhookworker: payload missing destination URL")
	}
	body, err := json.Marshal(map[string]any{
		"event":   payload.Event,
		"orderId": payload.OrderID,
		"data":    payload.Data,
	})
	if err != nil {
		return fmt.Errorf("webhookworker: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, payload.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhookworker: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(correlation.Header, payload.CorrelationID)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhookworker: deliver: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhookworker: non-2xx response: %s", resp.Status)
	}
	return nil
}

// backoff computes the webhook queue's 5s-base exponential delay.
func (w *Worker) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := backoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}
