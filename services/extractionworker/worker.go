// Package extractionworker runs the pool that drains the extraction queue:
// call the LLM Client, persist the result via Storage, and hand off a
// webhook delivery without ever letting that delivery's failure fail the
// extraction itself.
package extractionworker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"chatinvoice/correlation"
	"chatinvoice/llm"
	"chatinvoice/queue"
	"chatinvoice/storage"
)

// Concurrency is the number of jobs processed in parallel, matching the
// upstream LLM vendor's practical connection budget.
const Concurrency = 3

// RateLimit caps throughput at the LLM vendor's quota, independent of any
// per-tenant rate limiting applied at the HTTP layer.
const RateLimit = 10 // jobs per minute

const dequeueTimeout = 5 * time.Second

// backoffBase is the extraction queue's documented retry base: 3s, 6s, 12s.
const backoffBase = 3 * time.Second

// Worker drains the extraction queue with a fixed-size pool of goroutines.
type Worker struct {
	queue     *queue.Queue
	webhookQ  *queue.Queue
	status    *queue.StatusStore
	llmClient *llm.Client
	store     storage.Store
	logger    *slog.Logger
	limiter   *rate.Limiter

	wg sync.WaitGroup
}

// New constructs a Worker. webhookQ receives delivery jobs on completion or
// permanent failure; status records per-job progress for polling clients.
func New(q, webhookQ *queue.Queue, status *queue.StatusStore, llmClient *llm.Client, store storage.Store, logger *slog.Logger) *Worker {
	return &Worker{
		queue:     q,
		webhookQ:  webhookQ,
		status:    status,
		llmClient: llmClient,
		store:     store,
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Limit(float64(RateLimit)/60.0), RateLimit),
	}
}

// Run starts Concurrency goroutines pulling from the queue. It blocks until
// ctx is cancelled, at which point it waits for in-flight jobs to finish
// before returning.
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
			w.logger.ErrorContext(ctx, "extraction dequeue failed", "error", err)
			continue
		}
		if job == nil {
			continue
		}
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}
		w.handle(ctx, job)
	}
}

func (w *Worker) handle(ctx context.Context, job *queue.Job) {
	var payload queue.ExtractionPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		w.logger.ErrorContext(ctx, "extraction job payload malformed", "jobId", job.ID, "error", err)
		w.fail(ctx, job, payload, "malformed job payload")
		return
	}

	jobCtx := correlation.WithID(context.WithoutCancel(ctx), payload.CorrelationID)
	logger := w.logger.With("jobId", job.ID, "organizationId", payload.OrganizationID, "correlationId", payload.CorrelationID)

	w.setStatus(jobCtx, job.ID, queue.JobActive, 10, nil, "")

	order, err := w.extractAndPersist(jobCtx, job.ID, payload)
	if err != nil {
		nextAttempt := job.Attempts + 1
		exhausted := nextAttempt > job.MaxRetries
		logger.WarnContext(jobCtx, "extraction attempt failed", "attempt", nextAttempt, "error", err)
		if retryErr := w.queue.Retry(jobCtx, job, w.backoff(nextAttempt)); retryErr != nil {
			logger.ErrorContext(jobCtx, "failed to schedule extraction retry", "error", retryErr)
		}
		if exhausted {
			w.fail(jobCtx, job, payload, err.Error())
		}
		return
	}

	w.setStatus(jobCtx, job.ID, queue.JobActive, 90, nil, "")

	if payload.WebhookURL != "" {
		w.enqueueWebhook(jobCtx, payload, "extraction.completed", order.ID, map[string]any{"order": order})
	}

	result, _ := json.Marshal(map[string]any{"orderId": order.ID, "status": "completed"})
	w.setStatus(jobCtx, job.ID, queue.JobCompleted, 100, result, "")
	if err := w.queue.Ack(jobCtx, job); err != nil {
		logger.ErrorContext(jobCtx, "failed to ack completed extraction job", "error", err)
	}
}

func (w *Worker) extractAndPersist(ctx context.Context, jobID string, payload queue.ExtractionPayload) (*storage.Order, error) {
	if payload.ChatLog {
		messages := make([]storage.RawMessage, 0, len(payload.RawMessageLines))
		for _, line := range payload.RawMessageLines {
			messages = append(messages, storage.RawMessage{Text: line})
		}
		result, err := w.llmClient.ExtractChatLog(ctx, messages)
		if err != nil {
			return nil, err
		}
		w.setStatus(ctx, jobID, queue.JobActive, 70, nil, "")
		items := llm.Coerce(result.Items)
		return w.store.AddChatOrder(ctx, payload.OrganizationID, storage.ChatOrderInput{
			NewOrderInput: storage.NewOrderInput{
				CustomerName:    result.CustomerName,
				CustomerPhone:   result.CustomerPhone,
				DeliveryAddress: result.DeliveryAddress,
				Items:           items,
				TotalAmount:     sumTotals(items),
			},
			Confidence:  llm.ClampConfidenceLabel(result.Confidence),
			RawMessages: messages,
		})
	}

	result, err := w.llmClient.ExtractSingleMessage(ctx, payload.RawText)
	if err != nil {
		return nil, err
	}
	w.setStatus(ctx, jobID, queue.JobActive, 70, nil, "")
	items := llm.Coerce(result.Items)
	return w.store.AddOrder(ctx, payload.OrganizationID, storage.NewOrderInput{
		CustomerName:    result.CustomerName,
		CustomerPhone:   result.CustomerPhone,
		DeliveryAddress: result.DeliveryAddress,
		Items:           items,
		TotalAmount:     sumTotals(items),
	})
}

// fail records a permanent failure and, when a webhook URL was supplied,
// enqueues a failure notification carrying the error message.
func (w *Worker) fail(ctx context.Context, job *queue.Job, payload queue.ExtractionPayload, reason string) {
	w.setStatus(ctx, job.ID, queue.JobFailed, 100, nil, reason)
	if payload.WebhookURL != "" {
		w.enqueueWebhook(ctx, payload, "extraction.failed", "", map[string]any{"error": reason})
	}
}

func (w *Worker) enqueueWebhook(ctx context.Context, payload queue.ExtractionPayload, event, orderID string, data map[string]any) {
	_, err := w.webhookQ.Enqueue(ctx, queue.WebhookPayload{
		WebhookURL:     payload.WebhookURL,
		OrganizationID: payload.OrganizationID,
		CorrelationID:  payload.CorrelationID,
		Event:          event,
		OrderID:        orderID,
		Data:           data,
	}, queue.Options{})
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to enqueue webhook delivery", "event", event, "error", err)
	}
}

func (w *Worker) setStatus(ctx context.Context, jobID string, state queue.JobState, progress int, result json.RawMessage, errMsg string) {
	if err := w.status.Set(ctx, queue.Status{
		JobID:    jobID,
		State:    state,
		Progress: progress,
		Result:   result,
		Error:    errMsg,
	}); err != nil {
		w.logger.ErrorContext(ctx, "failed to record job status", "jobId", jobID, "error", err)
	}
}

// backoff computes the extraction queue's 3s-base exponential delay.
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

func sumTotals(items []storage.OrderItem) float64 {
	var total float64
	for _, item := range items {
		if item.TotalPrice != nil {
			total += *item.TotalPrice
		}
	}
	return total
}
