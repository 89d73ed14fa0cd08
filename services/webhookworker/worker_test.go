package webhookworker

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatinvoice/queue"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBackoffDoublesFromFiveSecondBase(t *testing.T) {
	w := &Worker{}
	cases := map[int]time.Duration{
		1: 5 * time.Second,
		2: 10 * time.Second,
		3: 20 * time.Second,
	}
	for attempt, want := range cases {
		if got := w.backoff(attempt); got != want {
			t.Fatalf("backoff(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestPostSucceedsOn2xxAndIncludesCorrelationHeader(t *testing.T) {
	var observedHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		observedHeader = r.Header.Get("X-Correlation-Id")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	worker := New(nil, discardLogger())
	err := worker.post(context.Background(), queue.WebhookPayload{
		WebhookURL:    srv.URL,
		CorrelationID: "corr-1",
		Event:         "extraction.completed",
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if observedHeader != "corr-1" {
		t.Fatalf("expected correlation header corr-1, got %q", observedHeader)
	}
}

func TestPostFailsOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	worker := New(nil, discardLogger())
	err := worker.post(context.Background(), queue.WebhookPayload{WebhookURL: srv.URL})
	if err == nil {
		t.Fatal("expected error on 500 response")
	}
}

func TestPostFailsWhenURLMissing(t *testing.T) {
	worker := New(nil, discardLogger())
	if err := worker.post(context.Background(), queue.WebhookPayload{}); err == nil {
		t.Fatal("expected error when webhookUrl is empty")
	}
}
