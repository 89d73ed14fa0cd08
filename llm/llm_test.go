package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatinvoice/storage"
)

func TestCoerceDropsEmptyProductNameAndClampsNegatives(t *testing.T) {
	price := -5.0
	items := []ExtractedItem{
		{ProductName: "", Quantity: 1},
		{ProductName: "Rice", Quantity: -2, PricePerUnit: &price},
	}
	out := Coerce(items)
	if len(out) != 1 {
		t.Fatalf("expected 1 item after dropping empty name, got %d", len(out))
	}
	if out[0].Quantity != 1 {
		t.Fatalf("expected negative quantity defaulted to 1, got %v", out[0].Quantity)
	}
	if *out[0].PricePerUnit != 0 {
		t.Fatalf("expected negative price clamped to 0, got %v", *out[0].PricePerUnit)
	}
	if *out[0].TotalPrice != 0 {
		t.Fatalf("expected total price 0, got %v", *out[0].TotalPrice)
	}
}

func TestClampConfidence(t *testing.T) {
	cases := map[float64]float64{-1: 0, 0.5: 0.5, 2: 1}
	for in, want := range cases {
		if got := ClampConfidence(in); got != want {
			t.Errorf("ClampConfidence(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestPruneMessagesKeepsMostRecent(t *testing.T) {
	msgs := []storage.RawMessage{
		{Sender: "buyer", Text: strings.Repeat("a", 8000)},
		{Sender: "seller", Text: strings.Repeat("b", 8000)},
	}
	pruned := PruneMessages(msgs)
	if len(pruned) != 1 {
		t.Fatalf("expected pruning to 1 message, got %d", len(pruned))
	}
	if pruned[0].Sender != "seller" {
		t.Fatalf("expected most recent message retained, got sender %q", pruned[0].Sender)
	}
}

func TestPruneMessagesNoopUnderBudget(t *testing.T) {
	msgs := []storage.RawMessage{{Sender: "buyer", Text: "hi"}}
	if got := PruneMessages(msgs); len(got) != 1 {
		t.Fatalf("expected no pruning under budget, got %d messages", len(got))
	}
}

func TestExtractSingleMessageRetriesOn500ThenSucceeds(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"arguments":{"customerName":"Asha","items":[{"productName":"Rice","quantity":2}],"confidence":0.9}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "k", Model: "m", Timeout: 5 * time.Second})
	result, err := client.ExtractSingleMessage(context.Background(), "2kg rice to Asha")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CustomerName != "Asha" {
		t.Fatalf("unexpected customer name: %q", result.CustomerName)
	}
	if calls != 2 {
		t.Fatalf("expected exactly 2 calls (1 retry), got %d", calls)
	}
}

func TestExtractSingleMessageDoesNotRetryOn400(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "k", Model: "m", Timeout: 5 * time.Second})
	_, err := client.ExtractSingleMessage(context.Background(), "bad request")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected no retry on 400, got %d calls", calls)
	}
}
