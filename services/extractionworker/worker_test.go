package extractionworker

import (
	"testing"
	"time"

	"chatinvoice/storage"
)

func TestBackoffDoublesFromThreeSecondBase(t *testing.T) {
	w := &Worker{}
	cases := map[int]time.Duration{
		1: 3 * time.Second,
		2: 6 * time.Second,
		3: 12 * time.Second,
	}
	for attempt, want := range cases {
		if got := w.backoff(attempt); got != want {
			t.Fatalf("backoff(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestBackoffClampsNonPositiveAttemptToFirst(t *testing.T) {
	w := &Worker{}
	if got := w.backoff(0); got != backoffBase {
		t.Fatalf("backoff(0) = %v, want %v", got, backoffBase)
	}
}

func TestSumTotalsIgnoresNilPrices(t *testing.T) {
	price := 10.0
	items := []storage.OrderItem{
		{TotalPrice: &price},
		{TotalPrice: nil},
	}
	if got := sumTotals(items); got != 10.0 {
		t.Fatalf("sumTotals = %v, want 10.0", got)
	}
}
