package ratelimit

import (
	"testing"
	"time"

	"chatinvoice/storage"
)

func TestAllowExhaustsBucketAtTierCeiling(t *testing.T) {
	limiter := New(time.Minute, TierLimits{storage.TierFree: 2})
	if !limiter.Allow("org-1", storage.TierFree, false) {
		t.Fatal("expected first request allowed")
	}
	if !limiter.Allow("org-1", storage.TierFree, false) {
		t.Fatal("expected second request allowed")
	}
	if limiter.Allow("org-1", storage.TierFree, false) {
		t.Fatal("expected third request to be rate limited")
	}
}

func TestTiersAreIndependentPerOrganization(t *testing.T) {
	limiter := New(time.Minute, TierLimits{storage.TierFree: 1})
	if !limiter.Allow("org-1", storage.TierFree, false) {
		t.Fatal("expected org-1 first request allowed")
	}
	if !limiter.Allow("org-2", storage.TierFree, false) {
		t.Fatal("expected org-2 to have its own independent bucket")
	}
}

func TestReadOnlyRequestsGetLooserAllowance(t *testing.T) {
	limiter := New(time.Minute, TierLimits{storage.TierFree: 1})
	for i := 0; i < readMultiplier; i++ {
		if !limiter.Allow("org-1", storage.TierFree, true) {
			t.Fatalf("expected read request %d allowed under multiplier", i)
		}
	}
	if limiter.Allow("org-1", storage.TierFree, true) {
		t.Fatal("expected read bucket to exhaust at multiplier ceiling")
	}
}
