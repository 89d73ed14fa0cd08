// Package ratelimit implements the platform's tier-based request limiter,
// built on golang.org/x/time/rate token buckets the way the rest of the
// stack limits upstream calls. Each bucket holds the tier's ceiling and
// refills at ceiling/window. It is not a strict sliding window: a bucket
// emptied at the start of a window refills continuously, so up to about
// twice the ceiling can pass within one window span.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"chatinvoice/storage"
)

// readMultiplier grants read-only endpoints a looser allowance than
// mutating ones, since listing orders is far cheaper than extracting one.
const readMultiplier = 5

// TierLimits maps a tier to its requests-per-window ceiling for mutating
// endpoints.
type TierLimits map[storage.Tier]int

// DefaultTierLimits mirrors the documented default rate limits.
var DefaultTierLimits = TierLimits{
	storage.TierFree:       50,
	storage.TierPro:        500,
	storage.TierEnterprise: 5000,
}

// Limiter issues per-organization, per-tier rate limiters, memoizing
// instances so the same (tier, read/write) pair always shares one token
// bucket per organization.
type Limiter struct {
	window time.Duration
	tiers  TierLimits

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New constructs a Limiter with the given refill window and per-tier
// ceilings.
func New(window time.Duration, tiers TierLimits) *Limiter {
	if tiers == nil {
		tiers = DefaultTierLimits
	}
	return &Limiter{window: window, tiers: tiers, limiters: make(map[string]*rate.Limiter)}
}

// Allow reports whether a request from organization orgID at tier may
// proceed, consuming one token from its bucket if so. readOnly requests
// draw from a bucket with readMultiplier times the mutating allowance.
func (l *Limiter) Allow(orgID string, tier storage.Tier, readOnly bool) bool {
	return l.limiterFor(orgID, tier, readOnly).Allow()
}

func (l *Limiter) limiterFor(orgID string, tier storage.Tier, readOnly bool) *rate.Limiter {
	key := string(tier) + "/" + orgID
	if readOnly {
		key += "/read"
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[key]; ok {
		return lim
	}

	maxRequests, ok := l.tiers[tier]
	if !ok {
		maxRequests = l.tiers[storage.TierFree]
	}
	if readOnly {
		maxRequests *= readMultiplier
	}

	ratePerSecond := float64(maxRequests) / l.window.Seconds()
	lim := rate.NewLimiter(rate.Limit(ratePerSecond), maxRequests)
	l.limiters[key] = lim
	return lim
}
