package ratelimit

import (
	"context"
	"math"
	"time"
)

// Decision describes the outcome of a rate limit check.
type Decision struct {
	Allowed bool
	Scope   Scope
	// Count is the number of events already in the window before this request.
	Count  uint32
	Max    uint32
	Window time.Duration
}

// RetryAfter is the window rounded up to whole seconds, for the Retry-After header.
func (d Decision) RetryAfter() int64 {
	return int64(math.Ceil(d.Window.Seconds()))
}

// Limiter defines the interface for rate limiting.
type Limiter interface {
	// Allow checks if a request from the given key should be allowed and records it if so.
	Allow(ctx context.Context, key string) (Decision, error)
}

// SlidingWindowLimiter allows at most max requests per key within window.
//
// The check and the record are separate store calls. Concurrent requests for
// one key can all observe a count below max and all be admitted.
type SlidingWindowLimiter struct {
	repo   Repository
	max    uint32
	window time.Duration
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter.
func NewSlidingWindowLimiter(repo Repository, max uint32, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		repo:   repo,
		max:    max,
		window: window,
	}
}

func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	count, err := l.repo.GetLimit(ctx, key, l.window)
	if err != nil {
		return Decision{}, err
	}

	decision := Decision{
		Scope:  ScopeGlobal,
		Count:  count,
		Max:    l.max,
		Window: l.window,
	}

	if count >= l.max {
		return decision, nil
	}

	if err := l.repo.AddReq(ctx, key); err != nil {
		return decision, err
	}

	decision.Allowed = true

	return decision, nil
}
