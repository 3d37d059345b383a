package ratelimit

import (
	"context"
	"fmt"
)

// PolicyLimiter enforces rate limits based on a policy and resolved scopes.
type PolicyLimiter struct {
	repo   Repository
	policy *Policy
}

// NewPolicyLimiter creates a new policy-based rate limiter.
func NewPolicyLimiter(repo Repository, policy *Policy) *PolicyLimiter {
	return &PolicyLimiter{
		repo:   repo,
		policy: policy,
	}
}

// Allow checks every limit of every scope for the client key. The request is
// recorded against each limit only when all of them admit it, so rejected
// requests do not consume quota. Limits are checked in scope order and a
// denied Decision describes the first one that rejects.
func (l *PolicyLimiter) Allow(ctx context.Context, clientKey string, scopes ...Scope) (Decision, error) {
	var keys []string

	for _, scope := range scopes {
		for _, limit := range l.policy.Limits[scope] {
			// Key combines client + scope + window for independent tracking
			key := l.buildKey(clientKey, scope, limit)

			count, err := l.repo.GetLimit(ctx, key, limit.Window)
			if err != nil {
				return Decision{}, err
			}

			if count >= limit.Max {
				return Decision{
					Scope:  scope,
					Count:  count,
					Max:    limit.Max,
					Window: limit.Window,
				}, nil
			}

			keys = append(keys, key)
		}
	}

	for _, key := range keys {
		if err := l.repo.AddReq(ctx, key); err != nil {
			return Decision{}, err
		}
	}

	return Decision{Allowed: true}, nil
}

// Scoped returns a Limiter applying the given scopes to every key.
func (l *PolicyLimiter) Scoped(scopes ...Scope) Limiter {
	return &scopedLimiter{limiter: l, scopes: scopes}
}

// buildKey creates a unique key for the client, scope, and window combination.
// Windows are rendered before the '_' that precedes the timestamp, so keys of
// different windows never fall into each other's ranges.
func (l *PolicyLimiter) buildKey(clientKey string, scope Scope, limit LimitConfig) string {
	return fmt.Sprintf("%s:%s:%d", clientKey, scope, limit.Window.Milliseconds())
}

type scopedLimiter struct {
	limiter *PolicyLimiter
	scopes  []Scope
}

func (s *scopedLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	return s.limiter.Allow(ctx, key, s.scopes...)
}
