package acme

import (
	"context"
	"errors"
	"fmt"

	"github.com/conblem/acmon/internal/ratelimit"
)

// ErrRateLimited is matched by every RateLimitedError.
var ErrRateLimited = errors.New("acme: rate limited")

// Operation names a Server method for rate limiting.
type Operation string

const (
	OpNonce         Operation = "new_nonce"
	OpCreateAccount Operation = "new_account"
	OpFinalize      Operation = "finalize"
)

// RateLimitedError carries the decision that rejected an operation.
type RateLimitedError struct {
	Operation Operation
	Decision  ratelimit.Decision
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("acme: %s rate limited: %d/%d requests in %s",
		e.Operation, e.Decision.Count, e.Decision.Max, e.Decision.Window)
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// Limited gates operations of an inner Server behind per operation limiters.
// Operations without a limiter are forwarded unchecked. The client key is
// taken from the context, see WithClient.
type Limited struct {
	inner    Server
	limiters map[Operation]ratelimit.Limiter
}

// NewLimited wraps inner.
func NewLimited(inner Server, limiters map[Operation]ratelimit.Limiter) *Limited {
	return &Limited{inner: inner, limiters: limiters}
}

// PolicyLimiters maps each operation to the policy scopes that apply to it.
func PolicyLimiters(limiter *ratelimit.PolicyLimiter) map[Operation]ratelimit.Limiter {
	return map[Operation]ratelimit.Limiter{
		OpNonce:         limiter.Scoped(ratelimit.ScopeNonce),
		OpCreateAccount: limiter.Scoped(ratelimit.ScopeAccount),
		OpFinalize:      limiter.Scoped(ratelimit.ScopeFinalize),
	}
}

func (l *Limited) GetNonce(ctx context.Context) (string, error) {
	if err := l.allow(ctx, OpNonce); err != nil {
		return "", err
	}

	return l.inner.GetNonce(ctx)
}

func (l *Limited) CreateAccount(ctx context.Context, req SignedRequest) error {
	if err := l.allow(ctx, OpCreateAccount); err != nil {
		return err
	}

	return l.inner.CreateAccount(ctx, req)
}

func (l *Limited) Finalize(ctx context.Context) error {
	if err := l.allow(ctx, OpFinalize); err != nil {
		return err
	}

	return l.inner.Finalize(ctx)
}

func (l *Limited) allow(ctx context.Context, op Operation) error {
	limiter, ok := l.limiters[op]
	if !ok {
		return nil
	}

	decision, err := limiter.Allow(ctx, ClientFromContext(ctx))
	if err != nil {
		return fmt.Errorf("acme: %s rate limit check: %w", op, err)
	}

	if !decision.Allowed {
		return &RateLimitedError{Operation: op, Decision: decision}
	}

	return nil
}

// LimitedBuilder builds a Limited around the server produced by an inner builder.
type LimitedBuilder struct {
	inner    ServerBuilder
	limiters map[Operation]ratelimit.Limiter
}

// NewLimitedBuilder wraps inner.
func NewLimitedBuilder(inner ServerBuilder, limiters map[Operation]ratelimit.Limiter) *LimitedBuilder {
	return &LimitedBuilder{inner: inner, limiters: limiters}
}

func (b *LimitedBuilder) Build(ctx context.Context) (Server, error) {
	inner, err := b.inner.Build(ctx)
	if err != nil {
		return nil, err
	}

	return NewLimited(inner, b.limiters), nil
}

// Compile-time checks.
var (
	_ Server        = (*Limited)(nil)
	_ ServerBuilder = (*LimitedBuilder)(nil)
)
