package middleware

import (
	"context"

	"github.com/conblem/acmon/internal/kv"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

type shaped struct {
	next    kv.Service
	limiter *rate.Limiter
}

// RateShape admits at most perSecond calls per second with the given burst.
// Ready blocks until a token is available.
func RateShape(perSecond float64, burst int) kv.Middleware {
	return func(next kv.Service) kv.Service {
		return &shaped{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
	}
}

func (s *shaped) Ready(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	return s.next.Ready(ctx)
}

func (s *shaped) Call(ctx context.Context, req kv.Request) (kv.Response, error) {
	return s.next.Call(ctx, req)
}

type bounded struct {
	next kv.Service
	sem  *semaphore.Weighted
}

// ConcurrencyLimit allows at most n calls in flight. Additional calls
// block until a slot frees up or their context ends.
func ConcurrencyLimit(n int64) kv.Middleware {
	return func(next kv.Service) kv.Service {
		return &bounded{next: next, sem: semaphore.NewWeighted(n)}
	}
}

func (b *bounded) Ready(ctx context.Context) error {
	return b.next.Ready(ctx)
}

func (b *bounded) Call(ctx context.Context, req kv.Request) (kv.Response, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer b.sem.Release(1)

	return b.next.Call(ctx, req)
}
