package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/strategy"
	"github.com/conblem/acmon/internal/kv"
	"go.uber.org/zap"
)

type retrying struct {
	next     kv.Service
	attempts uint
	backoff  time.Duration
	logger   *zap.Logger
}

// Retry re-sends failed calls up to attempts times in total, waiting backoff
// between attempts. Cancellation of the caller's context and kv.ErrClosed
// are never retried.
func Retry(attempts uint, backoff time.Duration, logger *zap.Logger) kv.Middleware {
	if attempts == 0 {
		attempts = 1
	}

	return func(next kv.Service) kv.Service {
		return &retrying{next: next, attempts: attempts, backoff: backoff, logger: logger}
	}
}

func (r *retrying) Ready(ctx context.Context) error {
	return r.next.Ready(ctx)
}

func (r *retrying) Call(ctx context.Context, req kv.Request) (kv.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		res     kv.Response
		lastErr error
	)

	err := retry.Retry(
		func(attempt uint) error {
			if attempt > 0 {
				if err := r.next.Ready(ctx); err != nil {
					lastErr = err

					return err
				}
			}

			var err error

			res, err = r.next.Call(ctx, req)
			if err != nil {
				lastErr = err

				r.logger.Warn("kv call failed",
					zap.String("op", string(req.Op())),
					zap.Uint("attempt", attempt),
					zap.Error(err),
				)
			}

			return err
		},
		strategy.Limit(r.attempts),
		func(attempt uint) bool {
			return attempt == 0 || retryable(ctx, lastErr)
		},
		waitContext(ctx, r.backoff),
	)
	if err != nil {
		return nil, err
	}

	// retry.Retry runs no attempt when the strategies refuse the first one.
	if res == nil {
		if lastErr != nil {
			return nil, lastErr
		}

		return nil, ctx.Err()
	}

	return res, nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	return !errors.Is(err, kv.ErrClosed) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, kv.ErrUnsupportedOption)
}

// waitContext is strategy.Wait that stops retrying when ctx ends.
func waitContext(ctx context.Context, d time.Duration) strategy.Strategy {
	return func(attempt uint) bool {
		if attempt == 0 || d <= 0 {
			return ctx.Err() == nil
		}

		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		}
	}
}
