package ratelimit

import (
	"context"
	"math"
	"time"

	"github.com/conblem/acmon/internal/clock"
	"github.com/conblem/acmon/internal/kv"
	"go.uber.org/zap"
)

const (
	// DefaultForwardBound extends every counted window past now, so entries
	// written by peers whose clocks run ahead are still counted.
	DefaultForwardBound = 600 * time.Second
	// DefaultAttempts is how many times AddReq tries to write an event.
	DefaultAttempts = 3
	// DefaultBackoff is the pause between failed AddReq attempts.
	DefaultBackoff = 10 * time.Millisecond
)

// marker is the value stored for every event; only the key carries information.
var marker = []byte{1}

// KVRepository is a sliding-window Repository over a kv.Service. Each event
// is a key "limit_{client}_{unix_millis}" and a window count is a count-only
// range query over those keys.
//
// Two AddReq calls for the same client in the same millisecond write the same
// key, and the second put overwrites the first, so only one is counted.
type KVRepository struct {
	transport    kv.Service
	maxWindow    time.Duration
	clock        clock.Clock
	sleeper      clock.Sleeper
	forwardBound time.Duration
	attempts     int
	backoff      time.Duration
	logger       *zap.Logger
}

// GetLimit counts the events of key in [now-window, now+forward bound).
func (r *KVRepository) GetLimit(ctx context.Context, key string, window time.Duration) (uint32, error) {
	if window < 0 {
		return 0, ErrNegativeWindow
	}

	if window > r.maxWindow {
		return 0, &WindowTooLargeError{Window: window, Max: r.maxWindow}
	}

	now := r.clock.Now()
	start := Key(key, now-window)
	end := Key(key, now+r.forwardBound)

	req := kv.NewGetWithOptions(start, kv.GetOptions{
		RangeEnd:  []byte(end),
		CountOnly: true,
	})

	res, err := kv.Oneshot[*kv.GetResponse](ctx, r.transport, req)
	if err != nil {
		return 0, &StoreError{Op: "get limit", Err: err}
	}

	if res.Count < 0 || res.Count > math.MaxUint32 {
		return 0, &CountOverflowError{Count: res.Count}
	}

	r.logger.Debug("counted requests",
		zap.String("key", key),
		zap.Int64("range_ms", window.Milliseconds()),
		zap.Int64("count", res.Count),
	)

	return uint32(res.Count), nil
}

// AddReq records one event for key, retrying failed writes.
func (r *KVRepository) AddReq(ctx context.Context, key string) error {
	var lastErr error

	for attempt := 1; attempt <= r.attempts; attempt++ {
		if attempt > 1 {
			if err := r.sleeper.Sleep(ctx, r.backoff); err != nil {
				return err
			}
		}

		req := kv.NewPut(Key(key, r.clock.Now()), marker)

		_, err := kv.Oneshot[*kv.PutResponse](ctx, r.transport, req)
		if err == nil {
			return nil
		}

		lastErr = err

		r.logger.Error("failed to add request",
			zap.String("key", key),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	return &StoreError{Op: "add request", Err: lastErr}
}

// MaxWindow returns the longest window GetLimit accepts.
func (r *KVRepository) MaxWindow() time.Duration {
	return r.maxWindow
}

// Compile-time checks.
var (
	_ Repository                         = (*KVRepository)(nil)
	_ Builder[*KVBuilder, *KVRepository] = (*KVBuilder)(nil)
)
