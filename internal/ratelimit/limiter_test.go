package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/conblem/acmon/internal/clock"
	"github.com/conblem/acmon/internal/kv/memory"
	"github.com/conblem/acmon/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryRepo(t *testing.T, fake *clock.Fake, maxWindow time.Duration) ratelimit.Repository {
	t.Helper()

	repo, err := ratelimit.NewKVBuilder().
		Transport(memory.New(fake)).
		Clock(fake).
		Sleeper(fake).
		MaxWindow(maxWindow).
		Build()
	require.NoError(t, err)

	return repo
}

func TestSlidingWindowLimiter(t *testing.T) {
	t.Run("allows requests under limit", func(t *testing.T) {
		fake := clock.NewFake(testNow)
		limiter := ratelimit.NewSlidingWindowLimiter(newMemoryRepo(t, fake, time.Minute), 5, time.Minute)

		for range 5 {
			decision, err := limiter.Allow(context.Background(), "client1")

			require.NoError(t, err)
			assert.True(t, decision.Allowed)

			fake.Advance(time.Millisecond)
		}
	})

	t.Run("denies requests over limit", func(t *testing.T) {
		fake := clock.NewFake(testNow)
		limiter := ratelimit.NewSlidingWindowLimiter(newMemoryRepo(t, fake, time.Minute), 3, time.Minute)

		// First 3 should be allowed
		for range 3 {
			decision, err := limiter.Allow(context.Background(), "client1")

			require.NoError(t, err)
			assert.True(t, decision.Allowed)

			fake.Advance(time.Millisecond)
		}

		// 4th should be denied
		decision, err := limiter.Allow(context.Background(), "client1")

		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, uint32(3), decision.Count)
		assert.Equal(t, uint32(3), decision.Max)
	})

	t.Run("tracks clients independently", func(t *testing.T) {
		fake := clock.NewFake(testNow)
		limiter := ratelimit.NewSlidingWindowLimiter(newMemoryRepo(t, fake, time.Minute), 2, time.Minute)

		// Client 1 uses their limit
		for range 2 {
			decision, _ := limiter.Allow(context.Background(), "client1")
			assert.True(t, decision.Allowed)

			fake.Advance(time.Millisecond)
		}

		decision, _ := limiter.Allow(context.Background(), "client1")
		assert.False(t, decision.Allowed, "client1 should be rate limited")

		// Client 2 should still be allowed
		decision, err := limiter.Allow(context.Background(), "client2")

		require.NoError(t, err)
		assert.True(t, decision.Allowed, "client2 should still be allowed")
	})

	t.Run("allows requests after window expires", func(t *testing.T) {
		fake := clock.NewFake(testNow)
		limiter := ratelimit.NewSlidingWindowLimiter(newMemoryRepo(t, fake, time.Minute), 2, 50*time.Millisecond)

		// Use up the limit
		for range 2 {
			decision, _ := limiter.Allow(context.Background(), "client1")
			assert.True(t, decision.Allowed)

			fake.Advance(time.Millisecond)
		}

		decision, _ := limiter.Allow(context.Background(), "client1")
		assert.False(t, decision.Allowed, "should be rate limited")

		// Move past the window
		fake.Advance(60 * time.Millisecond)

		// Should be allowed again
		decision, err := limiter.Allow(context.Background(), "client1")

		require.NoError(t, err)
		assert.True(t, decision.Allowed, "should be allowed after window expires")
	})

	t.Run("window above the repository maximum is a policy violation", func(t *testing.T) {
		fake := clock.NewFake(testNow)
		limiter := ratelimit.NewSlidingWindowLimiter(newMemoryRepo(t, fake, time.Minute), 2, time.Hour)

		_, err := limiter.Allow(context.Background(), "client1")

		assert.True(t, ratelimit.IsPolicyViolation(err))
	})
}

func TestDecision_RetryAfter(t *testing.T) {
	assert.Equal(t, int64(60), ratelimit.Decision{Window: time.Minute}.RetryAfter())
	assert.Equal(t, int64(2), ratelimit.Decision{Window: 1001 * time.Millisecond}.RetryAfter())
	assert.Equal(t, int64(0), ratelimit.Decision{}.RetryAfter())
}

func TestPolicyLimiter(t *testing.T) {
	policy := &ratelimit.Policy{
		Limits: map[ratelimit.Scope][]ratelimit.LimitConfig{
			ratelimit.ScopeGlobal:  {{Window: time.Minute, Max: 3}},
			ratelimit.ScopeAccount: {{Window: time.Minute, Max: 1}},
		},
	}

	t.Run("denies on the first rejecting scope and names it", func(t *testing.T) {
		fake := clock.NewFake(testNow)
		limiter := ratelimit.NewPolicyLimiter(newMemoryRepo(t, fake, time.Minute), policy)

		decision, err := limiter.Allow(context.Background(), "client", ratelimit.ScopeGlobal, ratelimit.ScopeAccount)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)

		fake.Advance(time.Millisecond)

		decision, err = limiter.Allow(context.Background(), "client", ratelimit.ScopeGlobal, ratelimit.ScopeAccount)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, ratelimit.ScopeAccount, decision.Scope)
		assert.Equal(t, uint32(1), decision.Max)
	})

	t.Run("rejected requests do not consume other scopes", func(t *testing.T) {
		fake := clock.NewFake(testNow)
		limiter := ratelimit.NewPolicyLimiter(newMemoryRepo(t, fake, time.Minute), policy)
		account := limiter.Scoped(ratelimit.ScopeGlobal, ratelimit.ScopeAccount)
		global := limiter.Scoped(ratelimit.ScopeGlobal)

		for range 3 {
			_, err := account.Allow(context.Background(), "client")
			require.NoError(t, err)

			fake.Advance(time.Millisecond)
		}

		// one admitted account request, two rejected: two global slots remain
		for range 2 {
			decision, err := global.Allow(context.Background(), "client")
			require.NoError(t, err)
			assert.True(t, decision.Allowed)

			fake.Advance(time.Millisecond)
		}

		decision, err := global.Allow(context.Background(), "client")
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
	})

	t.Run("scopes without limits allow everything", func(t *testing.T) {
		fake := clock.NewFake(testNow)
		limiter := ratelimit.NewPolicyLimiter(newMemoryRepo(t, fake, time.Minute), policy)

		decision, err := limiter.Allow(context.Background(), "client", ratelimit.ScopeFinalize)

		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	})
}

func TestPolicy(t *testing.T) {
	t.Run("default policy validates against its own max window", func(t *testing.T) {
		policy := ratelimit.DefaultPolicy()

		assert.Equal(t, 3*time.Hour, policy.MaxWindow())
		assert.NoError(t, policy.Validate(policy.MaxWindow()))
	})

	t.Run("windows above the repository maximum are rejected", func(t *testing.T) {
		err := ratelimit.DefaultPolicy().Validate(time.Hour)

		assert.True(t, ratelimit.IsPolicyViolation(err))
	})

	t.Run("non positive windows are rejected", func(t *testing.T) {
		policy := &ratelimit.Policy{Limits: map[ratelimit.Scope][]ratelimit.LimitConfig{
			ratelimit.ScopeNonce: {{Window: 0, Max: 1}},
		}}

		assert.Error(t, policy.Validate(time.Hour))
	})
}

func TestKey(t *testing.T) {
	assert.Equal(t, "limit_abc_1717171717171", ratelimit.Key("abc", testNow))
}
