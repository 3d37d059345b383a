package ratelimit

import (
	"time"

	"github.com/conblem/acmon/internal/clock"
	"github.com/conblem/acmon/internal/kv"
	"go.uber.org/zap"
)

// KVBuilder configures a KVRepository. The zero value has no transport, no
// clock and a zero maximum window, so Build fails until both are attached.
type KVBuilder struct {
	transport    kv.Service
	maxWindow    time.Duration
	clock        clock.Clock
	sleeper      clock.Sleeper
	forwardBound *time.Duration
	attempts     int
	backoff      *time.Duration
	logger       *zap.Logger
}

// NewKVBuilder returns an empty builder.
func NewKVBuilder() *KVBuilder {
	return &KVBuilder{}
}

// Transport sets the store the repository talks to.
func (b *KVBuilder) Transport(svc kv.Service) *KVBuilder {
	b.transport = svc

	return b
}

// Clock sets the time source.
func (b *KVBuilder) Clock(c clock.Clock) *KVBuilder {
	b.clock = c

	return b
}

// MaxWindow sets the longest window GetLimit accepts.
func (b *KVBuilder) MaxWindow(d time.Duration) *KVBuilder {
	b.maxWindow = d

	return b
}

// Sleeper sets how AddReq waits between attempts. Defaults to clock.System.
func (b *KVBuilder) Sleeper(s clock.Sleeper) *KVBuilder {
	b.sleeper = s

	return b
}

// ForwardBound overrides DefaultForwardBound.
func (b *KVBuilder) ForwardBound(d time.Duration) *KVBuilder {
	b.forwardBound = &d

	return b
}

// Attempts overrides DefaultAttempts. Values below one are ignored.
func (b *KVBuilder) Attempts(n int) *KVBuilder {
	b.attempts = n

	return b
}

// Backoff overrides DefaultBackoff.
func (b *KVBuilder) Backoff(d time.Duration) *KVBuilder {
	b.backoff = &d

	return b
}

// Logger sets the logger. Defaults to a no-op logger.
func (b *KVBuilder) Logger(l *zap.Logger) *KVBuilder {
	b.logger = l

	return b
}

// Build validates the configuration. A missing transport is reported before a missing clock.
func (b *KVBuilder) Build() (*KVRepository, error) {
	if b.transport == nil {
		return nil, ErrTransportNotSet
	}

	if b.clock == nil {
		return nil, ErrClockNotSet
	}

	repo := &KVRepository{
		transport:    b.transport,
		maxWindow:    b.maxWindow,
		clock:        b.clock,
		sleeper:      b.sleeper,
		forwardBound: DefaultForwardBound,
		attempts:     DefaultAttempts,
		backoff:      DefaultBackoff,
		logger:       b.logger,
	}

	if repo.sleeper == nil {
		repo.sleeper = clock.System{}
	}

	if b.forwardBound != nil {
		repo.forwardBound = *b.forwardBound
	}

	if b.attempts > 0 {
		repo.attempts = b.attempts
	}

	if b.backoff != nil {
		repo.backoff = *b.backoff
	}

	if repo.logger == nil {
		repo.logger = zap.NewNop()
	}

	return repo, nil
}
