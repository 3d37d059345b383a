package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Repository counts and records rate-limited events per client key.
type Repository interface {
	// GetLimit returns how many events for key were recorded within window.
	GetLimit(ctx context.Context, key string, window time.Duration) (uint32, error)
	// AddReq records one event for key at the current time.
	AddReq(ctx context.Context, key string) error
}

// Builder is the construction contract every Repository backend implements.
// B is the concrete builder, returned from setters for chaining.
type Builder[B any, R Repository] interface {
	MaxWindow(d time.Duration) B
	Build() (R, error)
}

// Key is the stored key for one event of client at t. Keys of one client
// sort by time because every current unix millisecond value has 13 digits.
func Key(client string, t time.Duration) string {
	return fmt.Sprintf("limit_%s_%d", client, t.Milliseconds())
}
