// Package middleware provides kv.Service decorators. Each constructor returns
// a kv.Middleware so decorators compose with kv.Chain.
package middleware

import (
	"context"
	"time"

	"github.com/conblem/acmon/internal/kv"
)

type timeout struct {
	next kv.Service
	d    time.Duration
}

// Timeout bounds every Call to d. Ready is not bounded.
func Timeout(d time.Duration) kv.Middleware {
	return func(next kv.Service) kv.Service {
		return &timeout{next: next, d: d}
	}
}

func (t *timeout) Ready(ctx context.Context) error {
	return t.next.Ready(ctx)
}

func (t *timeout) Call(ctx context.Context, req kv.Request) (kv.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()

	return t.next.Call(ctx, req)
}
