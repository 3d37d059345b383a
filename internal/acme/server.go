// Package acme defines the ACME server capability consumed by the HTTP front
// end and the decorators layered on top of it.
package acme

import (
	"context"
	"errors"
)

// ErrNotSupported is returned for ACME flows a server does not implement.
var ErrNotSupported = errors.New("acme: operation not supported")

// Server is the set of ACME operations exposed to clients.
type Server interface {
	GetNonce(ctx context.Context) (string, error)
	CreateAccount(ctx context.Context, req SignedRequest) error
	Finalize(ctx context.Context) error
}

// ServerBuilder constructs a Server, possibly dialing upstream dependencies.
type ServerBuilder interface {
	Build(ctx context.Context) (Server, error)
}

// SignedRequest is a JWS in flattened JSON serialization as sent by ACME clients.
type SignedRequest struct {
	Protected string `json:"protected"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// BuilderFunc adapts a function to ServerBuilder.
type BuilderFunc func(ctx context.Context) (Server, error)

func (f BuilderFunc) Build(ctx context.Context) (Server, error) {
	return f(ctx)
}

type clientKey struct{}

// WithClient returns a context carrying the rate limit key of the calling client.
func WithClient(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, clientKey{}, key)
}

// ClientFromContext returns the client key stored by WithClient, or "" if none.
func ClientFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(clientKey{}).(string); ok {
		return v
	}

	return ""
}
