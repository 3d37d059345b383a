package acme

import (
	"context"
	"fmt"
)

// Proxy forwards every operation to an inner Server.
type Proxy struct {
	inner Server
}

// NewProxy wraps inner.
func NewProxy(inner Server) *Proxy {
	return &Proxy{inner: inner}
}

func (p *Proxy) GetNonce(ctx context.Context) (string, error) {
	return p.inner.GetNonce(ctx)
}

func (p *Proxy) CreateAccount(ctx context.Context, req SignedRequest) error {
	return p.inner.CreateAccount(ctx, req)
}

func (p *Proxy) Finalize(ctx context.Context) error {
	return p.inner.Finalize(ctx)
}

// ProxyBuilder builds a Proxy around the server produced by an inner builder.
type ProxyBuilder struct {
	inner ServerBuilder
}

// NewProxyBuilder wraps inner.
func NewProxyBuilder(inner ServerBuilder) *ProxyBuilder {
	return &ProxyBuilder{inner: inner}
}

// Inner returns the wrapped builder so callers can configure it.
func (b *ProxyBuilder) Inner() ServerBuilder {
	return b.inner
}

func (b *ProxyBuilder) Build(ctx context.Context) (Server, error) {
	inner, err := b.inner.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("acme: build proxied server: %w", err)
	}

	return NewProxy(inner), nil
}

// Compile-time checks.
var (
	_ Server        = (*Proxy)(nil)
	_ ServerBuilder = (*ProxyBuilder)(nil)
)
