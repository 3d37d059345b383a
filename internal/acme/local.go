package acme

import (
	"context"
	"fmt"

	"github.com/jaevor/go-nanoid"
)

// DefaultNonceLength is the number of characters in a generated nonce.
const DefaultNonceLength = 32

// NonceGenerator generates unique nonces.
type NonceGenerator func() string

// Local is a Server that issues nonces itself and implements no other flows.
type Local struct {
	generateNonce NonceGenerator
}

// NewLocal creates a local server using generator for nonces.
func NewLocal(generator NonceGenerator) *Local {
	return &Local{generateNonce: generator}
}

func (l *Local) GetNonce(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	return l.generateNonce(), nil
}

func (l *Local) CreateAccount(_ context.Context, _ SignedRequest) error {
	return ErrNotSupported
}

func (l *Local) Finalize(_ context.Context) error {
	return ErrNotSupported
}

// LocalBuilder builds Local servers with URL safe nanoid nonces.
type LocalBuilder struct {
	NonceLength int
}

func (b *LocalBuilder) Build(_ context.Context) (Server, error) {
	length := b.NonceLength
	if length == 0 {
		length = DefaultNonceLength
	}

	generator, err := nanoid.Standard(length)
	if err != nil {
		return nil, fmt.Errorf("acme: nonce generator: %w", err)
	}

	return NewLocal(generator), nil
}

// Compile-time checks.
var (
	_ Server        = (*Local)(nil)
	_ ServerBuilder = (*LocalBuilder)(nil)
)
