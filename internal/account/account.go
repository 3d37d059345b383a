// Package account looks up ACME accounts.
package account

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no account matches the identifier.
var ErrNotFound = errors.New("account: not found")

// Account is a registered ACME account.
type Account struct {
	ID         int64
	Identifier string
	CreatedAt  time.Time
}

// Repository defines the interface for account storage.
type Repository interface {
	GetAccount(ctx context.Context, identifier string) (*Account, error)
}
