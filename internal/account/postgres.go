package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
// The accounts table is expected to exist.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL-backed account repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (p *PostgresRepository) GetAccount(ctx context.Context, identifier string) (*Account, error) {
	query := `
		SELECT id, identifier, created_at
		FROM accounts
		WHERE identifier = $1
	`

	var acc Account

	err := p.pool.QueryRow(ctx, query, identifier).Scan(
		&acc.ID,
		&acc.Identifier,
		&acc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("account: get %q: %w", identifier, err)
	}

	return &acc, nil
}

// Ping checks database connectivity.
func (p *PostgresRepository) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Compile-time check.
var _ Repository = (*PostgresRepository)(nil)
