package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccountResolver implements contracts.AccountResolver for the
// single-tenant deployment: all alerts trade against the account owned
// by the configured owner email.
type AccountResolver struct {
	pool       *pgxpool.Pool
	ownerEmail string
}

// NewAccountResolver creates a new account resolver
func NewAccountResolver(pool *pgxpool.Pool, ownerEmail string) *AccountResolver {
	return &AccountResolver{pool: pool, ownerEmail: ownerEmail}
}

// Resolve returns the account id for the owner email.
// pgx.ErrNoRows propagates so the risk gate can report the missing account.
func (r *AccountResolver) Resolve(ctx context.Context) (string, error) {
	query := `SELECT id FROM accounts WHERE owner_email = $1`

	var id string
	err := r.pool.QueryRow(ctx, query, r.ownerEmail).Scan(&id)
	if err == pgx.ErrNoRows {
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("resolve account for %s: %w", r.ownerEmail, err)
	}
	return id, nil
}
