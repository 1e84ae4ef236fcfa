package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Transactor opens the transactions that pair a credit claim with the
// balance update and the onboarding inserts.
type Transactor struct {
	pool Pool
	opts pgx.TxOptions
}

// NewTransactor returns a Transactor that runs at READ COMMITTED. The
// conditional UPDATEs in the repositories carry the row-level guards.
func NewTransactor(pool Pool) *Transactor {
	return &Transactor{
		pool: pool,
		opts: pgx.TxOptions{IsoLevel: pgx.ReadCommitted},
	}
}

// Begin starts a transaction with the transactor's options.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := t.pool.BeginTx(ctx, t.opts)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return tx, nil
}
