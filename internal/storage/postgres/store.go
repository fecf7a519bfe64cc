package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"revenue-market/internal/storage"
)

// Store implements storage.Store on a PostgreSQL transaction per unit of work.
// Point reads inside a unit of work take row locks (SELECT ... FOR UPDATE), so
// concurrent writers on the same rows are serialized by the database. Rows that
// may not exist yet (accounts, asset earnings) are guarded by a transaction
// advisory lock on their key first, so the first credit is serialized too.
type Store struct {
	pool *Pool
}

// NewStore creates a new Store.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)

// Atomic runs fn inside a database transaction, committing only if fn succeeds.
func (s *Store) Atomic(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// pgTx binds the per-entity stores to one pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Assets() storage.AssetStore { return &AssetStore{tx: t.tx} }
func (t *pgTx) Tokens() storage.RevenueTokenStore { return &RevenueTokenStore{tx: t.tx} }
func (t *pgTx) Listings() storage.ListingStore { return &ListingStore{tx: t.tx} }
func (t *pgTx) Escrows() storage.EscrowStore { return &EscrowStore{tx: t.tx} }
func (t *pgTx) Earnings() storage.EarningsStore { return &EarningsStore{tx: t.tx} }
func (t *pgTx) Accounts() storage.AccountStore { return &AccountStore{tx: t.tx} }
func (t *pgTx) Balances() storage.BalanceStore { return &BalanceStore{tx: t.tx} }
func (t *pgTx) Events() storage.EventStore { return &EventStore{tx: t.tx} }

var _ storage.Tx = (*pgTx)(nil)

// nextSequence reserves step values from a named ledger sequence and returns
// the first one. The row lock makes allocation gapless across rollbacks.
func nextSequence(ctx context.Context, tx pgx.Tx, name string, step uint64) (uint64, error) {
	query := `
		UPDATE ledger_sequences
		SET next_value = next_value + $2
		WHERE name = $1
		RETURNING next_value - $2
	`

	var v uint64
	if err := tx.QueryRow(ctx, query, name, step).Scan(&v); err != nil {
		if isNotFoundError(err) {
			return 0, fmt.Errorf("sequence %s not initialized: %w", name, storage.ErrNotFound)
		}
		return 0, fmt.Errorf("next %s sequence: %w", name, err)
	}
	return v, nil
}

// lockKey takes a transaction-scoped advisory lock on kind/key. It blocks while
// another transaction holds the same lock and is released at commit or rollback.
func lockKey(ctx context.Context, tx pgx.Tx, kind, key string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, kind+":"+key); err != nil {
		return fmt.Errorf("lock %s %s: %w", kind, key, err)
	}
	return nil
}
