package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"revenue-market/internal/storage"
)

// BalanceStore implements storage.BalanceStore using PostgreSQL.
type BalanceStore struct {
	tx pgx.Tx
}

// Compile-time interface check.
var _ storage.BalanceStore = (*BalanceStore)(nil)

// BalanceOf returns the holder's balance, zero if none.
func (s *BalanceStore) BalanceOf(ctx context.Context, holder string, tokenID uint64) (uint64, error) {
	query := `SELECT balance FROM token_balances WHERE holder = $1 AND token_id = $2`

	var b uint64
	if err := s.tx.QueryRow(ctx, query, holder, tokenID).Scan(&b); err != nil {
		if isNotFoundError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// Mint credits amount new tokens to holder.
func (s *BalanceStore) Mint(ctx context.Context, holder string, tokenID, amount uint64) error {
	if holder == "" {
		return storage.ErrInvalidInput
	}
	return s.credit(ctx, holder, tokenID, amount)
}

// Transfer moves amount from one holder to another.
// Returns ErrInsufficientBalance if from holds less than amount.
func (s *BalanceStore) Transfer(ctx context.Context, from, to string, tokenID, amount uint64) error {
	if from == "" || to == "" {
		return storage.ErrInvalidInput
	}
	if amount == 0 || from == to {
		return nil
	}

	query := `
		UPDATE token_balances
		SET balance = balance - $3
		WHERE holder = $1 AND token_id = $2 AND balance >= $3
	`

	tag, err := s.tx.Exec(ctx, query, from, tokenID, amount)
	if err != nil {
		return fmt.Errorf("debit balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrInsufficientBalance
	}

	return s.credit(ctx, to, tokenID, amount)
}

func (s *BalanceStore) credit(ctx context.Context, holder string, tokenID, amount uint64) error {
	query := `
		INSERT INTO token_balances (holder, token_id, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (holder, token_id) DO UPDATE SET
			balance = token_balances.balance + EXCLUDED.balance
	`

	if _, err := s.tx.Exec(ctx, query, holder, tokenID, amount); err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}
	return nil
}

// Holders returns every holder with a positive balance of tokenID.
func (s *BalanceStore) Holders(ctx context.Context, tokenID uint64) (map[string]uint64, error) {
	query := `SELECT holder, balance FROM token_balances WHERE token_id = $1 AND balance > 0`

	rows, err := s.tx.Query(ctx, query, tokenID)
	if err != nil {
		return nil, fmt.Errorf("get holders: %w", err)
	}
	defer rows.Close()

	result := make(map[string]uint64)
	for rows.Next() {
		var holder string
		var balance uint64
		if err := rows.Scan(&holder, &balance); err != nil {
			return nil, fmt.Errorf("scan holder row: %w", err)
		}
		result[holder] = balance
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holder rows: %w", err)
	}
	return result, nil
}
