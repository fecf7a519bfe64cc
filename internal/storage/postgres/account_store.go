package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"revenue-market/internal/domain"
	"revenue-market/internal/storage"
)

// EarningsStore implements storage.EarningsStore using PostgreSQL.
type EarningsStore struct {
	tx pgx.Tx
}

// Compile-time interface check.
var _ storage.EarningsStore = (*EarningsStore)(nil)

// Get locks the asset's aggregate for the rest of the transaction and reads it.
// Returns ErrNotFound if no distribution happened; the lock is held either way.
func (s *EarningsStore) Get(ctx context.Context, assetID uint64) (*domain.AssetEarnings, error) {
	if err := lockKey(ctx, s.tx, "asset_earnings", strconv.FormatUint(assetID, 10)); err != nil {
		return nil, err
	}

	query := `
		SELECT asset_id, total_earnings, total_revenue, distribution_count,
			first_distribution_at, last_distribution_at
		FROM asset_earnings
		WHERE asset_id = $1
		FOR UPDATE
	`

	var e domain.AssetEarnings
	err := s.tx.QueryRow(ctx, query, assetID).Scan(
		&e.AssetID, &e.TotalEarnings, &e.TotalRevenue, &e.DistributionCount,
		&e.FirstDistributionAt, &e.LastDistributionAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get asset earnings: %w", err)
	}
	return &e, nil
}

// Put inserts or replaces an aggregate.
func (s *EarningsStore) Put(ctx context.Context, e *domain.AssetEarnings) error {
	query := `
		INSERT INTO asset_earnings (
			asset_id, total_earnings, total_revenue, distribution_count,
			first_distribution_at, last_distribution_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (asset_id) DO UPDATE SET
			total_earnings = EXCLUDED.total_earnings,
			total_revenue = EXCLUDED.total_revenue,
			distribution_count = EXCLUDED.distribution_count,
			first_distribution_at = EXCLUDED.first_distribution_at,
			last_distribution_at = EXCLUDED.last_distribution_at
	`

	_, err := s.tx.Exec(ctx, query,
		e.AssetID, e.TotalEarnings, e.TotalRevenue, e.DistributionCount,
		e.FirstDistributionAt, e.LastDistributionAt,
	)
	if err != nil {
		return fmt.Errorf("put asset earnings: %w", err)
	}
	return nil
}

// AccountStore implements storage.AccountStore using PostgreSQL.
type AccountStore struct {
	tx pgx.Tx
}

// Compile-time interface check.
var _ storage.AccountStore = (*AccountStore)(nil)

// Get locks the account for the rest of the transaction and reads it.
// Returns ErrNotFound if the account has no row yet; the lock is held either way.
func (s *AccountStore) Get(ctx context.Context, accountID string) (*domain.CollateralPosition, error) {
	if err := lockKey(ctx, s.tx, "account", accountID); err != nil {
		return nil, err
	}

	query := `
		SELECT account_id, required_collateral, locked_collateral, pending_withdrawal, updated_at
		FROM collateral_positions
		WHERE account_id = $1
		FOR UPDATE
	`

	var p domain.CollateralPosition
	err := s.tx.QueryRow(ctx, query, accountID).Scan(
		&p.AccountID, &p.RequiredCollateral, &p.LockedCollateral, &p.PendingWithdrawal, &p.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get collateral position: %w", err)
	}
	return &p, nil
}

// Put inserts or replaces a position.
func (s *AccountStore) Put(ctx context.Context, p *domain.CollateralPosition) error {
	query := `
		INSERT INTO collateral_positions (
			account_id, required_collateral, locked_collateral, pending_withdrawal, updated_at
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_id) DO UPDATE SET
			required_collateral = EXCLUDED.required_collateral,
			locked_collateral = EXCLUDED.locked_collateral,
			pending_withdrawal = EXCLUDED.pending_withdrawal,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.tx.Exec(ctx, query,
		p.AccountID, p.RequiredCollateral, p.LockedCollateral, p.PendingWithdrawal, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put collateral position: %w", err)
	}
	return nil
}
