package clickhouse

import (
	"context"
	"fmt"

	"revenue-market/internal/domain"
	"revenue-market/internal/storage"
)

// DistributionStore implements storage.DistributionHistoryStore using ClickHouse.
type DistributionStore struct {
	conn *Conn
}

// NewDistributionStore creates a new DistributionStore.
func NewDistributionStore(conn *Conn) *DistributionStore {
	return &DistributionStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DistributionHistoryStore = (*DistributionStore)(nil)

const distributionColumns = `
	event_id, asset_id, token_id, partner,
	total_revenue, investor_portion, partner_portion, protocol_fee, net_to_investors,
	external_tokens, total_supply, distributed_at`

// Insert adds a distribution. Returns ErrDuplicateKey if event_id exists.
func (s *DistributionStore) Insert(ctx context.Context, d *domain.Distribution) error {
	if d == nil || d.EventID == "" {
		return storage.ErrInvalidInput
	}

	// ReplacingMergeTree would collapse a replay, but callers expect append-only semantics
	exists, err := s.exists(ctx, d.EventID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	query := `
		INSERT INTO earnings_distributions (` + distributionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err = s.conn.Exec(ctx, query,
		d.EventID, d.AssetID, d.TokenID, d.Partner,
		d.TotalRevenue, d.InvestorPortion, d.PartnerPortion, d.ProtocolFee, d.NetToInvestors,
		d.ExternalTokens, d.TotalSupply, d.DistributedAt,
	)
	if err != nil {
		return fmt.Errorf("insert earnings distribution: %w", err)
	}
	return nil
}

// GetByAssetID retrieves an asset's distributions ordered by distributed_at ASC.
func (s *DistributionStore) GetByAssetID(ctx context.Context, assetID uint64) ([]*domain.Distribution, error) {
	query := `
		SELECT ` + distributionColumns + `
		FROM earnings_distributions FINAL
		WHERE asset_id = ?
		ORDER BY distributed_at ASC, event_id ASC
	`

	rows, err := s.conn.Query(ctx, query, assetID)
	if err != nil {
		return nil, fmt.Errorf("query by asset: %w", err)
	}
	defer rows.Close()

	return scanDistributions(rows)
}

// GetByTimeRange retrieves distributions within [start, end] (inclusive).
func (s *DistributionStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Distribution, error) {
	query := `
		SELECT ` + distributionColumns + `
		FROM earnings_distributions FINAL
		WHERE distributed_at >= ? AND distributed_at <= ?
		ORDER BY distributed_at ASC, event_id ASC
	`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanDistributions(rows)
}

// exists checks if a distribution with the given event id exists.
func (s *DistributionStore) exists(ctx context.Context, eventID string) (bool, error) {
	query := `SELECT count(*) FROM earnings_distributions FINAL WHERE event_id = ?`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, eventID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanDistributions scans multiple rows into a slice.
func scanDistributions(rows chRows) ([]*domain.Distribution, error) {
	var result []*domain.Distribution

	for rows.Next() {
		var d domain.Distribution
		err := rows.Scan(
			&d.EventID, &d.AssetID, &d.TokenID, &d.Partner,
			&d.TotalRevenue, &d.InvestorPortion, &d.PartnerPortion, &d.ProtocolFee, &d.NetToInvestors,
			&d.ExternalTokens, &d.TotalSupply, &d.DistributedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan distribution row: %w", err)
		}
		result = append(result, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate distribution rows: %w", err)
	}
	return result, nil
}
