package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"revenue-market/internal/domain"
	"revenue-market/internal/storage"
)

// AssetStore implements storage.AssetStore using PostgreSQL.
type AssetStore struct {
	tx pgx.Tx
}

// Compile-time interface check.
var _ storage.AssetStore = (*AssetStore)(nil)

// NextID allocates the next even asset id.
func (s *AssetStore) NextID(ctx context.Context) (uint64, error) {
	return nextSequence(ctx, s.tx, "asset", 2)
}

// Insert adds a new asset. Returns ErrDuplicateKey if id exists.
func (s *AssetStore) Insert(ctx context.Context, a *domain.Asset) error {
	query := `
		INSERT INTO assets (id, partner, metadata_uri, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.tx.Exec(ctx, query, a.ID, a.Partner, a.MetadataURI, a.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// GetByID retrieves an asset. Returns ErrNotFound if not exists.
func (s *AssetStore) GetByID(ctx context.Context, assetID uint64) (*domain.Asset, error) {
	query := `
		SELECT id, partner, metadata_uri, created_at
		FROM assets
		WHERE id = $1
	`

	var a domain.Asset
	err := s.tx.QueryRow(ctx, query, assetID).Scan(&a.ID, &a.Partner, &a.MetadataURI, &a.CreatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get asset by id: %w", err)
	}
	return &a, nil
}

// RevenueTokenStore implements storage.RevenueTokenStore using PostgreSQL.
type RevenueTokenStore struct {
	tx pgx.Tx
}

// Compile-time interface check.
var _ storage.RevenueTokenStore = (*RevenueTokenStore)(nil)

const tokenColumns = `id, asset_id, price, supply, maturity_date, minted_at`

// Insert adds a new token. Returns ErrDuplicateKey if the token id or asset id is taken.
func (s *RevenueTokenStore) Insert(ctx context.Context, t *domain.RevenueToken) error {
	query := `
		INSERT INTO revenue_tokens (` + tokenColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.tx.Exec(ctx, query, t.ID, t.AssetID, t.Price, t.Supply, t.MaturityDate, t.MintedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert revenue token: %w", err)
	}
	return nil
}

// GetByID retrieves a token. Returns ErrNotFound if not exists.
func (s *RevenueTokenStore) GetByID(ctx context.Context, tokenID uint64) (*domain.RevenueToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM revenue_tokens WHERE id = $1`

	t, err := scanRevenueToken(s.tx.QueryRow(ctx, query, tokenID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get revenue token by id: %w", err)
	}
	return t, nil
}

// GetByAssetID retrieves the token minted for an asset. Returns ErrNotFound if not exists.
func (s *RevenueTokenStore) GetByAssetID(ctx context.Context, assetID uint64) (*domain.RevenueToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM revenue_tokens WHERE asset_id = $1`

	t, err := scanRevenueToken(s.tx.QueryRow(ctx, query, assetID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get revenue token by asset id: %w", err)
	}
	return t, nil
}

// GetAll retrieves all tokens ordered by id ASC.
func (s *RevenueTokenStore) GetAll(ctx context.Context) ([]*domain.RevenueToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM revenue_tokens ORDER BY id ASC`

	rows, err := s.tx.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all revenue tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*domain.RevenueToken
	for rows.Next() {
		t, err := scanRevenueToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan revenue token row: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revenue token rows: %w", err)
	}
	return tokens, nil
}

func scanRevenueToken(row pgx.Row) (*domain.RevenueToken, error) {
	var t domain.RevenueToken
	if err := row.Scan(&t.ID, &t.AssetID, &t.Price, &t.Supply, &t.MaturityDate, &t.MintedAt); err != nil {
		return nil, err
	}
	return &t, nil
}
