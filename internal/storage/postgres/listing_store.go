package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"revenue-market/internal/domain"
	"revenue-market/internal/storage"
)

// ListingStore implements storage.ListingStore using PostgreSQL.
type ListingStore struct {
	tx pgx.Tx
}

// Compile-time interface check.
var _ storage.ListingStore = (*ListingStore)(nil)

const listingColumns = `
	id, token_id, asset_id, seller,
	amount_at_creation, amount_remaining, amount_sold, price_per_token, buyer_pays_fee,
	proceeds_pending, fees_pending, payments_received,
	status, expires_at, created_at, closed_at`

// NextID allocates the next listing id.
func (s *ListingStore) NextID(ctx context.Context) (uint64, error) {
	return nextSequence(ctx, s.tx, "listing", 1)
}

// Insert adds a new listing. Returns ErrDuplicateKey if id exists.
func (s *ListingStore) Insert(ctx context.Context, l *domain.Listing) error {
	query := `
		INSERT INTO listings (` + listingColumns + `)
		VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9,
			$10, $11, $12,
			$13, $14, $15, $16
		)
	`

	_, err := s.tx.Exec(ctx, query,
		l.ID, l.TokenID, l.AssetID, l.Seller,
		l.AmountAtCreation, l.AmountRemaining, l.AmountSold, l.PricePerToken, l.BuyerPaysFee,
		l.ProceedsPending, l.FeesPending, l.PaymentsReceived,
		string(l.Status), l.ExpiresAt, l.CreatedAt, l.ClosedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// GetByID retrieves and row-locks a listing. Returns ErrNotFound if not exists.
func (s *ListingStore) GetByID(ctx context.Context, listingID uint64) (*domain.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1 FOR UPDATE`

	l, err := scanListing(s.tx.QueryRow(ctx, query, listingID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get listing by id: %w", err)
	}
	return l, nil
}

// Update replaces the mutable fields of a listing. Returns ErrNotFound if not exists.
func (s *ListingStore) Update(ctx context.Context, l *domain.Listing) error {
	query := `
		UPDATE listings SET
			amount_remaining = $2, amount_sold = $3,
			proceeds_pending = $4, fees_pending = $5, payments_received = $6,
			status = $7, expires_at = $8, closed_at = $9
		WHERE id = $1
	`

	tag, err := s.tx.Exec(ctx, query,
		l.ID,
		l.AmountRemaining, l.AmountSold,
		l.ProceedsPending, l.FeesPending, l.PaymentsReceived,
		string(l.Status), l.ExpiresAt, l.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByStatus retrieves listings in a status ordered by id ASC.
func (s *ListingStore) GetByStatus(ctx context.Context, status domain.ListingStatus) ([]*domain.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE status = $1 ORDER BY id ASC`

	rows, err := s.tx.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("get listings by status: %w", err)
	}
	defer rows.Close()

	return scanListings(rows)
}

// GetBySeller retrieves a seller's listings ordered by id ASC.
func (s *ListingStore) GetBySeller(ctx context.Context, seller string) ([]*domain.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE seller = $1 ORDER BY id ASC`

	rows, err := s.tx.Query(ctx, query, seller)
	if err != nil {
		return nil, fmt.Errorf("get listings by seller: %w", err)
	}
	defer rows.Close()

	return scanListings(rows)
}

// scanListing scans a single row into a Listing.
func scanListing(row pgx.Row) (*domain.Listing, error) {
	var l domain.Listing
	var status string

	err := row.Scan(
		&l.ID, &l.TokenID, &l.AssetID, &l.Seller,
		&l.AmountAtCreation, &l.AmountRemaining, &l.AmountSold, &l.PricePerToken, &l.BuyerPaysFee,
		&l.ProceedsPending, &l.FeesPending, &l.PaymentsReceived,
		&status, &l.ExpiresAt, &l.CreatedAt, &l.ClosedAt,
	)
	if err != nil {
		return nil, err
	}

	l.Status = domain.ListingStatus(status)
	return &l, nil
}

// scanListings scans multiple rows into a slice of Listing.
func scanListings(rows pgx.Rows) ([]*domain.Listing, error) {
	var listings []*domain.Listing

	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing row: %w", err)
		}
		listings = append(listings, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listing rows: %w", err)
	}
	return listings, nil
}

// EscrowStore implements storage.EscrowStore using PostgreSQL.
type EscrowStore struct {
	tx pgx.Tx
}

// Compile-time interface check.
var _ storage.EscrowStore = (*EscrowStore)(nil)

const escrowColumns = `
	listing_id, buyer, tokens_owed, payment_owed,
	tokens_purchased, payment_made, updated_at, claimed_at`

// Get retrieves and row-locks a position. Returns ErrNotFound if not exists.
func (s *EscrowStore) Get(ctx context.Context, listingID uint64, buyer string) (*domain.EscrowPosition, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrow_positions WHERE listing_id = $1 AND buyer = $2 FOR UPDATE`

	p, err := scanEscrow(s.tx.QueryRow(ctx, query, listingID, buyer))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get escrow position: %w", err)
	}
	return p, nil
}

// Put inserts or replaces a position.
func (s *EscrowStore) Put(ctx context.Context, p *domain.EscrowPosition) error {
	query := `
		INSERT INTO escrow_positions (` + escrowColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (listing_id, buyer) DO UPDATE SET
			tokens_owed = EXCLUDED.tokens_owed,
			payment_owed = EXCLUDED.payment_owed,
			tokens_purchased = EXCLUDED.tokens_purchased,
			payment_made = EXCLUDED.payment_made,
			updated_at = EXCLUDED.updated_at,
			claimed_at = EXCLUDED.claimed_at
	`

	_, err := s.tx.Exec(ctx, query,
		p.ListingID, p.Buyer, p.TokensOwed, p.PaymentOwed,
		p.TokensPurchased, p.PaymentMade, p.UpdatedAt, p.ClaimedAt,
	)
	if err != nil {
		return fmt.Errorf("put escrow position: %w", err)
	}
	return nil
}

// GetByListing retrieves all positions of a listing ordered by buyer ASC.
func (s *EscrowStore) GetByListing(ctx context.Context, listingID uint64) ([]*domain.EscrowPosition, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrow_positions WHERE listing_id = $1 ORDER BY buyer ASC`

	rows, err := s.tx.Query(ctx, query, listingID)
	if err != nil {
		return nil, fmt.Errorf("get escrow positions by listing: %w", err)
	}
	defer rows.Close()

	var positions []*domain.EscrowPosition
	for rows.Next() {
		p, err := scanEscrow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan escrow position row: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate escrow position rows: %w", err)
	}
	return positions, nil
}

func scanEscrow(row pgx.Row) (*domain.EscrowPosition, error) {
	var p domain.EscrowPosition
	err := row.Scan(
		&p.ListingID, &p.Buyer, &p.TokensOwed, &p.PaymentOwed,
		&p.TokensPurchased, &p.PaymentMade, &p.UpdatedAt, &p.ClaimedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
