package storage

import (
	"context"

	"revenue-market/internal/domain"
)

// Store is the ledger's persistence root. All ledger state changes happen
// inside Atomic: either every write made through tx is committed, or none is.
type Store interface {
	// Atomic runs fn in a single unit of work. If fn returns an error, all of
	// its writes are discarded and the error is returned unchanged.
	Atomic(ctx context.Context, fn func(tx Tx) error) error
}

// Tx gives access to the individual stores within one unit of work.
type Tx interface {
	Assets() AssetStore
	Tokens() RevenueTokenStore
	Listings() ListingStore
	Escrows() EscrowStore
	Earnings() EarningsStore
	Accounts() AccountStore
	Balances() BalanceStore
	Events() EventStore
}

// AssetStore provides access to registered assets.
type AssetStore interface {
	// NextID allocates the next asset id. Ids are even and strictly increasing.
	NextID(ctx context.Context) (uint64, error)

	// Insert adds a new asset. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, a *domain.Asset) error

	// GetByID retrieves an asset. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, assetID uint64) (*domain.Asset, error)
}

// RevenueTokenStore provides access to minted revenue tokens.
type RevenueTokenStore interface {
	// Insert adds a new token. Returns ErrDuplicateKey if the token id or asset id is taken.
	Insert(ctx context.Context, t *domain.RevenueToken) error

	// GetByID retrieves a token. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tokenID uint64) (*domain.RevenueToken, error)

	// GetByAssetID retrieves the token minted for an asset. Returns ErrNotFound if not exists.
	GetByAssetID(ctx context.Context, assetID uint64) (*domain.RevenueToken, error)

	// GetAll retrieves all tokens ordered by id ASC.
	GetAll(ctx context.Context) ([]*domain.RevenueToken, error)
}

// ListingStore provides access to marketplace listings.
type ListingStore interface {
	// NextID allocates the next listing id.
	NextID(ctx context.Context) (uint64, error)

	// Insert adds a new listing. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, l *domain.Listing) error

	// GetByID retrieves a listing for update. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, listingID uint64) (*domain.Listing, error)

	// Update replaces a listing. Returns ErrNotFound if not exists.
	Update(ctx context.Context, l *domain.Listing) error

	// GetByStatus retrieves listings in a status ordered by id ASC.
	GetByStatus(ctx context.Context, status domain.ListingStatus) ([]*domain.Listing, error)

	// GetBySeller retrieves a seller's listings ordered by id ASC.
	GetBySeller(ctx context.Context, seller string) ([]*domain.Listing, error)
}

// EscrowStore provides access to per-buyer escrow positions.
type EscrowStore interface {
	// Get retrieves a position for update. Returns ErrNotFound if not exists.
	Get(ctx context.Context, listingID uint64, buyer string) (*domain.EscrowPosition, error)

	// Put inserts or replaces a position.
	Put(ctx context.Context, p *domain.EscrowPosition) error

	// GetByListing retrieves all positions of a listing ordered by buyer ASC.
	GetByListing(ctx context.Context, listingID uint64) ([]*domain.EscrowPosition, error)
}

// EarningsStore provides access to per-asset earnings aggregates.
type EarningsStore interface {
	// Get retrieves an aggregate for update. Returns ErrNotFound if no distribution happened.
	Get(ctx context.Context, assetID uint64) (*domain.AssetEarnings, error)

	// Put inserts or replaces an aggregate.
	Put(ctx context.Context, e *domain.AssetEarnings) error
}

// AccountStore provides access to collateral positions (partners and treasury).
type AccountStore interface {
	// Get retrieves a position for update. Returns ErrNotFound if not exists.
	Get(ctx context.Context, accountID string) (*domain.CollateralPosition, error)

	// Put inserts or replaces a position.
	Put(ctx context.Context, p *domain.CollateralPosition) error
}

// BalanceStore is the token custody ledger: who holds how many of each token.
type BalanceStore interface {
	// BalanceOf returns the holder's balance, zero if none.
	BalanceOf(ctx context.Context, holder string, tokenID uint64) (uint64, error)

	// Mint credits amount new tokens to holder.
	Mint(ctx context.Context, holder string, tokenID, amount uint64) error

	// Transfer moves amount from one holder to another.
	// Returns ErrInsufficientBalance if from holds less than amount.
	Transfer(ctx context.Context, from, to string, tokenID, amount uint64) error

	// Holders returns every holder with a positive balance of tokenID.
	Holders(ctx context.Context, tokenID uint64) (map[string]uint64, error)
}

// EventStore is the ordered, append-only ledger event log.
type EventStore interface {
	// Append assigns Seq and ID to e and appends it to the log.
	Append(ctx context.Context, e *domain.Event) error

	// GetAfter retrieves up to limit events with Seq > afterSeq ordered by Seq ASC.
	GetAfter(ctx context.Context, afterSeq uint64, limit int) ([]*domain.Event, error)

	// GetByListing retrieves all events of a listing ordered by Seq ASC.
	GetByListing(ctx context.Context, listingID uint64) ([]*domain.Event, error)
}

// DistributionHistoryStore is the analytics projection of earnings deposits.
// It lives outside the ledger transaction and is fed from emitted events.
type DistributionHistoryStore interface {
	// Insert adds a distribution. Returns ErrDuplicateKey if the event id exists.
	Insert(ctx context.Context, d *domain.Distribution) error

	// GetByAssetID retrieves an asset's distributions ordered by DistributedAt ASC.
	GetByAssetID(ctx context.Context, assetID uint64) ([]*domain.Distribution, error)

	// GetByTimeRange retrieves distributions within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Distribution, error)
}
