package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"revenue-market/internal/domain"
	"revenue-market/internal/observability"
	"revenue-market/internal/settlement"
	"revenue-market/internal/storage"
)

// GetListing returns a listing by id.
func (l *Ledger) GetListing(ctx context.Context, listingID uint64) (*domain.Listing, error) {
	var listing *domain.Listing
	err := l.view(ctx, func(tx storage.Tx) error {
		var err error
		listing, err = tx.Listings().GetByID(ctx, listingID)
		return mapStorage(err, ErrListingNotFound)
	})
	return listing, err
}

// ListListings returns the listings in status ordered by id.
func (l *Ledger) ListListings(ctx context.Context, status domain.ListingStatus) ([]*domain.Listing, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: status %q", storage.ErrInvalidInput, status)
	}
	var listings []*domain.Listing
	err := l.view(ctx, func(tx storage.Tx) error {
		var err error
		listings, err = tx.Listings().GetByStatus(ctx, status)
		return err
	})
	if err != nil {
		return nil, err
	}
	if status == domain.ListingStatusActive {
		observability.UpdateActiveListings(len(listings))
	}
	return listings, nil
}

// ListingsBySeller returns a seller's listings ordered by id.
func (l *Ledger) ListingsBySeller(ctx context.Context, seller string) ([]*domain.Listing, error) {
	var listings []*domain.Listing
	err := l.view(ctx, func(tx storage.Tx) error {
		var err error
		listings, err = tx.Listings().GetBySeller(ctx, seller)
		return err
	})
	return listings, err
}

// GetPosition returns a buyer's escrow position on a listing. A buyer that
// never purchased gets a zero position.
func (l *Ledger) GetPosition(ctx context.Context, listingID uint64, buyer string) (*domain.EscrowPosition, error) {
	var pos *domain.EscrowPosition
	err := l.view(ctx, func(tx storage.Tx) error {
		if _, err := tx.Listings().GetByID(ctx, listingID); err != nil {
			return mapStorage(err, ErrListingNotFound)
		}
		var err error
		pos, err = tx.Escrows().Get(ctx, listingID, buyer)
		if errors.Is(err, storage.ErrNotFound) {
			pos = &domain.EscrowPosition{ListingID: listingID, Buyer: buyer}
			return nil
		}
		return err
	})
	return pos, err
}

// ListPositions returns every escrow position of a listing ordered by buyer.
func (l *Ledger) ListPositions(ctx context.Context, listingID uint64) ([]*domain.EscrowPosition, error) {
	var positions []*domain.EscrowPosition
	err := l.view(ctx, func(tx storage.Tx) error {
		if _, err := tx.Listings().GetByID(ctx, listingID); err != nil {
			return mapStorage(err, ErrListingNotFound)
		}
		var err error
		positions, err = tx.Escrows().GetByListing(ctx, listingID)
		return err
	})
	return positions, err
}

// Asset returns a registered asset.
func (l *Ledger) Asset(ctx context.Context, assetID uint64) (*domain.Asset, error) {
	var asset *domain.Asset
	err := l.view(ctx, func(tx storage.Tx) error {
		var err error
		asset, err = tx.Assets().GetByID(ctx, assetID)
		return mapStorage(err, ErrAssetNotFound)
	})
	return asset, err
}

// Token returns a minted revenue token.
func (l *Ledger) Token(ctx context.Context, tokenID uint64) (*domain.RevenueToken, error) {
	var token *domain.RevenueToken
	err := l.view(ctx, func(tx storage.Tx) error {
		var err error
		token, err = tx.Tokens().GetByID(ctx, tokenID)
		return mapStorage(err, ErrTokenNotFound)
	})
	return token, err
}

// Earnings returns the distribution aggregate of an asset. An asset without
// distributions gets a zero aggregate.
func (l *Ledger) Earnings(ctx context.Context, assetID uint64) (*domain.AssetEarnings, error) {
	var agg *domain.AssetEarnings
	err := l.view(ctx, func(tx storage.Tx) error {
		if _, err := tx.Assets().GetByID(ctx, assetID); err != nil {
			return mapStorage(err, ErrAssetNotFound)
		}
		var err error
		agg, err = tx.Earnings().Get(ctx, assetID)
		if errors.Is(err, storage.ErrNotFound) {
			agg = &domain.AssetEarnings{AssetID: assetID}
			return nil
		}
		return err
	})
	return agg, err
}

// Account returns the collateral position of an account.
func (l *Ledger) Account(ctx context.Context, accountID string) (*domain.CollateralPosition, error) {
	var pos *domain.CollateralPosition
	err := l.view(ctx, func(tx storage.Tx) error {
		var err error
		pos, err = tx.Accounts().Get(ctx, accountID)
		return mapStorage(err, ErrAccountNotFound)
	})
	return pos, err
}

// BalanceOf returns how many tokens of tokenID holder has in custody.
func (l *Ledger) BalanceOf(ctx context.Context, holder string, tokenID uint64) (uint64, error) {
	var balance uint64
	err := l.view(ctx, func(tx storage.Tx) error {
		var err error
		balance, err = tx.Balances().BalanceOf(ctx, holder, tokenID)
		return err
	})
	return balance, err
}

// Holders returns every holder of tokenID with a positive balance, the
// escrow custodian included.
func (l *Ledger) Holders(ctx context.Context, tokenID uint64) (map[string]uint64, error) {
	var holders map[string]uint64
	err := l.view(ctx, func(tx storage.Tx) error {
		if _, err := tx.Tokens().GetByID(ctx, tokenID); err != nil {
			return mapStorage(err, ErrTokenNotFound)
		}
		var err error
		holders, err = tx.Balances().Holders(ctx, tokenID)
		return err
	})
	return holders, err
}

// Events returns up to limit events after sequence number after.
// A non-positive limit returns all of them.
func (l *Ledger) Events(ctx context.Context, after uint64, limit int) ([]*domain.Event, error) {
	var evs []*domain.Event
	err := l.view(ctx, func(tx storage.Tx) error {
		var err error
		evs, err = tx.Events().GetAfter(ctx, after, limit)
		return err
	})
	return evs, err
}

// ListingEvents returns the event history of a listing.
func (l *Ledger) ListingEvents(ctx context.Context, listingID uint64) ([]*domain.Event, error) {
	var evs []*domain.Event
	err := l.view(ctx, func(tx storage.Tx) error {
		var err error
		evs, err = tx.Events().GetByListing(ctx, listingID)
		return err
	})
	return evs, err
}

// EstimateAPR returns the annualized yield of a revenue token, falling back
// to settlement.BenchmarkAPR until its asset has distributed earnings.
func (l *Ledger) EstimateAPR(ctx context.Context, tokenID uint64) (decimal.Decimal, error) {
	var apr decimal.Decimal
	err := l.view(ctx, func(tx storage.Tx) error {
		token, err := tx.Tokens().GetByID(ctx, tokenID)
		if err != nil {
			return mapStorage(err, ErrTokenNotFound)
		}
		agg, err := earningsOf(ctx, tx, token.AssetID)
		if err != nil {
			return err
		}
		apr = settlement.EstimateAPR(token.Price, token.Supply, agg)
		return nil
	})
	return apr, err
}

// AssetYield is an asset's estimated APR for display.
type AssetYield struct {
	AssetID  uint64
	TokenID  uint64
	APR      decimal.Decimal
	Earnings domain.AssetEarnings
}

// RankAssets returns every minted asset ordered by estimated APR, highest
// first. Ties keep asset id order.
func (l *Ledger) RankAssets(ctx context.Context) ([]AssetYield, error) {
	var ranked []AssetYield
	err := l.view(ctx, func(tx storage.Tx) error {
		tokens, err := tx.Tokens().GetAll(ctx)
		if err != nil {
			return err
		}
		ranked = make([]AssetYield, 0, len(tokens))
		for _, t := range tokens {
			agg, err := earningsOf(ctx, tx, t.AssetID)
			if err != nil {
				return err
			}
			ranked = append(ranked, AssetYield{
				AssetID:  t.AssetID,
				TokenID:  t.ID,
				APR:      settlement.EstimateAPR(t.Price, t.Supply, agg),
				Earnings: agg,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].APR.GreaterThan(ranked[j].APR)
	})
	return ranked, nil
}

func earningsOf(ctx context.Context, tx storage.Tx, assetID uint64) (domain.AssetEarnings, error) {
	agg, err := tx.Earnings().Get(ctx, assetID)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.AssetEarnings{AssetID: assetID}, nil
	}
	if err != nil {
		return domain.AssetEarnings{}, fmt.Errorf("get earnings: %w", err)
	}
	return *agg, nil
}
