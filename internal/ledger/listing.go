package ledger

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"revenue-market/internal/domain"
	"revenue-market/internal/storage"
)

// CreateListingRequest describes a new fixed-price listing.
type CreateListingRequest struct {
	Seller        string
	TokenID       uint64
	Amount        uint64
	PricePerToken uint64
	Duration      int64 // seconds until expiry
	BuyerPaysFee  bool
}

// CreateListing moves Amount tokens from the seller into escrow custody and
// opens an ACTIVE listing for them.
func (l *Ledger) CreateListing(ctx context.Context, req CreateListingRequest) (*domain.Listing, error) {
	if err := l.checkActor(req.Seller); err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}
	switch {
	case req.Amount == 0:
		return nil, fmt.Errorf("create listing: %w", ErrInvalidAmount)
	case req.PricePerToken == 0:
		return nil, fmt.Errorf("create listing: %w", ErrInvalidPrice)
	case req.Duration <= 0:
		return nil, fmt.Errorf("create listing: %w", ErrInvalidDuration)
	}

	var listing domain.Listing
	err := l.execute(ctx, "create_listing", []string{accountKey(req.Seller)}, func(u *unit) error {
		token, err := u.tx.Tokens().GetByID(u.ctx, req.TokenID)
		if err != nil {
			return mapStorage(err, ErrTokenNotFound)
		}

		expiresAt, err := addDuration(u.now, req.Duration)
		if err != nil {
			return err
		}

		if err := u.tx.Balances().Transfer(u.ctx, req.Seller, domain.EscrowCustodian, token.ID, req.Amount); err != nil {
			return mapStorage(err, ErrTokenNotFound)
		}

		id, err := u.tx.Listings().NextID(u.ctx)
		if err != nil {
			return fmt.Errorf("allocate listing id: %w", err)
		}

		listing = domain.Listing{
			ID:               id,
			TokenID:          token.ID,
			AssetID:          token.AssetID,
			Seller:           req.Seller,
			AmountAtCreation: req.Amount,
			AmountRemaining:  req.Amount,
			PricePerToken:    req.PricePerToken,
			BuyerPaysFee:     req.BuyerPaysFee,
			Status:           domain.ListingStatusActive,
			ExpiresAt:        expiresAt,
			CreatedAt:        u.now,
		}
		if err := u.tx.Listings().Insert(u.ctx, &listing); err != nil {
			return fmt.Errorf("insert listing: %w", err)
		}

		return u.emit(domain.Event{
			Type:      domain.EventListingCreated,
			ListingID: id,
			AssetID:   token.AssetID,
			TokenID:   token.ID,
			Actor:     req.Seller,
			Amount:    req.Amount,
			Payment:   req.PricePerToken,
			ExpiresAt: expiresAt,
		})
	})
	if err != nil {
		return nil, err
	}

	l.log.WithFields(logrus.Fields{
		"listing": listing.ID,
		"token":   listing.TokenID,
		"amount":  listing.AmountAtCreation,
	}).Info("listing created")
	return &listing, nil
}

// ExtendListing pushes back the expiry of an ACTIVE listing. An expired but
// not yet finalized listing can be extended, which reopens it to purchases.
func (l *Ledger) ExtendListing(ctx context.Context, seller string, listingID uint64, additional int64) (*domain.Listing, error) {
	if err := l.checkActor(seller); err != nil {
		return nil, fmt.Errorf("extend listing: %w", err)
	}
	if additional <= 0 {
		return nil, fmt.Errorf("extend listing: %w", ErrInvalidDuration)
	}

	var listing *domain.Listing
	err := l.execute(ctx, "extend_listing", []string{listingKey(listingID)}, func(u *unit) error {
		var err error
		listing, err = l.loadSellerListing(u, seller, listingID)
		if err != nil {
			return err
		}

		if listing.ExpiresAt, err = addDuration(listing.ExpiresAt, additional); err != nil {
			return err
		}
		if err := u.tx.Listings().Update(u.ctx, listing); err != nil {
			return fmt.Errorf("update listing: %w", err)
		}

		return u.emit(domain.Event{
			Type:      domain.EventListingExtended,
			ListingID: listing.ID,
			AssetID:   listing.AssetID,
			TokenID:   listing.TokenID,
			Actor:     seller,
			ExpiresAt: listing.ExpiresAt,
		})
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// CancelListing fully unwinds an ACTIVE listing: unsold inventory and every
// buyer's owed tokens return to the seller, each buyer becomes owed a refund
// of everything they paid, and pending proceeds and fees are voided.
func (l *Ledger) CancelListing(ctx context.Context, seller string, listingID uint64) (*domain.Listing, error) {
	if err := l.checkActor(seller); err != nil {
		return nil, fmt.Errorf("cancel listing: %w", err)
	}

	var listing *domain.Listing
	var returned uint64
	err := l.execute(ctx, "cancel_listing", []string{listingKey(listingID)}, func(u *unit) error {
		var err error
		listing, err = l.loadSellerListing(u, seller, listingID)
		if err != nil {
			return err
		}

		positions, err := u.tx.Escrows().GetByListing(u.ctx, listingID)
		if err != nil {
			return fmt.Errorf("get escrow positions: %w", err)
		}

		returned = listing.AmountRemaining
		for _, p := range positions {
			if returned, err = checkedAdd(returned, p.TokensOwed); err != nil {
				return err
			}
			p.TokensOwed = 0
			p.PaymentOwed = p.PaymentMade
			p.UpdatedAt = u.now
			if err := u.tx.Escrows().Put(u.ctx, p); err != nil {
				return fmt.Errorf("put escrow position: %w", err)
			}
		}

		if err := u.tx.Balances().Transfer(u.ctx, domain.EscrowCustodian, listing.Seller, listing.TokenID, returned); err != nil {
			return fmt.Errorf("return inventory: %w", err)
		}

		listing.Status = domain.ListingStatusCancelled
		listing.ProceedsPending = 0
		listing.FeesPending = 0
		listing.ClosedAt = u.now
		if err := u.tx.Listings().Update(u.ctx, listing); err != nil {
			return fmt.Errorf("update listing: %w", err)
		}

		return u.emit(domain.Event{
			Type:      domain.EventListingCancelled,
			ListingID: listing.ID,
			AssetID:   listing.AssetID,
			TokenID:   listing.TokenID,
			Actor:     seller,
			Amount:    returned,
			Payment:   listing.PaymentsReceived,
		})
	})
	if err != nil {
		return nil, err
	}

	l.log.WithFields(logrus.Fields{
		"listing":    listing.ID,
		"returned":   returned,
		"refundable": listing.PaymentsReceived,
	}).Info("listing cancelled")
	return listing, nil
}

// FinalizeListing ends an ACTIVE listing. The seller may finalize at any
// time; anyone may finalize once the listing has expired. Unsold inventory
// returns to the seller, pending proceeds become withdrawable by the seller,
// pending fees by the treasury, and buyers may claim their tokens.
func (l *Ledger) FinalizeListing(ctx context.Context, caller string, listingID uint64) (*domain.Listing, error) {
	if err := l.checkActor(caller); err != nil {
		return nil, fmt.Errorf("finalize listing: %w", err)
	}

	// The seller never changes, so it can be read before the accounts it
	// credits are locked.
	seller, err := l.sellerOf(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("finalize listing: %w", err)
	}
	keys := []string{listingKey(listingID), accountKey(seller), accountKey(l.treasuryID)}

	var listing *domain.Listing
	err = l.execute(ctx, "finalize_listing", keys, func(u *unit) error {
		var err error
		listing, err = l.loadActiveListing(u, listingID)
		if err != nil {
			return err
		}
		if caller != listing.Seller && !listing.IsExpired(u.now) {
			return fmt.Errorf("%w: listing %d has not expired", ErrNotSeller, listingID)
		}

		if err := u.tx.Balances().Transfer(u.ctx, domain.EscrowCustodian, listing.Seller, listing.TokenID, listing.AmountRemaining); err != nil {
			return fmt.Errorf("return inventory: %w", err)
		}

		if err := l.credit(u, listing.Seller, listing.ProceedsPending); err != nil {
			return err
		}
		if err := l.credit(u, l.treasuryID, listing.FeesPending); err != nil {
			return err
		}

		proceeds, fees := listing.ProceedsPending, listing.FeesPending
		listing.Status = domain.ListingStatusEnded
		listing.ProceedsPending = 0
		listing.FeesPending = 0
		listing.ClosedAt = u.now
		if err := u.tx.Listings().Update(u.ctx, listing); err != nil {
			return fmt.Errorf("update listing: %w", err)
		}

		return u.emit(domain.Event{
			Type:      domain.EventListingEnded,
			ListingID: listing.ID,
			AssetID:   listing.AssetID,
			TokenID:   listing.TokenID,
			Actor:     caller,
			Amount:    listing.AmountRemaining,
			Proceeds:  proceeds,
			Fee:       fees,
		})
	})
	if err != nil {
		return nil, err
	}

	l.log.WithFields(logrus.Fields{
		"listing": listing.ID,
		"sold":    listing.AmountSold,
	}).Info("listing ended")
	return listing, nil
}

// sellerOf returns the seller of listingID.
func (l *Ledger) sellerOf(ctx context.Context, listingID uint64) (string, error) {
	var seller string
	err := l.view(ctx, func(tx storage.Tx) error {
		listing, err := tx.Listings().GetByID(ctx, listingID)
		if err != nil {
			return mapStorage(err, ErrListingNotFound)
		}
		seller = listing.Seller
		return nil
	})
	return seller, err
}

// loadActiveListing returns listingID if it is ACTIVE.
func (l *Ledger) loadActiveListing(u *unit, listingID uint64) (*domain.Listing, error) {
	listing, err := u.tx.Listings().GetByID(u.ctx, listingID)
	if err != nil {
		return nil, mapStorage(err, ErrListingNotFound)
	}
	if listing.Status != domain.ListingStatusActive {
		return nil, fmt.Errorf("%w: listing %d is %s", ErrListingNotActive, listingID, listing.Status)
	}
	return listing, nil
}

// loadSellerListing returns listingID if it is ACTIVE and owned by seller.
func (l *Ledger) loadSellerListing(u *unit, seller string, listingID uint64) (*domain.Listing, error) {
	listing, err := l.loadActiveListing(u, listingID)
	if err != nil {
		return nil, err
	}
	if listing.Seller != seller {
		return nil, ErrNotSeller
	}
	return listing, nil
}

// credit adds amount to the pending withdrawal of account.
func (l *Ledger) credit(u *unit, account string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	pos, err := l.loadAccount(u, account)
	if err != nil {
		return err
	}
	if pos.PendingWithdrawal, err = checkedAdd(pos.PendingWithdrawal, amount); err != nil {
		return err
	}
	pos.UpdatedAt = u.now
	if err := u.tx.Accounts().Put(u.ctx, pos); err != nil {
		return fmt.Errorf("put account: %w", err)
	}
	return nil
}
