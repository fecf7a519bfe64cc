package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"revenue-market/internal/domain"
	"revenue-market/internal/storage"
)

// ClaimTokens pays a buyer the tokens owed on an ENDED listing and zeroes the
// position. A second claim fails with ErrNothingToClaim.
func (l *Ledger) ClaimTokens(ctx context.Context, buyer string, listingID uint64) (uint64, error) {
	if err := l.checkActor(buyer); err != nil {
		return 0, fmt.Errorf("claim tokens: %w", err)
	}

	var claimed uint64
	err := l.execute(ctx, "claim_tokens", []string{escrowKey(listingID, buyer)}, func(u *unit) error {
		listing, pos, err := loadClaim(u, listingID, buyer, domain.ListingStatusEnded, ErrListingNotEnded)
		if err != nil {
			return err
		}
		if pos.TokensOwed == 0 {
			return ErrNothingToClaim
		}

		claimed = pos.TokensOwed
		if err := u.tx.Balances().Transfer(u.ctx, domain.EscrowCustodian, buyer, listing.TokenID, claimed); err != nil {
			return fmt.Errorf("release tokens: %w", err)
		}

		pos.TokensOwed = 0
		pos.ClaimedAt = u.now
		pos.UpdatedAt = u.now
		if err := u.tx.Escrows().Put(u.ctx, pos); err != nil {
			return fmt.Errorf("put escrow position: %w", err)
		}

		return u.emit(domain.Event{
			Type:      domain.EventTokensClaimed,
			ListingID: listingID,
			AssetID:   listing.AssetID,
			TokenID:   listing.TokenID,
			Actor:     buyer,
			Amount:    claimed,
		})
	})
	if err != nil {
		return 0, err
	}

	l.log.WithFields(logrus.Fields{"listing": listingID, "buyer": buyer, "tokens": claimed}).Info("tokens claimed")
	return claimed, nil
}

// ClaimRefund zeroes the refund owed to a buyer on a CANCELLED listing and
// returns it for the host to pay out. A second claim fails with ErrNothingToClaim.
func (l *Ledger) ClaimRefund(ctx context.Context, buyer string, listingID uint64) (uint64, error) {
	if err := l.checkActor(buyer); err != nil {
		return 0, fmt.Errorf("claim refund: %w", err)
	}

	var refunded uint64
	err := l.execute(ctx, "claim_refund", []string{escrowKey(listingID, buyer)}, func(u *unit) error {
		listing, pos, err := loadClaim(u, listingID, buyer, domain.ListingStatusCancelled, ErrListingNotCancelled)
		if err != nil {
			return err
		}
		if pos.PaymentOwed == 0 {
			return ErrNothingToClaim
		}

		refunded = pos.PaymentOwed
		pos.PaymentOwed = 0
		pos.ClaimedAt = u.now
		pos.UpdatedAt = u.now
		if err := u.tx.Escrows().Put(u.ctx, pos); err != nil {
			return fmt.Errorf("put escrow position: %w", err)
		}

		return u.emit(domain.Event{
			Type:      domain.EventRefundClaimed,
			ListingID: listingID,
			AssetID:   listing.AssetID,
			TokenID:   listing.TokenID,
			Actor:     buyer,
			Payment:   refunded,
		})
	})
	if err != nil {
		return 0, err
	}

	l.log.WithFields(logrus.Fields{"listing": listingID, "buyer": buyer, "refund": refunded}).Info("refund claimed")
	return refunded, nil
}

// loadClaim returns the listing and the buyer's position when the listing is
// in the status the claim requires. A buyer without a position has nothing
// to claim.
func loadClaim(u *unit, listingID uint64, buyer string, want domain.ListingStatus, wrongStatus error) (*domain.Listing, *domain.EscrowPosition, error) {
	listing, err := u.tx.Listings().GetByID(u.ctx, listingID)
	if err != nil {
		return nil, nil, mapStorage(err, ErrListingNotFound)
	}
	if listing.Status != want {
		return nil, nil, fmt.Errorf("%w: listing %d is %s", wrongStatus, listingID, listing.Status)
	}

	pos, err := u.tx.Escrows().Get(u.ctx, listingID, buyer)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, ErrNothingToClaim
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get escrow position: %w", err)
	}
	return listing, pos, nil
}
