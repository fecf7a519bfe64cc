package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"revenue-market/internal/domain"
	"revenue-market/internal/observability"
	"revenue-market/internal/settlement"
	"revenue-market/internal/storage"
)

// PurchaseReceipt is the outcome of a purchase.
type PurchaseReceipt struct {
	ListingID uint64
	Buyer     string
	Quote     settlement.PurchaseQuote
	Position  domain.EscrowPosition // buyer's position after the purchase
	Remaining uint64                // listing inventory left
}

// Quote prices a purchase of amount tokens from listingID without executing it.
// It fails exactly where Purchase would on the listing's current state.
func (l *Ledger) Quote(ctx context.Context, listingID, amount uint64) (settlement.PurchaseQuote, error) {
	if amount == 0 {
		return settlement.PurchaseQuote{}, fmt.Errorf("quote: %w", ErrInvalidAmount)
	}

	var q settlement.PurchaseQuote
	err := l.view(ctx, func(tx storage.Tx) error {
		u := &unit{ctx: ctx, tx: tx, now: l.now().Unix()}
		listing, err := l.loadPurchasable(u, listingID, amount)
		if err != nil {
			return err
		}
		q, err = settlement.QuotePurchase(l.params, amount, listing.PricePerToken, listing.BuyerPaysFee)
		return err
	})
	if err != nil {
		return settlement.PurchaseQuote{}, fmt.Errorf("quote: %w", err)
	}
	return q, nil
}

// loadPurchasable returns listingID if amount tokens can be bought from it now.
func (l *Ledger) loadPurchasable(u *unit, listingID, amount uint64) (*domain.Listing, error) {
	listing, err := l.loadActiveListing(u, listingID)
	if err != nil {
		return nil, err
	}
	if listing.IsExpired(u.now) {
		return nil, fmt.Errorf("%w: listing %d expired at %d", ErrListingExpired, listingID, listing.ExpiresAt)
	}
	if amount > listing.AmountRemaining {
		return nil, fmt.Errorf("%w: requested %d, remaining %d", ErrInsufficientInventory, amount, listing.AmountRemaining)
	}
	return listing, nil
}

// Purchase buys amount tokens from an ACTIVE, unexpired listing. The tokens
// stay in escrow custody, owed to the buyer, until the listing ends; the
// payment is recorded for refund should the listing be cancelled.
func (l *Ledger) Purchase(ctx context.Context, buyer string, listingID, amount uint64) (*PurchaseReceipt, error) {
	if err := l.checkActor(buyer); err != nil {
		return nil, fmt.Errorf("purchase: %w", err)
	}
	if amount == 0 {
		return nil, fmt.Errorf("purchase: %w", ErrInvalidAmount)
	}

	keys := []string{listingKey(listingID), escrowKey(listingID, buyer)}

	receipt := &PurchaseReceipt{ListingID: listingID, Buyer: buyer}
	err := l.execute(ctx, "purchase", keys, func(u *unit) error {
		listing, err := l.loadPurchasable(u, listingID, amount)
		if err != nil {
			return err
		}

		q, err := settlement.QuotePurchase(l.params, amount, listing.PricePerToken, listing.BuyerPaysFee)
		if err != nil {
			return err
		}

		listing.AmountRemaining -= amount
		listing.AmountSold += amount
		if listing.ProceedsPending, err = checkedAdd(listing.ProceedsPending, q.SellerProceeds); err != nil {
			return err
		}
		if listing.FeesPending, err = checkedAdd(listing.FeesPending, q.Fee); err != nil {
			return err
		}
		if listing.PaymentsReceived, err = checkedAdd(listing.PaymentsReceived, q.BuyerPays); err != nil {
			return err
		}

		pos, err := recordPurchase(u, listingID, buyer, amount, q.BuyerPays)
		if err != nil {
			return err
		}

		if err := u.tx.Listings().Update(u.ctx, listing); err != nil {
			return fmt.Errorf("update listing: %w", err)
		}

		receipt.Quote = q
		receipt.Position = *pos
		receipt.Remaining = listing.AmountRemaining

		return u.emit(domain.Event{
			Type:      domain.EventPurchaseRecorded,
			ListingID: listingID,
			AssetID:   listing.AssetID,
			TokenID:   listing.TokenID,
			Actor:     buyer,
			Amount:    amount,
			Payment:   q.BuyerPays,
			Fee:       q.Fee,
			Proceeds:  q.SellerProceeds,
		})
	})
	if err != nil {
		return nil, err
	}

	observability.RecordPurchase(amount, receipt.Quote.BuyerPays, receipt.Quote.Fee)
	l.log.WithFields(logrus.Fields{
		"listing": listingID,
		"buyer":   buyer,
		"amount":  amount,
		"paid":    receipt.Quote.BuyerPays,
	}).Info("purchase recorded")
	return receipt, nil
}

// recordPurchase credits the buyer's escrow position with tokens owed and the
// payment actually made.
func recordPurchase(u *unit, listingID uint64, buyer string, tokens, payment uint64) (*domain.EscrowPosition, error) {
	pos, err := u.tx.Escrows().Get(u.ctx, listingID, buyer)
	if errors.Is(err, storage.ErrNotFound) {
		pos = &domain.EscrowPosition{ListingID: listingID, Buyer: buyer}
	} else if err != nil {
		return nil, fmt.Errorf("get escrow position: %w", err)
	}

	if pos.TokensOwed, err = checkedAdd(pos.TokensOwed, tokens); err != nil {
		return nil, err
	}
	if pos.TokensPurchased, err = checkedAdd(pos.TokensPurchased, tokens); err != nil {
		return nil, err
	}
	if pos.PaymentMade, err = checkedAdd(pos.PaymentMade, payment); err != nil {
		return nil, err
	}
	pos.UpdatedAt = u.now

	if err := u.tx.Escrows().Put(u.ctx, pos); err != nil {
		return nil, fmt.Errorf("put escrow position: %w", err)
	}
	return pos, nil
}
