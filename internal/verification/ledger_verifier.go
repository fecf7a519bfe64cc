package verification

import (
	"context"
	"errors"
	"fmt"
	"math/bits"

	"revenue-market/internal/domain"
	"revenue-market/internal/storage"
)

// ErrListingNotFound is returned when listing ID doesn't exist.
var ErrListingNotFound = errors.New("listing not found")

var statuses = []domain.ListingStatus{
	domain.ListingStatusActive,
	domain.ListingStatusCancelled,
	domain.ListingStatusEnded,
}

// LedgerVerifier implements Verifier over a ledger store.
type LedgerVerifier struct {
	store storage.Store
}

// NewLedgerVerifier creates a new LedgerVerifier.
func NewLedgerVerifier(store storage.Store) *LedgerVerifier {
	return &LedgerVerifier{store: store}
}

// VerifyListing checks inventory, escrow and payment conservation for one listing.
func (v *LedgerVerifier) VerifyListing(ctx context.Context, listingID uint64) (*VerificationResult, error) {
	var res VerificationResult
	err := v.store.Atomic(ctx, func(tx storage.Tx) error {
		listing, err := tx.Listings().GetByID(ctx, listingID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrListingNotFound
			}
			return err
		}
		positions, err := tx.Escrows().GetByListing(ctx, listingID)
		if err != nil {
			return err
		}
		res = checkListing(listing, positions)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// VerifyAll checks every listing, then custody and supply of every token.
func (v *LedgerVerifier) VerifyAll(ctx context.Context) (*VerificationReport, error) {
	report := &VerificationReport{}
	err := v.store.Atomic(ctx, func(tx storage.Tx) error {
		// Tokens held by the escrow custodian on behalf of listings and buyers.
		inCustody := make(map[uint64]uint64)
		overflow := make(map[uint64]bool)
		hold := func(tokenID, amount uint64) {
			var ok bool
			if inCustody[tokenID], ok = add(inCustody[tokenID], amount); !ok {
				overflow[tokenID] = true
			}
		}

		for _, status := range statuses {
			listings, err := tx.Listings().GetByStatus(ctx, status)
			if err != nil {
				return fmt.Errorf("get %s listings: %w", status, err)
			}
			for _, l := range listings {
				positions, err := tx.Escrows().GetByListing(ctx, l.ID)
				if err != nil {
					return fmt.Errorf("get positions of listing %d: %w", l.ID, err)
				}
				report.add(checkListing(l, positions))

				if l.Status == domain.ListingStatusActive {
					hold(l.TokenID, l.AmountRemaining)
				}
				for _, p := range positions {
					hold(l.TokenID, p.TokensOwed)
				}
			}
		}

		tokens, err := tx.Tokens().GetAll(ctx)
		if err != nil {
			return fmt.Errorf("get tokens: %w", err)
		}
		for _, t := range tokens {
			holders, err := tx.Balances().Holders(ctx, t.ID)
			if err != nil {
				return fmt.Errorf("get holders of token %d: %w", t.ID, err)
			}
			var c checker
			if overflow[t.ID] {
				c.fail("CustodyBalance", "no overflow", "overflow")
			} else {
				c.equal("CustodyBalance", inCustody[t.ID], holders[domain.EscrowCustodian])
			}
			total, ok := sumBalances(holders)
			if !ok {
				c.fail("Supply", t.Supply, "overflow")
			} else {
				c.equal("Supply", t.Supply, total)
			}

			agg, err := tx.Earnings().Get(ctx, t.AssetID)
			switch {
			case errors.Is(err, storage.ErrNotFound):
			case err != nil:
				return fmt.Errorf("get earnings of asset %d: %w", t.AssetID, err)
			case agg.TotalEarnings > agg.TotalRevenue:
				c.fail("TotalEarnings", fmt.Sprintf("<= %d", agg.TotalRevenue), agg.TotalEarnings)
			}
			report.add(c.result(tokenSubject(t.ID)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// checkListing verifies one listing against its escrow positions.
func checkListing(l *domain.Listing, positions []*domain.EscrowPosition) VerificationResult {
	var c checker

	if remaining, ok := add(l.AmountRemaining, l.AmountSold); !ok {
		c.fail("AmountAtCreation", l.AmountAtCreation, "overflow")
	} else {
		c.equal("AmountAtCreation", l.AmountAtCreation, remaining)
	}

	var purchased, paid uint64
	okPurchased, okPaid := true, true
	for _, p := range positions {
		var ok bool
		if purchased, ok = add(purchased, p.TokensPurchased); !ok {
			okPurchased = false
		}
		if paid, ok = add(paid, p.PaymentMade); !ok {
			okPaid = false
		}

		field := "Position[" + p.Buyer + "]"
		switch l.Status {
		case domain.ListingStatusActive:
			c.equal(field+".PaymentOwed", 0, p.PaymentOwed)
		case domain.ListingStatusCancelled:
			c.equal(field+".TokensOwed", 0, p.TokensOwed)
			if p.PaymentOwed != 0 && p.PaymentOwed != p.PaymentMade {
				c.fail(field+".PaymentOwed", p.PaymentMade, p.PaymentOwed)
			}
		case domain.ListingStatusEnded:
			c.equal(field+".PaymentOwed", 0, p.PaymentOwed)
		}
		if p.TokensOwed > p.TokensPurchased {
			c.fail(field+".TokensOwed", fmt.Sprintf("<= %d", p.TokensPurchased), p.TokensOwed)
		}
	}
	if okPurchased {
		c.equal("AmountSold", purchased, l.AmountSold)
	} else {
		c.fail("AmountSold", "no overflow", "overflow")
	}
	if okPaid {
		c.equal("PaymentsReceived", paid, l.PaymentsReceived)
	} else {
		c.fail("PaymentsReceived", "no overflow", "overflow")
	}

	if l.Status.IsTerminal() {
		c.equal("ProceedsPending", 0, l.ProceedsPending)
		c.equal("FeesPending", 0, l.FeesPending)
	} else {
		if pending, ok := add(l.ProceedsPending, l.FeesPending); !ok {
			c.fail("PaymentsReceived", l.PaymentsReceived, "overflow")
		} else {
			c.equal("ProceedsPending+FeesPending", l.PaymentsReceived, pending)
		}
	}

	return c.result(listingSubject(l.ID))
}

func add(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

func sumBalances(holders map[string]uint64) (uint64, bool) {
	var total uint64
	for _, b := range holders {
		var ok bool
		if total, ok = add(total, b); !ok {
			return 0, false
		}
	}
	return total, true
}

var _ Verifier = (*LedgerVerifier)(nil)
