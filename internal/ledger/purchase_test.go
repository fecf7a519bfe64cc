package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"revenue-market/internal/domain"
)

func TestPurchase_BuyerPaysFee(t *testing.T) {
	f := newFixture(t)
	token := f.mint(t, 10, 1000)
	listing := f.list(t, partner, token.ID, 500, 10, true)

	receipt, err := f.ledger.Purchase(context.Background(), alice, listing.ID, 100)
	require.NoError(t, err)

	assert.Equal(t, uint64(1000), receipt.Quote.Subtotal)
	assert.Equal(t, uint64(25), receipt.Quote.Fee)
	assert.Equal(t, uint64(1025), receipt.Quote.BuyerPays)
	assert.Equal(t, uint64(1000), receipt.Quote.SellerProceeds)
	assert.Equal(t, uint64(400), receipt.Remaining)

	got, err := f.ledger.GetListing(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(400), got.AmountRemaining)
	assert.Equal(t, uint64(100), got.AmountSold)
	assert.Equal(t, uint64(1000), got.ProceedsPending)
	assert.Equal(t, uint64(25), got.FeesPending)
	assert.Equal(t, uint64(1025), got.PaymentsReceived)

	assert.Equal(t, uint64(100), receipt.Position.TokensOwed)
	assert.Equal(t, uint64(1025), receipt.Position.PaymentMade)
	assert.Zero(t, receipt.Position.PaymentOwed)

	// Tokens stay with the custodian until the listing ends.
	assert.Zero(t, f.balance(t, alice, token.ID))
	assert.Equal(t, uint64(500), f.balance(t, domain.EscrowCustodian, token.ID))

	ev := f.sink.OfType(domain.EventPurchaseRecorded)
	require.Len(t, ev, 1)
	assert.Equal(t, alice, ev[0].Actor)
	assert.Equal(t, uint64(100), ev[0].Amount)
	assert.Equal(t, uint64(1025), ev[0].Payment)
	assert.Equal(t, uint64(25), ev[0].Fee)
	assert.Equal(t, uint64(1000), ev[0].Proceeds)
}

func TestPurchase_SellerPaysFee(t *testing.T) {
	f := newFixture(t)
	token := f.mint(t, 10, 1000)
	listing := f.list(t, partner, token.ID, 500, 10, false)

	receipt, err := f.ledger.Purchase(context.Background(), alice, listing.ID, 100)
	require.NoError(t, err)

	assert.Equal(t, uint64(1000), receipt.Quote.BuyerPays)
	assert.Equal(t, uint64(975), receipt.Quote.SellerProceeds)
	assert.Equal(t, uint64(25), receipt.Quote.Fee)

	got, err := f.ledger.GetListing(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(975), got.ProceedsPending)
	assert.Equal(t, uint64(25), got.FeesPending)
	assert.Equal(t, uint64(1000), got.PaymentsReceived)
}

// The protocol collects the same fee whichever side pays it.
func TestPurchase_FeePayerSymmetry(t *testing.T) {
	for _, amount := range []uint64{1, 7, 100, 333} {
		t.Run(fmt.Sprint(amount), func(t *testing.T) {
			fees := make(map[bool]uint64)
			for _, buyerPays := range []bool{true, false} {
				f := newFixture(t)
				token := f.mint(t, 10, 1000)
				listing := f.list(t, partner, token.ID, 500, 37, buyerPays)

				r, err := f.ledger.Purchase(context.Background(), alice, listing.ID, amount)
				require.NoError(t, err)
				assert.Equal(t, r.Quote.BuyerPays, r.Quote.SellerProceeds+r.Quote.Fee)
				fees[buyerPays] = r.Quote.Fee
			}
			assert.Equal(t, fees[true], fees[false])
		})
	}
}

func TestPurchase_AccumulatesPosition(t *testing.T) {
	f := newFixture(t)
	token := f.mint(t, 10, 1000)
	listing := f.list(t, partner, token.ID, 500, 10, true)
	ctx := context.Background()

	_, err := f.ledger.Purchase(ctx, alice, listing.ID, 10)
	require.NoError(t, err)
	r, err := f.ledger.Purchase(ctx, alice, listing.ID, 30)
	require.NoError(t, err)

	assert.Equal(t, uint64(40), r.Position.TokensOwed)
	assert.Equal(t, uint64(40), r.Position.TokensPurchased)
	assert.Equal(t, uint64(102+307), r.Position.PaymentMade)

	positions, err := f.ledger.ListPositions(ctx, listing.ID)
	require.NoError(t, err)
	assert.Len(t, positions, 1)
}

func TestPurchase_Rejections(t *testing.T) {
	f := newFixture(t)
	token := f.mint(t, 10, 1000)
	listing := f.list(t, partner, token.ID, 100, 10, true)
	ctx := context.Background()

	_, err := f.ledger.Purchase(ctx, alice, listing.ID, 0)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.ledger.Purchase(ctx, alice, listing.ID, 101)
	require.ErrorIs(t, err, ErrInsufficientInventory)
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = f.ledger.Purchase(ctx, alice, 99, 1)
	require.ErrorIs(t, err, ErrListingNotFound)

	_, err = f.ledger.Purchase(ctx, domain.EscrowCustodian, listing.ID, 1)
	require.ErrorIs(t, err, ErrReservedActor)

	f.clock.Advance(7 * day)
	_, err = f.ledger.Purchase(ctx, alice, listing.ID, 1)
	require.ErrorIs(t, err, ErrListingExpired)
	assert.Equal(t, KindState, KindOf(err))

	_, err = f.ledger.FinalizeListing(ctx, partner, listing.ID)
	require.NoError(t, err)
	_, err = f.ledger.Purchase(ctx, alice, listing.ID, 1)
	require.ErrorIs(t, err, ErrListingNotActive)

	assert.Empty(t, f.sink.OfType(domain.EventPurchaseRecorded))
}

func TestPurchase_Overflow(t *testing.T) {
	f := newFixture(t)
	token := f.mint(t, 10, 1000)
	listing := f.list(t, partner, token.ID, 1000, 1<<62, true)

	_, err := f.ledger.Purchase(context.Background(), alice, listing.ID, 4)
	require.Error(t, err)
	assert.Equal(t, KindArithmetic, KindOf(err))

	got, err := f.ledger.GetListing(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.Zero(t, got.AmountSold)
}

func TestQuote(t *testing.T) {
	f := newFixture(t)
	token := f.mint(t, 10, 1000)
	listing := f.list(t, partner, token.ID, 100, 10, true)

	q, err := f.ledger.Quote(context.Background(), listing.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(1025), q.BuyerPays)

	_, err = f.ledger.Quote(context.Background(), 99, 1)
	require.ErrorIs(t, err, ErrListingNotFound)
}

func TestQuote_RejectsWhatPurchaseRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.mint(t, 10, 1000)
	open := f.list(t, partner, token.ID, 100, 10, true)
	cancelled := f.list(t, partner, token.ID, 100, 10, true)
	_, err := f.ledger.CancelListing(ctx, partner, cancelled.ID)
	require.NoError(t, err)

	tests := []struct {
		name      string
		listingID uint64
		amount    uint64
		want      error
	}{
		{"zero amount", open.ID, 0, ErrInvalidAmount},
		{"above remaining", open.ID, 101, ErrInsufficientInventory},
		{"cancelled listing", cancelled.ID, 1, ErrListingNotActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.Quote(ctx, tt.listingID, tt.amount)
			require.ErrorIs(t, err, tt.want)

			_, err = f.ledger.Purchase(ctx, alice, tt.listingID, tt.amount)
			require.ErrorIs(t, err, tt.want)
		})
	}

	f.clock.Advance(8 * day)
	_, err = f.ledger.Quote(ctx, open.ID, 1)
	require.ErrorIs(t, err, ErrListingExpired)
}

// Concurrent buyers never sell more than the listing holds, and every sold
// token is owed to exactly one buyer.
func TestPurchase_InventoryConservation(t *testing.T) {
	f := newFixture(t)
	token := f.mint(t, 10, 1000)
	listing := f.list(t, partner, token.ID, 95, 10, true)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = f.ledger.Purchase(ctx, fmt.Sprintf("buyer-%d", i%5), listing.ID, 10)
		}(i)
	}
	wg.Wait()

	got, err := f.ledger.GetListing(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(90), got.AmountSold)
	assert.Equal(t, got.AmountAtCreation, got.AmountSold+got.AmountRemaining)

	positions, err := f.ledger.ListPositions(ctx, listing.ID)
	require.NoError(t, err)

	var owed, paid uint64
	for _, p := range positions {
		owed += p.TokensOwed
		paid += p.PaymentMade
	}
	assert.Equal(t, got.AmountSold, owed)
	assert.Equal(t, got.PaymentsReceived, paid)
	assert.Len(t, f.sink.OfType(domain.EventPurchaseRecorded), 9)
}
