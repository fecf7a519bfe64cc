package settlement

import (
	"errors"
	"math"
	"testing"
)

func TestQuotePurchase_BuyerPaysFee(t *testing.T) {
	q, err := QuotePurchase(DefaultParams(), 400, 100, true)
	if err != nil {
		t.Fatalf("QuotePurchase failed: %v", err)
	}

	// 400 × 100 = 40000, fee 2.5% = 1000 on top
	if q.Subtotal != 40000 {
		t.Errorf("expected subtotal 40000, got %d", q.Subtotal)
	}
	if q.Fee != 1000 {
		t.Errorf("expected fee 1000, got %d", q.Fee)
	}
	if q.BuyerPays != 41000 {
		t.Errorf("expected buyer to pay 41000, got %d", q.BuyerPays)
	}
	if q.SellerProceeds != 40000 {
		t.Errorf("expected seller proceeds 40000, got %d", q.SellerProceeds)
	}
}

func TestQuotePurchase_SellerPaysFee(t *testing.T) {
	q, err := QuotePurchase(DefaultParams(), 400, 100, false)
	if err != nil {
		t.Fatalf("QuotePurchase failed: %v", err)
	}

	// Seller absorbs the fee: 40000 × 0.975 = 39000
	if q.BuyerPays != 40000 {
		t.Errorf("expected buyer to pay 40000, got %d", q.BuyerPays)
	}
	if q.SellerProceeds != 39000 {
		t.Errorf("expected seller proceeds 39000, got %d", q.SellerProceeds)
	}
	if q.Fee != 1000 {
		t.Errorf("expected fee 1000, got %d", q.Fee)
	}
}

func TestQuotePurchase_FeeTruncates(t *testing.T) {
	// 39 × 250 / 10000 = 0.975 → 0
	q, err := QuotePurchase(DefaultParams(), 1, 39, false)
	if err != nil {
		t.Fatalf("QuotePurchase failed: %v", err)
	}
	if q.Fee != 0 {
		t.Errorf("expected truncated fee 0, got %d", q.Fee)
	}
	if q.SellerProceeds != 39 {
		t.Errorf("expected seller proceeds 39, got %d", q.SellerProceeds)
	}
}

func TestQuotePurchase_Overflow(t *testing.T) {
	_, err := QuotePurchase(DefaultParams(), math.MaxUint64, 2, false)
	if !errors.Is(err, ErrAmountOverflow) {
		t.Errorf("expected ErrAmountOverflow, got %v", err)
	}

	// Subtotal fits, fee on top does not
	_, err = QuotePurchase(DefaultParams(), math.MaxUint64, 1, true)
	if !errors.Is(err, ErrAmountOverflow) {
		t.Errorf("expected ErrAmountOverflow for buyer-paid fee, got %v", err)
	}
}

func TestQuotePurchase_PaymentConservation(t *testing.T) {
	cases := []struct {
		amount, price uint64
	}{
		{1, 1}, {3, 333}, {400, 100}, {999, 7}, {12345, 6789}, {1 << 20, 1 << 20},
	}

	for _, tc := range cases {
		for _, buyerPays := range []bool{true, false} {
			q, err := QuotePurchase(DefaultParams(), tc.amount, tc.price, buyerPays)
			if err != nil {
				t.Fatalf("QuotePurchase(%d, %d, %v) failed: %v", tc.amount, tc.price, buyerPays, err)
			}
			if q.BuyerPays != q.SellerProceeds+q.Fee {
				t.Errorf("amount=%d price=%d buyerPays=%v: %d != %d + %d",
					tc.amount, tc.price, buyerPays, q.BuyerPays, q.SellerProceeds, q.Fee)
			}
			if buyerPays && q.SellerProceeds != q.Subtotal {
				t.Errorf("buyer-paid fee must leave seller the full subtotal")
			}
			if !buyerPays && q.BuyerPays != q.Subtotal {
				t.Errorf("seller-paid fee must charge buyer exactly the subtotal")
			}
		}
	}
}

func TestParams_Validate(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Errorf("default params should be valid: %v", err)
	}
	err := Params{FeeBps: BPPrecision + 1}.Validate()
	if !errors.Is(err, ErrInvalidParams) {
		t.Errorf("expected ErrInvalidParams, got %v", err)
	}
}
