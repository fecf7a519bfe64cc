package settlement

// PurchaseQuote is the cost breakdown of buying from a listing.
// BuyerPays == SellerProceeds + Fee holds for both fee conventions.
type PurchaseQuote struct {
	Amount         uint64
	PricePerToken  uint64
	BuyerPaysFee   bool
	Subtotal       uint64 // amount × price
	Fee            uint64 // subtotal × fee bps, truncated
	BuyerPays      uint64 // amount actually transferred by the buyer
	SellerProceeds uint64 // amount credited to the seller
}

// QuotePurchase computes the purchase split for amount tokens at price.
// With buyerPaysFee the fee is added on top of the subtotal; otherwise it is
// taken out of the seller's proceeds.
func QuotePurchase(p Params, amount, price uint64, buyerPaysFee bool) (PurchaseQuote, error) {
	subtotal, err := mul(amount, price)
	if err != nil {
		return PurchaseQuote{}, err
	}
	fee, err := p.feeOf(subtotal)
	if err != nil {
		return PurchaseQuote{}, err
	}

	q := PurchaseQuote{
		Amount:        amount,
		PricePerToken: price,
		BuyerPaysFee:  buyerPaysFee,
		Subtotal:      subtotal,
		Fee:           fee,
	}
	if buyerPaysFee {
		q.BuyerPays, err = add(subtotal, fee)
		if err != nil {
			return PurchaseQuote{}, err
		}
		q.SellerProceeds = subtotal
	} else {
		q.BuyerPays = subtotal
		q.SellerProceeds = subtotal - fee
	}
	return q, nil
}
