package api

import (
	"revenue-market/internal/domain"
	"revenue-market/internal/ledger"
	"revenue-market/internal/settlement"
)

// Amounts are encoded as JSON strings so that uint64 values survive
// JavaScript clients.

// AssetResponse is a registered asset.
type AssetResponse struct {
	ID          uint64 `json:"id"`
	Partner     string `json:"partner"`
	MetadataURI string `json:"metadata_uri"`
	CreatedAt   int64  `json:"created_at"`
}

func newAsset(a *domain.Asset) AssetResponse {
	return AssetResponse{ID: a.ID, Partner: a.Partner, MetadataURI: a.MetadataURI, CreatedAt: a.CreatedAt}
}

// TokenResponse is a minted revenue token.
type TokenResponse struct {
	ID           uint64 `json:"id"`
	AssetID      uint64 `json:"asset_id"`
	Price        uint64 `json:"price,string"`
	Supply       uint64 `json:"supply,string"`
	MaturityDate int64  `json:"maturity_date"`
	MintedAt     int64  `json:"minted_at"`
}

func newToken(t *domain.RevenueToken) TokenResponse {
	return TokenResponse{
		ID:           t.ID,
		AssetID:      t.AssetID,
		Price:        t.Price,
		Supply:       t.Supply,
		MaturityDate: t.MaturityDate,
		MintedAt:     t.MintedAt,
	}
}

// ListingResponse is a marketplace listing.
type ListingResponse struct {
	ID               uint64 `json:"id"`
	TokenID          uint64 `json:"token_id"`
	AssetID          uint64 `json:"asset_id"`
	Seller           string `json:"seller"`
	AmountAtCreation uint64 `json:"amount_at_creation,string"`
	AmountRemaining  uint64 `json:"amount_remaining,string"`
	AmountSold       uint64 `json:"amount_sold,string"`
	PricePerToken    uint64 `json:"price_per_token,string"`
	BuyerPaysFee     bool   `json:"buyer_pays_fee"`
	ProceedsPending  uint64 `json:"proceeds_pending,string"`
	FeesPending      uint64 `json:"fees_pending,string"`
	PaymentsReceived uint64 `json:"payments_received,string"`
	Status           string `json:"status"`
	ExpiresAt        int64  `json:"expires_at"`
	CreatedAt        int64  `json:"created_at"`
	ClosedAt         int64  `json:"closed_at,omitempty"`
}

func newListing(l *domain.Listing) ListingResponse {
	return ListingResponse{
		ID:               l.ID,
		TokenID:          l.TokenID,
		AssetID:          l.AssetID,
		Seller:           l.Seller,
		AmountAtCreation: l.AmountAtCreation,
		AmountRemaining:  l.AmountRemaining,
		AmountSold:       l.AmountSold,
		PricePerToken:    l.PricePerToken,
		BuyerPaysFee:     l.BuyerPaysFee,
		ProceedsPending:  l.ProceedsPending,
		FeesPending:      l.FeesPending,
		PaymentsReceived: l.PaymentsReceived,
		Status:           l.Status.String(),
		ExpiresAt:        l.ExpiresAt,
		CreatedAt:        l.CreatedAt,
		ClosedAt:         l.ClosedAt,
	}
}

func newListings(ls []*domain.Listing) []ListingResponse {
	out := make([]ListingResponse, 0, len(ls))
	for _, l := range ls {
		out = append(out, newListing(l))
	}
	return out
}

// PositionResponse is a buyer's escrow position.
type PositionResponse struct {
	ListingID       uint64 `json:"listing_id"`
	Buyer           string `json:"buyer"`
	TokensOwed      uint64 `json:"tokens_owed,string"`
	PaymentOwed     uint64 `json:"payment_owed,string"`
	TokensPurchased uint64 `json:"tokens_purchased,string"`
	PaymentMade     uint64 `json:"payment_made,string"`
	UpdatedAt       int64  `json:"updated_at,omitempty"`
	ClaimedAt       int64  `json:"claimed_at,omitempty"`
}

func newPosition(p *domain.EscrowPosition) PositionResponse {
	return PositionResponse{
		ListingID:       p.ListingID,
		Buyer:           p.Buyer,
		TokensOwed:      p.TokensOwed,
		PaymentOwed:     p.PaymentOwed,
		TokensPurchased: p.TokensPurchased,
		PaymentMade:     p.PaymentMade,
		UpdatedAt:       p.UpdatedAt,
		ClaimedAt:       p.ClaimedAt,
	}
}

// QuoteResponse is the cost breakdown of a purchase.
type QuoteResponse struct {
	Amount         uint64 `json:"amount,string"`
	PricePerToken  uint64 `json:"price_per_token,string"`
	BuyerPaysFee   bool   `json:"buyer_pays_fee"`
	Subtotal       uint64 `json:"subtotal,string"`
	Fee            uint64 `json:"fee,string"`
	BuyerPays      uint64 `json:"buyer_pays,string"`
	SellerProceeds uint64 `json:"seller_proceeds,string"`
}

func newQuote(q settlement.PurchaseQuote) QuoteResponse {
	return QuoteResponse{
		Amount:         q.Amount,
		PricePerToken:  q.PricePerToken,
		BuyerPaysFee:   q.BuyerPaysFee,
		Subtotal:       q.Subtotal,
		Fee:            q.Fee,
		BuyerPays:      q.BuyerPays,
		SellerProceeds: q.SellerProceeds,
	}
}

// PurchaseResponse is the outcome of a purchase.
type PurchaseResponse struct {
	ListingID uint64           `json:"listing_id"`
	Quote     QuoteResponse    `json:"quote"`
	Position  PositionResponse `json:"position"`
	Remaining uint64           `json:"remaining,string"`
}

// EarningsResponse is an asset's distribution aggregate.
type EarningsResponse struct {
	AssetID             uint64 `json:"asset_id"`
	TotalEarnings       uint64 `json:"total_earnings,string"`
	TotalRevenue        uint64 `json:"total_revenue,string"`
	DistributionCount   uint64 `json:"distribution_count"`
	FirstDistributionAt int64  `json:"first_distribution_at,omitempty"`
	LastDistributionAt  int64  `json:"last_distribution_at,omitempty"`
}

func newEarnings(e *domain.AssetEarnings) EarningsResponse {
	return EarningsResponse{
		AssetID:             e.AssetID,
		TotalEarnings:       e.TotalEarnings,
		TotalRevenue:        e.TotalRevenue,
		DistributionCount:   e.DistributionCount,
		FirstDistributionAt: e.FirstDistributionAt,
		LastDistributionAt:  e.LastDistributionAt,
	}
}

// DistributionResponse is the outcome of an earnings distribution.
type DistributionResponse struct {
	AssetID         uint64           `json:"asset_id"`
	TokenID         uint64           `json:"token_id"`
	TotalRevenue    uint64           `json:"total_revenue,string"`
	ExternalTokens  uint64           `json:"external_tokens,string"`
	InvestorPortion uint64           `json:"investor_portion,string"`
	PartnerPortion  uint64           `json:"partner_portion,string"`
	ProtocolFee     uint64           `json:"protocol_fee,string"`
	FeeFloored      bool             `json:"fee_floored"`
	NetToInvestors  uint64           `json:"net_to_investors,string"`
	Earnings        EarningsResponse `json:"earnings"`
}

func newDistribution(r *ledger.DistributionReceipt) DistributionResponse {
	return DistributionResponse{
		AssetID:         r.AssetID,
		TokenID:         r.TokenID,
		TotalRevenue:    r.Split.TotalRevenue,
		ExternalTokens:  r.Split.ExternalTokens,
		InvestorPortion: r.Split.InvestorPortion,
		PartnerPortion:  r.Split.PartnerPortion,
		ProtocolFee:     r.Split.ProtocolFee,
		FeeFloored:      r.Split.FeeFloored,
		NetToInvestors:  r.Split.NetToInvestors,
		Earnings:        newEarnings(&r.Earnings),
	}
}

// HistoryResponse is one projected distribution.
type HistoryResponse struct {
	EventID         string `json:"event_id"`
	TotalRevenue    uint64 `json:"total_revenue,string"`
	InvestorPortion uint64 `json:"investor_portion,string"`
	ProtocolFee     uint64 `json:"protocol_fee,string"`
	NetToInvestors  uint64 `json:"net_to_investors,string"`
	ExternalTokens  uint64 `json:"external_tokens,string"`
	TotalSupply     uint64 `json:"total_supply,string"`
	DistributedAt   int64  `json:"distributed_at"`
}

func newHistory(d *domain.Distribution) HistoryResponse {
	return HistoryResponse{
		EventID:         d.EventID,
		TotalRevenue:    d.TotalRevenue,
		InvestorPortion: d.InvestorPortion,
		ProtocolFee:     d.ProtocolFee,
		NetToInvestors:  d.NetToInvestors,
		ExternalTokens:  d.ExternalTokens,
		TotalSupply:     d.TotalSupply,
		DistributedAt:   d.DistributedAt,
	}
}

// AccountResponse is an account's collateral and withdrawal position.
type AccountResponse struct {
	AccountID          string `json:"account_id"`
	RequiredCollateral uint64 `json:"required_collateral,string"`
	LockedCollateral   uint64 `json:"locked_collateral,string"`
	PendingWithdrawal  uint64 `json:"pending_withdrawal,string"`
	UpdatedAt          int64  `json:"updated_at"`
}

func newAccount(p *domain.CollateralPosition) AccountResponse {
	return AccountResponse{
		AccountID:          p.AccountID,
		RequiredCollateral: p.RequiredCollateral,
		LockedCollateral:   p.LockedCollateral,
		PendingWithdrawal:  p.PendingWithdrawal,
		UpdatedAt:          p.UpdatedAt,
	}
}

// YieldResponse is an asset's estimated APR. APR is a percentage with two decimals.
type YieldResponse struct {
	AssetID           uint64 `json:"asset_id"`
	TokenID           uint64 `json:"token_id"`
	APR               string `json:"apr"`
	DistributionCount uint64 `json:"distribution_count"`
}

// AmountResponse carries a single paid-out amount.
type AmountResponse struct {
	Amount uint64 `json:"amount,string"`
}
