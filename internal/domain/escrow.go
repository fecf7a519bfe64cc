package domain

// EscrowCustodian is the reserved holder that keeps listed inventory and
// purchased-but-unclaimed tokens.
const EscrowCustodian = "marketplace-escrow"

// EscrowPosition tracks what a single buyer is owed on a single listing.
// Which balance is claimable depends on the listing's terminal status:
// ENDED pays TokensOwed, CANCELLED pays PaymentOwed.
type EscrowPosition struct {
	ListingID uint64
	Buyer     string

	TokensOwed  uint64 // pending token claim
	PaymentOwed uint64 // pending refund, only set by cancellation

	TokensPurchased uint64 // cumulative tokens bought
	PaymentMade     uint64 // cumulative amount actually paid, fee-inclusive when buyer pays fee

	UpdatedAt int64 // unix seconds
	ClaimedAt int64 // unix seconds of the last successful claim, zero if none
}
