package domain

// ListingStatus represents the lifecycle state of a marketplace listing.
type ListingStatus string

const (
	ListingStatusActive    ListingStatus = "ACTIVE"
	ListingStatusCancelled ListingStatus = "CANCELLED"
	ListingStatusEnded     ListingStatus = "ENDED"
)

// String returns the string representation of ListingStatus.
func (s ListingStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid value.
func (s ListingStatus) IsValid() bool {
	return s == ListingStatusActive || s == ListingStatusCancelled || s == ListingStatusEnded
}

// IsTerminal reports whether no further transitions are allowed.
func (s ListingStatus) IsTerminal() bool {
	return s == ListingStatusCancelled || s == ListingStatusEnded
}

// Listing is a seller's fixed-price offer for a quantity of revenue tokens.
// Unsold inventory and sold-but-unclaimed tokens sit with EscrowCustodian.
type Listing struct {
	ID      uint64 // assigned at creation
	TokenID uint64 // revenue token being sold
	AssetID uint64 // asset backing the token
	Seller  string // seller identity

	AmountAtCreation uint64 // inventory deposited at creation
	AmountRemaining  uint64 // unsold inventory
	AmountSold       uint64 // cumulative sold while active
	PricePerToken    uint64 // minor units, fixed at creation
	BuyerPaysFee     bool   // true: fee added on top of subtotal; false: fee taken from proceeds

	// Settlement accumulators, resolved at finalize or voided at cancel.
	ProceedsPending  uint64 // seller-credited amount
	FeesPending      uint64 // protocol fee
	PaymentsReceived uint64 // sum of buyer payments

	Status    ListingStatus
	ExpiresAt int64 // unix seconds
	CreatedAt int64 // unix seconds
	ClosedAt  int64 // unix seconds, zero while active
}

// IsExpired reports whether purchases are no longer accepted at now.
func (l *Listing) IsExpired(now int64) bool {
	return now >= l.ExpiresAt
}
