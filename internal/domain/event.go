package domain

// EventType discriminates ledger events.
type EventType string

const (
	EventAssetRegistered     EventType = "ASSET_REGISTERED"
	EventRevenueTokenMinted  EventType = "REVENUE_TOKEN_MINTED"
	EventListingCreated      EventType = "LISTING_CREATED"
	EventPurchaseRecorded    EventType = "PURCHASE_RECORDED"
	EventListingExtended     EventType = "LISTING_EXTENDED"
	EventListingCancelled    EventType = "LISTING_CANCELLED"
	EventListingEnded        EventType = "LISTING_ENDED"
	EventTokensClaimed       EventType = "TOKENS_CLAIMED"
	EventRefundClaimed       EventType = "REFUND_CLAIMED"
	EventEarningsDistributed EventType = "EARNINGS_DISTRIBUTED"
	EventProceedsWithdrawn   EventType = "PROCEEDS_WITHDRAWN"
)

// String returns the string representation of EventType.
func (t EventType) String() string {
	return string(t)
}

// Event is emitted once per state-mutating ledger operation. Fields that do
// not apply to a given type are left zero.
//
// Field usage by type:
//   - REVENUE_TOKEN_MINTED: Amount=supply, Payment=collateral deposit
//   - LISTING_CREATED: Amount=inventory, Payment=price per token, ExpiresAt
//   - LISTING_EXTENDED: ExpiresAt=new expiry
//   - PURCHASE_RECORDED: Amount=tokens, Payment=paid by buyer, Fee, Proceeds=seller credit
//   - LISTING_CANCELLED: Amount=tokens returned to seller, Payment=total refundable
//   - LISTING_ENDED: Actor=caller, Amount=unsold tokens returned, Proceeds, Fee
//   - TOKENS_CLAIMED: Amount; REFUND_CLAIMED: Payment; PROCEEDS_WITHDRAWN: Payment
//   - EARNINGS_DISTRIBUTED: Revenue=gross, Payment=investor portion, Fee, Proceeds=net to investors,
//     Amount=external tokens
type Event struct {
	Seq       uint64 // position in the ordered event log
	ID        string // deterministic id, see idhash.EventID
	Type      EventType
	ListingID uint64
	AssetID   uint64
	TokenID   uint64
	Actor     string
	Amount    uint64
	Payment   uint64
	Fee       uint64
	Proceeds  uint64
	Revenue   uint64
	ExpiresAt int64
	Timestamp int64 // unix seconds
}
