package events

import (
	"revenue-market/internal/domain"
)

// Envelope is the JSON wire form of a ledger event shared by the broker and
// the live feed. Amounts are encoded as strings so that uint64 values survive
// JavaScript consumers.
type Envelope struct {
	Seq       uint64 `json:"seq"`
	ID        string `json:"id"`
	Type      string `json:"type"`
	ListingID uint64 `json:"listing_id,omitempty"`
	AssetID   uint64 `json:"asset_id"`
	TokenID   uint64 `json:"token_id,omitempty"`
	Actor     string `json:"actor,omitempty"`
	Amount    uint64 `json:"amount,string"`
	Payment   uint64 `json:"payment,string"`
	Fee       uint64 `json:"fee,string"`
	Proceeds  uint64 `json:"proceeds,string"`
	Revenue   uint64 `json:"revenue,string"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// NewEnvelope converts a ledger event to its wire form.
func NewEnvelope(e domain.Event) Envelope {
	return Envelope{
		Seq:       e.Seq,
		ID:        e.ID,
		Type:      string(e.Type),
		ListingID: e.ListingID,
		AssetID:   e.AssetID,
		TokenID:   e.TokenID,
		Actor:     e.Actor,
		Amount:    e.Amount,
		Payment:   e.Payment,
		Fee:       e.Fee,
		Proceeds:  e.Proceeds,
		Revenue:   e.Revenue,
		ExpiresAt: e.ExpiresAt,
		Timestamp: e.Timestamp,
	}
}

// Event converts the wire form back to a ledger event.
func (env Envelope) Event() domain.Event {
	return domain.Event{
		Seq:       env.Seq,
		ID:        env.ID,
		Type:      domain.EventType(env.Type),
		ListingID: env.ListingID,
		AssetID:   env.AssetID,
		TokenID:   env.TokenID,
		Actor:     env.Actor,
		Amount:    env.Amount,
		Payment:   env.Payment,
		Fee:       env.Fee,
		Proceeds:  env.Proceeds,
		Revenue:   env.Revenue,
		ExpiresAt: env.ExpiresAt,
		Timestamp: env.Timestamp,
	}
}
