package events

import (
	"context"
	"errors"
	"fmt"

	"revenue-market/internal/domain"
	"revenue-market/internal/storage"
)

// TokenLookup resolves the token supply an EARNINGS_DISTRIBUTED event does
// not carry.
type TokenLookup interface {
	Token(ctx context.Context, tokenID uint64) (*domain.RevenueToken, error)
}

// Projector writes EARNINGS_DISTRIBUTED events into the distribution history.
// Other event types are ignored. Replays are idempotent.
type Projector struct {
	store  storage.DistributionHistoryStore
	lookup TokenLookup
}

// NewProjector creates a projector writing to store. lookup may be nil, in
// which case supply is left zero.
func NewProjector(store storage.DistributionHistoryStore, lookup TokenLookup) *Projector {
	return &Projector{store: store, lookup: lookup}
}

// Publish projects e if it is a distribution.
func (p *Projector) Publish(ctx context.Context, e domain.Event) error {
	if e.Type != domain.EventEarningsDistributed {
		return nil
	}

	d := &domain.Distribution{
		EventID:         e.ID,
		AssetID:         e.AssetID,
		TokenID:         e.TokenID,
		Partner:         e.Actor,
		TotalRevenue:    e.Revenue,
		InvestorPortion: e.Payment,
		PartnerPortion:  e.Revenue - e.Payment,
		ProtocolFee:     e.Fee,
		NetToInvestors:  e.Proceeds,
		ExternalTokens:  e.Amount,
		DistributedAt:   e.Timestamp,
	}

	if p.lookup != nil {
		tok, err := p.lookup.Token(ctx, e.TokenID)
		if err != nil {
			return fmt.Errorf("lookup token %d: %w", e.TokenID, err)
		}
		d.TotalSupply = tok.Supply
	}

	err := p.store.Insert(ctx, d)
	if errors.Is(err, storage.ErrDuplicateKey) {
		return nil
	}
	return err
}
