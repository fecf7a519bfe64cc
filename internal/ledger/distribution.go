package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"revenue-market/internal/domain"
	"revenue-market/internal/observability"
	"revenue-market/internal/settlement"
	"revenue-market/internal/storage"
)

// DistributeRequest describes an earnings deposit by an asset's partner.
type DistributeRequest struct {
	Partner      string
	AssetID      uint64
	TotalRevenue uint64 // gross revenue reported for the period
	Deposited    uint64 // must equal the investor portion
}

// DistributionReceipt is the outcome of a distribution.
type DistributionReceipt struct {
	AssetID  uint64
	TokenID  uint64
	Split    settlement.DistributionSplit
	Earnings domain.AssetEarnings // aggregate after the distribution
}

// DistributeEarnings records a revenue deposit for an asset. Only the share
// of revenue attributable to tokens outside the partner's custody is owed to
// investors; the protocol fee is taken from that share and credited to the
// treasury.
func (l *Ledger) DistributeEarnings(ctx context.Context, req DistributeRequest) (*DistributionReceipt, error) {
	if err := l.checkActor(req.Partner); err != nil {
		return nil, fmt.Errorf("distribute earnings: %w", err)
	}
	if req.TotalRevenue == 0 {
		return nil, fmt.Errorf("distribute earnings: %w", ErrInvalidAmount)
	}

	keys := []string{assetKey(req.AssetID), accountKey(req.Partner), accountKey(l.treasuryID)}

	receipt := &DistributionReceipt{AssetID: req.AssetID}
	err := l.execute(ctx, "distribute_earnings", keys, func(u *unit) error {
		asset, err := u.tx.Assets().GetByID(u.ctx, req.AssetID)
		if err != nil {
			return mapStorage(err, ErrAssetNotFound)
		}
		if asset.Partner != req.Partner {
			return ErrNotPartner
		}

		token, err := u.tx.Tokens().GetByAssetID(u.ctx, req.AssetID)
		if err != nil {
			return mapStorage(err, ErrTokenNotFound)
		}

		partnerBalance, err := u.tx.Balances().BalanceOf(u.ctx, req.Partner, token.ID)
		if err != nil {
			return fmt.Errorf("partner balance: %w", err)
		}

		split, err := settlement.SplitDistribution(l.params, req.TotalRevenue, token.Supply, partnerBalance)
		if err != nil {
			return err
		}
		if req.Deposited != split.InvestorPortion {
			return fmt.Errorf("%w: deposited %d, investor portion %d", ErrDepositMismatch, req.Deposited, split.InvestorPortion)
		}

		if err := l.credit(u, l.treasuryID, split.ProtocolFee); err != nil {
			return err
		}

		agg, err := u.tx.Earnings().Get(u.ctx, req.AssetID)
		if errors.Is(err, storage.ErrNotFound) {
			agg = &domain.AssetEarnings{AssetID: req.AssetID}
		} else if err != nil {
			return fmt.Errorf("get earnings: %w", err)
		}
		if agg.TotalEarnings, err = checkedAdd(agg.TotalEarnings, split.NetToInvestors); err != nil {
			return err
		}
		if agg.TotalRevenue, err = checkedAdd(agg.TotalRevenue, req.TotalRevenue); err != nil {
			return err
		}
		agg.DistributionCount++
		if agg.FirstDistributionAt == 0 {
			agg.FirstDistributionAt = u.now
		}
		agg.LastDistributionAt = u.now
		if err := u.tx.Earnings().Put(u.ctx, agg); err != nil {
			return fmt.Errorf("put earnings: %w", err)
		}

		receipt.TokenID = token.ID
		receipt.Split = split
		receipt.Earnings = *agg

		return u.emit(domain.Event{
			Type:     domain.EventEarningsDistributed,
			AssetID:  req.AssetID,
			TokenID:  token.ID,
			Actor:    req.Partner,
			Amount:   split.ExternalTokens,
			Payment:  split.InvestorPortion,
			Fee:      split.ProtocolFee,
			Proceeds: split.NetToInvestors,
			Revenue:  req.TotalRevenue,
		})
	})
	if err != nil {
		return nil, err
	}

	observability.RecordDistribution(receipt.Split.NetToInvestors, receipt.Split.ProtocolFee, receipt.Split.FeeFloored)
	l.log.WithFields(logrus.Fields{
		"asset":   req.AssetID,
		"revenue": req.TotalRevenue,
		"net":     receipt.Split.NetToInvestors,
		"fee":     receipt.Split.ProtocolFee,
		"floored": receipt.Split.FeeFloored,
	}).Info("earnings distributed")
	return receipt, nil
}
