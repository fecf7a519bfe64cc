package settlement

import (
	"errors"
	"fmt"
)

var (
	// ErrNoExternalHolders is returned when the partner holds the whole supply.
	ErrNoExternalHolders = errors.New("no external token holders")

	// ErrZeroDistribution is returned when the investor portion truncates to zero.
	ErrZeroDistribution = errors.New("investor portion is zero")

	// ErrFeeExceedsPortion is returned when the floored fee would consume more
	// than the investor portion.
	ErrFeeExceedsPortion = errors.New("protocol fee exceeds investor portion")

	// ErrInvalidSupply is returned for a zero supply or a partner balance above supply.
	ErrInvalidSupply = errors.New("invalid token supply")
)

// DistributionSplit is the breakdown of a revenue deposit.
type DistributionSplit struct {
	TotalRevenue    uint64 // gross revenue reported by the partner
	TotalSupply     uint64
	ExternalTokens  uint64 // supply not held by the partner
	InvestorPortion uint64 // revenue × external / supply, the amount the partner deposits
	PartnerPortion  uint64 // retained by the partner, never transferred
	CalculatedFee   uint64 // investor portion × fee bps
	ProtocolFee     uint64 // max(calculated, floor)
	FeeFloored      bool   // true when the floor was applied
	NetToInvestors  uint64
}

// SplitDistribution computes how totalRevenue divides between the partner,
// external holders and the protocol.
func SplitDistribution(p Params, totalRevenue, totalSupply, partnerBalance uint64) (DistributionSplit, error) {
	if totalSupply == 0 || partnerBalance > totalSupply {
		return DistributionSplit{}, fmt.Errorf("%w: supply %d, partner balance %d", ErrInvalidSupply, totalSupply, partnerBalance)
	}

	external := totalSupply - partnerBalance
	if external == 0 {
		return DistributionSplit{}, ErrNoExternalHolders
	}

	investor, err := mulDiv(totalRevenue, external, totalSupply)
	if err != nil {
		return DistributionSplit{}, err
	}
	if investor == 0 {
		return DistributionSplit{}, ErrZeroDistribution
	}

	calculated, err := p.feeOf(investor)
	if err != nil {
		return DistributionSplit{}, err
	}
	fee := calculated
	floored := false
	if fee < p.MinProtocolFee {
		fee = p.MinProtocolFee
		floored = true
	}
	if fee > investor {
		return DistributionSplit{}, fmt.Errorf("%w: fee %d, portion %d", ErrFeeExceedsPortion, fee, investor)
	}

	return DistributionSplit{
		TotalRevenue:    totalRevenue,
		TotalSupply:     totalSupply,
		ExternalTokens:  external,
		InvestorPortion: investor,
		PartnerPortion:  totalRevenue - investor,
		CalculatedFee:   calculated,
		ProtocolFee:     fee,
		FeeFloored:      floored,
		NetToInvestors:  investor - fee,
	}, nil
}
