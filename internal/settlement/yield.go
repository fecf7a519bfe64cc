package settlement

import (
	"math/big"

	"github.com/shopspring/decimal"

	"revenue-market/internal/domain"
)

// BenchmarkAPR is the fallback APR percentage (10.00).
var BenchmarkAPR = decimal.New(BenchmarkEarningsBP, -2)

// EstimateAPR derives an annualized percentage rate from an asset's
// distribution history. The result is for display and ranking only.
//
// The benchmark is returned when there is no history, when all distributions
// share one timestamp, or when the token has no value.
func EstimateAPR(price, supply uint64, agg domain.AssetEarnings) decimal.Decimal {
	if agg.DistributionCount == 0 || agg.FirstDistributionAt == 0 {
		return BenchmarkAPR
	}
	duration := agg.LastDistributionAt - agg.FirstDistributionAt
	totalValue := new(big.Int).Mul(new(big.Int).SetUint64(price), new(big.Int).SetUint64(supply))
	if duration <= 0 || totalValue.Sign() == 0 {
		return BenchmarkAPR
	}

	annualized := new(big.Int).Mul(new(big.Int).SetUint64(agg.TotalEarnings), big.NewInt(SecondsPerYear))
	annualized.Quo(annualized, big.NewInt(duration))

	aprBps := annualized.Mul(annualized, big.NewInt(BPPrecision))
	aprBps.Quo(aprBps, totalValue)

	return decimal.NewFromBigInt(aprBps, -2)
}
