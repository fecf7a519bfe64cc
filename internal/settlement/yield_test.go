package settlement

import (
	"math"
	"testing"

	"revenue-market/internal/domain"
)

func TestEstimateAPR_NoDistributions(t *testing.T) {
	apr := EstimateAPR(10, 1000, domain.AssetEarnings{})
	if got := apr.StringFixed(2); got != "10.00" {
		t.Errorf("expected benchmark 10.00, got %s", got)
	}
}

func TestEstimateAPR_ZeroDuration(t *testing.T) {
	// One distribution: first == last
	agg := domain.AssetEarnings{
		TotalEarnings:       100,
		DistributionCount:   1,
		FirstDistributionAt: 1700000000,
		LastDistributionAt:  1700000000,
	}
	apr := EstimateAPR(10, 1000, agg)
	if got := apr.StringFixed(2); got != "10.00" {
		t.Errorf("expected benchmark 10.00, got %s", got)
	}
}

func TestEstimateAPR_ZeroValue(t *testing.T) {
	agg := domain.AssetEarnings{
		TotalEarnings:       100,
		DistributionCount:   2,
		FirstDistributionAt: 1000,
		LastDistributionAt:  2000,
	}
	apr := EstimateAPR(0, 1000, agg)
	if !apr.Equal(BenchmarkAPR) {
		t.Errorf("expected benchmark, got %s", apr)
	}
}

func TestEstimateAPR_Annualizes(t *testing.T) {
	// 1000 earned over half a year on a 10000 valuation → 2000/yr → 20%
	agg := domain.AssetEarnings{
		TotalEarnings:       1000,
		DistributionCount:   2,
		FirstDistributionAt: 1700000000,
		LastDistributionAt:  1700000000 + SecondsPerYear/2,
	}
	apr := EstimateAPR(10, 1000, agg)
	if got := apr.StringFixed(2); got != "20.00" {
		t.Errorf("expected 20.00, got %s", got)
	}
}

func TestEstimateAPR_TwoDecimalPrecision(t *testing.T) {
	// 1234 over a full year on 10000 → 1234 bps → 12.34%
	agg := domain.AssetEarnings{
		TotalEarnings:       1234,
		DistributionCount:   5,
		FirstDistributionAt: 1,
		LastDistributionAt:  1 + SecondsPerYear,
	}
	apr := EstimateAPR(10, 1000, agg)
	if got := apr.StringFixed(2); got != "12.34" {
		t.Errorf("expected 12.34, got %s", got)
	}
}

func TestEstimateAPR_NoOverflow(t *testing.T) {
	// totalEarnings × secondsPerYear is far beyond uint64
	agg := domain.AssetEarnings{
		TotalEarnings:       math.MaxUint64,
		DistributionCount:   2,
		FirstDistributionAt: 1,
		LastDistributionAt:  1 + SecondsPerYear,
	}
	apr := EstimateAPR(1, math.MaxUint64, agg)
	// One year of earnings equal to the total value → 100%
	if got := apr.StringFixed(2); got != "100.00" {
		t.Errorf("expected 100.00, got %s", got)
	}
}
