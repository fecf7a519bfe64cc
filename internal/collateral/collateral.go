// Package collateral defines how much collateral a partner must lock when
// minting revenue tokens. The real formula belongs to the host; the ledger only
// consumes it through Requirement.
package collateral

import (
	"errors"
	"fmt"
	"math/big"
)

// MaxRatioBps bounds RatioRequirement to 10x the token value.
const MaxRatioBps = 100000

// ErrInvalidRatio is returned for a ratio outside (0, MaxRatioBps].
var ErrInvalidRatio = errors.New("invalid collateral ratio")

// Requirement computes the collateral owed for minting supply tokens at price.
type Requirement interface {
	RequiredCollateral(price, supply uint64) (uint64, error)
}

// RequirementFunc adapts a plain function to Requirement.
type RequirementFunc func(price, supply uint64) (uint64, error)

// RequiredCollateral calls f.
func (f RequirementFunc) RequiredCollateral(price, supply uint64) (uint64, error) {
	return f(price, supply)
}

// RatioRequirement requires a fixed share of the minted value, in basis points.
type RatioRequirement struct {
	Bps uint64
}

// NewRatioRequirement validates bps and returns a RatioRequirement.
func NewRatioRequirement(bps uint64) (RatioRequirement, error) {
	if bps == 0 || bps > MaxRatioBps {
		return RatioRequirement{}, fmt.Errorf("%w: %d bps", ErrInvalidRatio, bps)
	}
	return RatioRequirement{Bps: bps}, nil
}

// RequiredCollateral returns ceil(price × supply × Bps / 10000).
func (r RatioRequirement) RequiredCollateral(price, supply uint64) (uint64, error) {
	v := new(big.Int).Mul(new(big.Int).SetUint64(price), new(big.Int).SetUint64(supply))
	v.Mul(v, new(big.Int).SetUint64(r.Bps))

	q, m := new(big.Int).QuoRem(v, big.NewInt(10000), new(big.Int))
	if m.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	if !q.IsUint64() {
		return 0, fmt.Errorf("collateral for price %d supply %d overflows", price, supply)
	}
	return q.Uint64(), nil
}

// None requires no collateral.
var None Requirement = RequirementFunc(func(uint64, uint64) (uint64, error) { return 0, nil })
