// Package settlement holds the pure accounting formulas of the marketplace:
// purchase cost and fee splits, revenue distribution splits with the protocol
// fee floor, and the display-only yield estimate.
//
// All products are computed with math/big and narrowed back to uint64 with an
// explicit overflow check, so no formula silently wraps.
package settlement

import (
	"errors"
	"fmt"
	"math/big"
)

const (
	// ProtocolFeeBps is the protocol fee in basis points (2.5%).
	ProtocolFeeBps = 250
	// BPPrecision is the basis point denominator.
	BPPrecision = 10000
	// BenchmarkEarningsBP is the APR reported when history is insufficient (10.00%).
	BenchmarkEarningsBP = 1000
	// SecondsPerYear is used to annualize earnings.
	SecondsPerYear = 365 * 24 * 60 * 60
)

var (
	// ErrAmountOverflow is returned when a result does not fit in uint64.
	ErrAmountOverflow = errors.New("amount overflows uint64")

	// ErrInvalidParams is returned for fee parameters outside [0, BPPrecision].
	ErrInvalidParams = errors.New("invalid settlement parameters")
)

// Params are the protocol-level settlement knobs.
type Params struct {
	FeeBps         uint64 // fee on purchases and distributions, in basis points
	MinProtocolFee uint64 // floor applied to the distribution fee
}

// DefaultParams returns the protocol defaults: 2.5% fee and no fee floor.
func DefaultParams() Params {
	return Params{FeeBps: ProtocolFeeBps}
}

// Validate checks the parameters are usable.
func (p Params) Validate() error {
	if p.FeeBps > BPPrecision {
		return fmt.Errorf("%w: fee %d bps exceeds %d", ErrInvalidParams, p.FeeBps, BPPrecision)
	}
	return nil
}

// feeOf returns amount × feeBps / BPPrecision, truncating.
func (p Params) feeOf(amount uint64) (uint64, error) {
	return mulDiv(amount, p.FeeBps, BPPrecision)
}

// mul returns a × b or ErrAmountOverflow.
func mul(a, b uint64) (uint64, error) {
	r := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	return narrow(r)
}

// add returns a + b or ErrAmountOverflow.
func add(a, b uint64) (uint64, error) {
	r := new(big.Int).Add(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	return narrow(r)
}

// mulDiv returns a × b / d with a wide intermediate, truncating.
func mulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, errors.New("division by zero")
	}
	r := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	r.Quo(r, new(big.Int).SetUint64(d))
	return narrow(r)
}

func narrow(r *big.Int) (uint64, error) {
	if !r.IsUint64() {
		return 0, ErrAmountOverflow
	}
	return r.Uint64(), nil
}
