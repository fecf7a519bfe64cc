// Package address validates account identities as base58-encoded ed25519
// public keys.
package address

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// KeyLen is the decoded length of an account address.
const KeyLen = 32

var (
	// ErrInvalidEncoding is returned when an address is not valid base58.
	ErrInvalidEncoding = errors.New("address is not base58")

	// ErrInvalidLength is returned when an address does not decode to KeyLen bytes.
	ErrInvalidLength = errors.New("address has wrong length")

	// ErrOffCurve is returned when an address is not an ed25519 point.
	ErrOffCurve = errors.New("address is not an ed25519 public key")
)

// Validate checks that addr is a base58 ed25519 public key.
func Validate(addr string) error {
	raw, err := base58.Decode(addr)
	if err != nil || addr == "" {
		return fmt.Errorf("%w: %q", ErrInvalidEncoding, addr)
	}
	if len(raw) != KeyLen {
		return fmt.Errorf("%w: %d bytes", ErrInvalidLength, len(raw))
	}
	if !IsOnCurve(raw) {
		return fmt.Errorf("%w: %s", ErrOffCurve, addr)
	}
	return nil
}

// IsOnCurve reports whether point is a valid compressed ed25519 point.
func IsOnCurve(point []byte) bool {
	if len(point) != KeyLen {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

// Validator returns a check that accepts reserved identities unconditionally
// and validates everything else with Validate.
func Validator(reserved ...string) func(string) error {
	allowed := make(map[string]struct{}, len(reserved))
	for _, r := range reserved {
		allowed[r] = struct{}{}
	}
	return func(addr string) error {
		if _, ok := allowed[addr]; ok {
			return nil
		}
		return Validate(addr)
	}
}
