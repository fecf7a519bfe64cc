package ledger

import (
	"errors"

	"revenue-market/internal/settlement"
	"revenue-market/internal/storage"
)

// Kind classifies ledger errors for callers that need to react to the class
// of a failure rather than the specific reason.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindState
	KindAuthorization
	KindArithmetic
	KindNotFound
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindAuthorization:
		return "authorization"
	case KindArithmetic:
		return "arithmetic"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Validation errors.
var (
	ErrMissingActor           = errors.New("actor is required")
	ErrInvalidActor           = errors.New("actor is not a valid account")
	ErrReservedActor          = errors.New("actor is a reserved ledger account")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInvalidPrice           = errors.New("price must be positive")
	ErrInvalidSupply          = errors.New("supply must be positive")
	ErrInvalidDuration        = errors.New("duration must be positive")
	ErrInvalidMaturity        = errors.New("maturity date must be in the future")
	ErrInsufficientInventory  = errors.New("amount exceeds remaining inventory")
	ErrInsufficientBalance    = errors.New("insufficient token balance")
	ErrInsufficientCollateral = errors.New("collateral deposit below requirement")
	ErrDepositMismatch        = errors.New("deposit does not equal investor portion")
)

// State errors.
var (
	ErrListingNotActive    = errors.New("listing is not active")
	ErrListingExpired      = errors.New("listing has expired")
	ErrListingNotEnded     = errors.New("listing has not ended")
	ErrListingNotCancelled = errors.New("listing is not cancelled")
	ErrNothingToClaim      = errors.New("nothing to claim")
	ErrNothingToWithdraw   = errors.New("nothing to withdraw")
	ErrTokenAlreadyMinted  = errors.New("asset already has a revenue token")
	ErrTokenIDCollision    = errors.New("derived revenue token id is taken")
)

// Authorization errors.
var (
	ErrNotSeller  = errors.New("caller is not the listing seller")
	ErrNotPartner = errors.New("caller is not the asset partner")
)

// Not found errors.
var (
	ErrAssetNotFound   = errors.New("asset not found")
	ErrTokenNotFound   = errors.New("revenue token not found")
	ErrListingNotFound = errors.New("listing not found")
	ErrAccountNotFound = errors.New("account not found")
)

var kinds = []struct {
	kind Kind
	errs []error
}{
	{KindValidation, []error{
		ErrMissingActor, ErrInvalidActor, ErrReservedActor, ErrInvalidAmount, ErrInvalidPrice,
		ErrInvalidSupply, ErrInvalidDuration, ErrInvalidMaturity, ErrInsufficientInventory,
		ErrInsufficientBalance, ErrInsufficientCollateral, ErrDepositMismatch,
		storage.ErrInvalidInput,
	}},
	{KindState, []error{
		ErrListingNotActive, ErrListingExpired, ErrListingNotEnded, ErrListingNotCancelled,
		ErrNothingToClaim, ErrNothingToWithdraw, ErrTokenAlreadyMinted, ErrTokenIDCollision,
		settlement.ErrNoExternalHolders,
	}},
	{KindAuthorization, []error{ErrNotSeller, ErrNotPartner}},
	{KindArithmetic, []error{
		settlement.ErrAmountOverflow, settlement.ErrZeroDistribution, settlement.ErrFeeExceedsPortion,
	}},
	{KindNotFound, []error{ErrAssetNotFound, ErrTokenNotFound, ErrListingNotFound, ErrAccountNotFound}},
}

// KindOf returns the class of err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	for _, group := range kinds {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.kind
			}
		}
	}
	return KindInternal
}
