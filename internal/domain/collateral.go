package domain

// CollateralPosition is the per-account bookkeeping of locked collateral and
// proceeds awaiting withdrawal. The protocol treasury uses the same shape.
type CollateralPosition struct {
	AccountID          string
	RequiredCollateral uint64 // sum of requirements over minted tokens
	LockedCollateral   uint64 // sum of deposits
	PendingWithdrawal  uint64
	UpdatedAt          int64 // unix seconds
}
