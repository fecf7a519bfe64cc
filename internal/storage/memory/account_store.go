package memory

import (
	"context"
	"fmt"

	"revenue-market/internal/domain"
	"revenue-market/internal/storage"
)

type earningsStore struct{ t *tx }

// Get retrieves an aggregate. Returns ErrNotFound if no distribution happened.
func (s earningsStore) Get(_ context.Context, assetID uint64) (*domain.AssetEarnings, error) {
	e, ok := s.t.earnings.get(assetID)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &e, nil
}

// Put inserts or replaces an aggregate.
func (s earningsStore) Put(_ context.Context, e *domain.AssetEarnings) error {
	if e == nil {
		return storage.ErrInvalidInput
	}
	s.t.earnings.put(e.AssetID, *e)
	return nil
}

type accountStore struct{ t *tx }

// Get retrieves a position. Returns ErrNotFound if not exists.
func (s accountStore) Get(_ context.Context, accountID string) (*domain.CollateralPosition, error) {
	p, ok := s.t.accounts.get(accountID)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

// Put inserts or replaces a position.
func (s accountStore) Put(_ context.Context, p *domain.CollateralPosition) error {
	if p == nil || p.AccountID == "" {
		return storage.ErrInvalidInput
	}
	s.t.accounts.put(p.AccountID, *p)
	return nil
}

type balanceStore struct{ t *tx }

// BalanceOf returns the holder's balance, zero if none.
func (s balanceStore) BalanceOf(_ context.Context, holder string, tokenID uint64) (uint64, error) {
	b, _ := s.t.balances.get(balanceKey{holder, tokenID})
	return b, nil
}

// Mint credits amount new tokens to holder.
func (s balanceStore) Mint(_ context.Context, holder string, tokenID, amount uint64) error {
	if holder == "" {
		return storage.ErrInvalidInput
	}
	key := balanceKey{holder, tokenID}
	b, _ := s.t.balances.get(key)
	if b+amount < b {
		return fmt.Errorf("%w: balance overflow", storage.ErrInvalidInput)
	}
	s.t.balances.put(key, b+amount)
	return nil
}

// Transfer moves amount from one holder to another.
func (s balanceStore) Transfer(_ context.Context, from, to string, tokenID, amount uint64) error {
	if from == "" || to == "" {
		return storage.ErrInvalidInput
	}
	if amount == 0 || from == to {
		return nil
	}

	fromKey := balanceKey{from, tokenID}
	toKey := balanceKey{to, tokenID}
	fromBal, _ := s.t.balances.get(fromKey)
	if fromBal < amount {
		return storage.ErrInsufficientBalance
	}
	toBal, _ := s.t.balances.get(toKey)

	s.t.balances.put(fromKey, fromBal-amount)
	s.t.balances.put(toKey, toBal+amount)
	return nil
}

// Holders returns every holder with a positive balance of tokenID.
func (s balanceStore) Holders(_ context.Context, tokenID uint64) (map[string]uint64, error) {
	result := make(map[string]uint64)
	s.t.balances.each(func(k balanceKey, b uint64) {
		if k.tokenID == tokenID && b > 0 {
			result[k.holder] = b
		}
	})
	return result, nil
}

var (
	_ storage.EarningsStore = earningsStore{}
	_ storage.AccountStore  = accountStore{}
	_ storage.BalanceStore  = balanceStore{}
)
