package memory

import (
	"context"
	"sync"

	"revenue-market/internal/domain"
	"revenue-market/internal/storage"
)

type escrowKey struct {
	listingID uint64
	buyer     string
}

type balanceKey struct {
	holder  string
	tokenID uint64
}

// Store is an in-memory implementation of storage.Store.
// Units of work are serialized by a single mutex; writes are staged and
// applied only when fn succeeds. Atomic must not be called from within fn.
type Store struct {
	mu sync.Mutex

	assets   map[uint64]domain.Asset
	tokens   map[uint64]domain.RevenueToken
	listings map[uint64]domain.Listing
	escrows  map[escrowKey]domain.EscrowPosition
	earnings map[uint64]domain.AssetEarnings
	accounts map[string]domain.CollateralPosition
	balances map[balanceKey]uint64
	events   []domain.Event

	nextAssetID   uint64
	nextListingID uint64
}

// NewStore creates a new empty in-memory store.
func NewStore() *Store {
	return &Store{
		assets:        make(map[uint64]domain.Asset),
		tokens:        make(map[uint64]domain.RevenueToken),
		listings:      make(map[uint64]domain.Listing),
		escrows:       make(map[escrowKey]domain.EscrowPosition),
		earnings:      make(map[uint64]domain.AssetEarnings),
		accounts:      make(map[string]domain.CollateralPosition),
		balances:      make(map[balanceKey]uint64),
		nextListingID: 1,
	}
}

// Atomic runs fn under the store lock and commits its writes if it succeeds.
func (s *Store) Atomic(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{
		store:         s,
		assets:        newTable(s.assets),
		tokens:        newTable(s.tokens),
		listings:      newTable(s.listings),
		escrows:       newTable(s.escrows),
		earnings:      newTable(s.earnings),
		accounts:      newTable(s.accounts),
		balances:      newTable(s.balances),
		nextAssetID:   s.nextAssetID,
		nextListingID: s.nextListingID,
	}
	if err := fn(t); err != nil {
		return err
	}

	t.assets.commit()
	t.tokens.commit()
	t.listings.commit()
	t.escrows.commit()
	t.earnings.commit()
	t.accounts.commit()
	t.balances.commit()
	s.events = append(s.events, t.events...)
	s.nextAssetID = t.nextAssetID
	s.nextListingID = t.nextListingID
	return nil
}

// tx is one staged unit of work.
type tx struct {
	store *Store

	assets   *table[uint64, domain.Asset]
	tokens   *table[uint64, domain.RevenueToken]
	listings *table[uint64, domain.Listing]
	escrows  *table[escrowKey, domain.EscrowPosition]
	earnings *table[uint64, domain.AssetEarnings]
	accounts *table[string, domain.CollateralPosition]
	balances *table[balanceKey, uint64]
	events   []domain.Event

	nextAssetID   uint64
	nextListingID uint64
}

func (t *tx) Assets() storage.AssetStore { return assetStore{t} }
func (t *tx) Tokens() storage.RevenueTokenStore { return tokenStore{t} }
func (t *tx) Listings() storage.ListingStore { return listingStore{t} }
func (t *tx) Escrows() storage.EscrowStore { return escrowStore{t} }
func (t *tx) Earnings() storage.EarningsStore { return earningsStore{t} }
func (t *tx) Accounts() storage.AccountStore { return accountStore{t} }
func (t *tx) Balances() storage.BalanceStore { return balanceStore{t} }
func (t *tx) Events() storage.EventStore { return eventStore{t} }

// table overlays staged writes on top of committed rows.
type table[K comparable, V any] struct {
	base  map[K]V
	dirty map[K]V
}

func newTable[K comparable, V any](base map[K]V) *table[K, V] {
	return &table[K, V]{base: base, dirty: make(map[K]V)}
}

func (t *table[K, V]) get(k K) (V, bool) {
	if v, ok := t.dirty[k]; ok {
		return v, true
	}
	v, ok := t.base[k]
	return v, ok
}

func (t *table[K, V]) put(k K, v V) {
	t.dirty[k] = v
}

// each visits the merged view; staged rows shadow committed ones.
func (t *table[K, V]) each(fn func(k K, v V)) {
	for k, v := range t.dirty {
		fn(k, v)
	}
	for k, v := range t.base {
		if _, staged := t.dirty[k]; !staged {
			fn(k, v)
		}
	}
}

func (t *table[K, V]) commit() {
	for k, v := range t.dirty {
		t.base[k] = v
	}
}

// Verify interface compliance at compile time.
var (
	_ storage.Store = (*Store)(nil)
	_ storage.Tx    = (*tx)(nil)
)
