package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"revenue-market/internal/domain"
	"revenue-market/internal/storage"
	"revenue-market/internal/storage/migrations"
)

func seedListing(t *testing.T, store *Store) *domain.Listing {
	t.Helper()
	ctx := context.Background()

	var listing *domain.Listing
	atomic(t, store, func(tx storage.Tx) error {
		assetID, err := tx.Assets().NextID(ctx)
		if err != nil {
			return err
		}
		if err := tx.Assets().Insert(ctx, &domain.Asset{ID: assetID, Partner: "partner", CreatedAt: 100}); err != nil {
			return err
		}
		tokenID := domain.RevenueTokenIDFor(assetID)
		if err := tx.Tokens().Insert(ctx, &domain.RevenueToken{ID: tokenID, AssetID: assetID, Price: 50, Supply: 1000, MaturityDate: 999, MintedAt: 100}); err != nil {
			return err
		}
		listingID, err := tx.Listings().NextID(ctx)
		if err != nil {
			return err
		}
		listing = &domain.Listing{
			ID: listingID, TokenID: tokenID, AssetID: assetID, Seller: "partner",
			AmountAtCreation: 100, AmountRemaining: 100, PricePerToken: 50,
			Status: domain.ListingStatusActive, ExpiresAt: 1000, CreatedAt: 100,
		}
		return tx.Listings().Insert(ctx, listing)
	})
	return listing
}

func TestStore_AssetAndTokenRoundTrip(t *testing.T) {
	pool := setupTestDB(t)

	store := NewStore(pool)
	ctx := context.Background()
	listing := seedListing(t, store)

	atomic(t, store, func(tx storage.Tx) error {
		a, err := tx.Assets().GetByID(ctx, listing.AssetID)
		require.NoError(t, err)
		assert.Equal(t, "partner", a.Partner)

		tok, err := tx.Tokens().GetByAssetID(ctx, listing.AssetID)
		require.NoError(t, err)
		assert.Equal(t, listing.TokenID, tok.ID)
		assert.Equal(t, uint64(1000), tok.Supply)

		_, err = tx.Tokens().GetByID(ctx, 12345)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		err = tx.Tokens().Insert(ctx, &domain.RevenueToken{ID: 77, AssetID: listing.AssetID})
		assert.ErrorIs(t, err, storage.ErrDuplicateKey)
		return nil
	})
}

func TestStore_SequencesAreGapless(t *testing.T) {
	pool := setupTestDB(t)

	store := NewStore(pool)
	ctx := context.Background()
	errAbort := errors.New("abort")

	err := store.Atomic(ctx, func(tx storage.Tx) error {
		id, err := tx.Assets().NextID(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), id)
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	atomic(t, store, func(tx storage.Tx) error {
		first, err := tx.Assets().NextID(ctx)
		require.NoError(t, err)
		second, err := tx.Assets().NextID(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), first)
		assert.Equal(t, uint64(2), second)

		listingID, err := tx.Listings().NextID(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), listingID)
		return nil
	})
}

func TestStore_ListingUpdateAndQueries(t *testing.T) {
	pool := setupTestDB(t)

	store := NewStore(pool)
	ctx := context.Background()
	listing := seedListing(t, store)

	atomic(t, store, func(tx storage.Tx) error {
		l, err := tx.Listings().GetByID(ctx, listing.ID)
		require.NoError(t, err)
		l.AmountRemaining = 0
		l.Status = domain.ListingStatusEnded
		l.ClosedAt = 500
		return tx.Listings().Update(ctx, l)
	})

	atomic(t, store, func(tx storage.Tx) error {
		ended, err := tx.Listings().GetByStatus(ctx, domain.ListingStatusEnded)
		require.NoError(t, err)
		require.Len(t, ended, 1)
		assert.Equal(t, int64(500), ended[0].ClosedAt)

		active, err := tx.Listings().GetByStatus(ctx, domain.ListingStatusActive)
		require.NoError(t, err)
		assert.Empty(t, active)

		bySeller, err := tx.Listings().GetBySeller(ctx, "partner")
		require.NoError(t, err)
		assert.Len(t, bySeller, 1)

		err = tx.Listings().Update(ctx, &domain.Listing{ID: 999, Status: domain.ListingStatusEnded})
		assert.ErrorIs(t, err, storage.ErrNotFound)
		return nil
	})
}

func TestStore_EscrowUpsert(t *testing.T) {
	pool := setupTestDB(t)

	store := NewStore(pool)
	ctx := context.Background()
	listing := seedListing(t, store)

	atomic(t, store, func(tx storage.Tx) error {
		p := &domain.EscrowPosition{ListingID: listing.ID, Buyer: "bob", TokensOwed: 5, TokensPurchased: 5, PaymentMade: 250}
		require.NoError(t, tx.Escrows().Put(ctx, p))
		p.TokensOwed = 0
		p.ClaimedAt = 700
		return tx.Escrows().Put(ctx, p)
	})

	atomic(t, store, func(tx storage.Tx) error {
		p, err := tx.Escrows().Get(ctx, listing.ID, "bob")
		require.NoError(t, err)
		assert.Equal(t, uint64(0), p.TokensOwed)
		assert.Equal(t, uint64(5), p.TokensPurchased)
		assert.Equal(t, int64(700), p.ClaimedAt)

		positions, err := tx.Escrows().GetByListing(ctx, listing.ID)
		require.NoError(t, err)
		assert.Len(t, positions, 1)
		return nil
	})
}

func TestStore_BalancesAndRollback(t *testing.T) {
	pool := setupTestDB(t)

	store := NewStore(pool)
	ctx := context.Background()

	atomic(t, store, func(tx storage.Tx) error {
		return tx.Balances().Mint(ctx, "alice", 1, 100)
	})

	err := store.Atomic(ctx, func(tx storage.Tx) error {
		require.NoError(t, tx.Balances().Transfer(ctx, "alice", domain.EscrowCustodian, 1, 60))
		return tx.Balances().Transfer(ctx, "alice", "bob", 1, 60)
	})
	require.ErrorIs(t, err, storage.ErrInsufficientBalance)

	atomic(t, store, func(tx storage.Tx) error {
		holders, err := tx.Balances().Holders(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, map[string]uint64{"alice": 100}, holders)

		bal, err := tx.Balances().BalanceOf(ctx, "nobody", 1)
		require.NoError(t, err)
		assert.Zero(t, bal)
		return nil
	})
}

func TestStore_EventsAndAccounts(t *testing.T) {
	pool := setupTestDB(t)

	store := NewStore(pool)
	ctx := context.Background()

	atomic(t, store, func(tx storage.Tx) error {
		for i := 0; i < 3; i++ {
			e := &domain.Event{Type: domain.EventPurchaseRecorded, ListingID: 1, Actor: "bob", Amount: uint64(i + 1), Timestamp: 100}
			require.NoError(t, tx.Events().Append(ctx, e))
			assert.Equal(t, uint64(i+1), e.Seq)
			assert.NotEmpty(t, e.ID)
		}
		require.NoError(t, tx.Accounts().Put(ctx, &domain.CollateralPosition{AccountID: "partner", LockedCollateral: 10, UpdatedAt: 1}))
		return tx.Earnings().Put(ctx, &domain.AssetEarnings{AssetID: 0, TotalEarnings: 5, DistributionCount: 1})
	})

	atomic(t, store, func(tx storage.Tx) error {
		events, err := tx.Events().GetAfter(ctx, 1, 1)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, uint64(2), events[0].Seq)
		assert.Equal(t, domain.EventPurchaseRecorded, events[0].Type)

		byListing, err := tx.Events().GetByListing(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, byListing, 3)

		acct, err := tx.Accounts().Get(ctx, "partner")
		require.NoError(t, err)
		assert.Equal(t, uint64(10), acct.LockedCollateral)

		_, err = tx.Earnings().Get(ctx, 2)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		return nil
	})
}

func TestStore_ConcurrentTransfersSerialize(t *testing.T) {
	pool := setupTestDB(t)

	store := NewStore(pool)
	ctx := context.Background()

	atomic(t, store, func(tx storage.Tx) error {
		return tx.Balances().Mint(ctx, "alice", 1, 10)
	})

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Atomic(ctx, func(tx storage.Tx) error {
				return tx.Balances().Transfer(ctx, "alice", "bob", 1, 1)
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	atomic(t, store, func(tx storage.Tx) error {
		holders, err := tx.Balances().Holders(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, map[string]uint64{"bob": 10}, holders)
		return nil
	})
}

func TestStore_FirstCreditSerializesAcrossStores(t *testing.T) {
	pool := setupTestDB(t)

	// Separate stores on one pool run on separate sessions, as two servers would.
	stores := []*Store{NewStore(pool), NewStore(pool)}
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, 2*workers)
	for i := 0; i < workers; i++ {
		store := stores[i%len(stores)]
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs <- store.Atomic(ctx, func(tx storage.Tx) error {
				pos, err := tx.Accounts().Get(ctx, "seller")
				if errors.Is(err, storage.ErrNotFound) {
					pos, err = &domain.CollateralPosition{AccountID: "seller"}, nil
				}
				if err != nil {
					return err
				}
				pos.PendingWithdrawal += 10
				return tx.Accounts().Put(ctx, pos)
			})
		}()
		go func() {
			defer wg.Done()
			errs <- store.Atomic(ctx, func(tx storage.Tx) error {
				agg, err := tx.Earnings().Get(ctx, 7)
				if errors.Is(err, storage.ErrNotFound) {
					agg, err = &domain.AssetEarnings{AssetID: 7}, nil
				}
				if err != nil {
					return err
				}
				agg.TotalEarnings += 5
				agg.DistributionCount++
				return tx.Earnings().Put(ctx, agg)
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	atomic(t, stores[0], func(tx storage.Tx) error {
		pos, err := tx.Accounts().Get(ctx, "seller")
		require.NoError(t, err)
		assert.Equal(t, uint64(10*workers), pos.PendingWithdrawal)

		agg, err := tx.Earnings().Get(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, uint64(workers), agg.DistributionCount)
		assert.Equal(t, uint64(5*workers), agg.TotalEarnings)
		return nil
	})
}

func TestPool_HealthyAndMigrationsRerun(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	logger, _ := test.NewNullLogger()

	require.NoError(t, pool.Healthy(ctx))

	// A second run finds every file recorded and leaves the sequences alone.
	atomic(t, NewStore(pool), func(tx storage.Tx) error {
		_, err := tx.Listings().NextID(ctx)
		return err
	})
	require.NoError(t, migrations.RunPostgresMigrations(ctx, pool, logger))
	atomic(t, NewStore(pool), func(tx storage.Tx) error {
		id, err := tx.Listings().NextID(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), id)
		return nil
	})

	_, err := pool.Exec(ctx, `DELETE FROM ledger_sequences`)
	require.NoError(t, err)
	assert.Error(t, pool.Healthy(ctx))
}
