package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"revenue-market/internal/domain"
	"revenue-market/internal/storage"
)

var errAbort = errors.New("abort")

func TestStore_AtomicCommit(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	err := store.Atomic(ctx, func(tx storage.Tx) error {
		id, err := tx.Listings().NextID(ctx)
		if err != nil {
			return err
		}
		if err := tx.Listings().Insert(ctx, &domain.Listing{ID: id, Seller: "alice", Status: domain.ListingStatusActive}); err != nil {
			return err
		}
		return tx.Balances().Mint(ctx, "alice", 1, 100)
	})
	if err != nil {
		t.Fatalf("Atomic failed: %v", err)
	}

	err = store.Atomic(ctx, func(tx storage.Tx) error {
		l, err := tx.Listings().GetByID(ctx, 1)
		if err != nil {
			return err
		}
		if l.Seller != "alice" {
			t.Errorf("Seller mismatch: got %s, want alice", l.Seller)
		}
		bal, err := tx.Balances().BalanceOf(ctx, "alice", 1)
		if err != nil {
			return err
		}
		if bal != 100 {
			t.Errorf("Balance mismatch: got %d, want 100", bal)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Atomic read failed: %v", err)
	}
}

func TestStore_AtomicRollback(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	err := store.Atomic(ctx, func(tx storage.Tx) error {
		if err := tx.Balances().Mint(ctx, "alice", 1, 100); err != nil {
			return err
		}
		if _, err := tx.Listings().NextID(ctx); err != nil {
			return err
		}
		if err := tx.Events().Append(ctx, &domain.Event{Type: domain.EventListingCreated, Timestamp: 1}); err != nil {
			return err
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("Expected errAbort, got %v", err)
	}

	err = store.Atomic(ctx, func(tx storage.Tx) error {
		bal, _ := tx.Balances().BalanceOf(ctx, "alice", 1)
		if bal != 0 {
			t.Errorf("Balance should be rolled back, got %d", bal)
		}
		id, _ := tx.Listings().NextID(ctx)
		if id != 1 {
			t.Errorf("Listing id should be reused after rollback, got %d", id)
		}
		events, _ := tx.Events().GetAfter(ctx, 0, 0)
		if len(events) != 0 {
			t.Errorf("Events should be rolled back, got %d", len(events))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Atomic failed: %v", err)
	}
}

func TestStore_AtomicCancelledContext(t *testing.T) {
	store := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := store.Atomic(ctx, func(tx storage.Tx) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if called {
		t.Error("fn should not run on a cancelled context")
	}
}

func TestStore_ReadYourWrites(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	err := store.Atomic(ctx, func(tx storage.Tx) error {
		l := &domain.Listing{ID: 7, Seller: "alice", Status: domain.ListingStatusActive, AmountRemaining: 10}
		if err := tx.Listings().Insert(ctx, l); err != nil {
			return err
		}
		l.AmountRemaining = 4
		if err := tx.Listings().Update(ctx, l); err != nil {
			return err
		}
		got, err := tx.Listings().GetByID(ctx, 7)
		if err != nil {
			return err
		}
		if got.AmountRemaining != 4 {
			t.Errorf("AmountRemaining mismatch: got %d, want 4", got.AmountRemaining)
		}
		active, _ := tx.Listings().GetByStatus(ctx, domain.ListingStatusActive)
		if len(active) != 1 {
			t.Errorf("Expected 1 active listing, got %d", len(active))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Atomic failed: %v", err)
	}
}

func TestStore_IDAllocation(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	var assetIDs, listingIDs []uint64
	for i := 0; i < 3; i++ {
		err := store.Atomic(ctx, func(tx storage.Tx) error {
			a, _ := tx.Assets().NextID(ctx)
			l, _ := tx.Listings().NextID(ctx)
			assetIDs = append(assetIDs, a)
			listingIDs = append(listingIDs, l)
			return nil
		})
		if err != nil {
			t.Fatalf("Atomic failed: %v", err)
		}
	}

	wantAssets := []uint64{0, 2, 4}
	wantListings := []uint64{1, 2, 3}
	for i := range wantAssets {
		if assetIDs[i] != wantAssets[i] {
			t.Errorf("asset id %d: got %d, want %d", i, assetIDs[i], wantAssets[i])
		}
		if listingIDs[i] != wantListings[i] {
			t.Errorf("listing id %d: got %d, want %d", i, listingIDs[i], wantListings[i])
		}
	}
}

func TestStore_ConcurrentAtomic(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Atomic(ctx, func(tx storage.Tx) error {
				return tx.Balances().Mint(ctx, "alice", 1, 1)
			})
		}()
	}
	wg.Wait()

	_ = store.Atomic(ctx, func(tx storage.Tx) error {
		bal, _ := tx.Balances().BalanceOf(ctx, "alice", 1)
		if bal != workers {
			t.Errorf("Balance mismatch: got %d, want %d", bal, workers)
		}
		return nil
	})
}
