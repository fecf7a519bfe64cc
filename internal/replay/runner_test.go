package replay

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"revenue-market/internal/domain"
	"revenue-market/internal/events"
	"revenue-market/internal/storage"
	"revenue-market/internal/storage/memory"
)

// seed appends n events to a fresh memory store.
func seed(t *testing.T, n int) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Atomic(ctx, func(tx storage.Tx) error {
		for i := 0; i < n; i++ {
			typ := domain.EventPurchaseRecorded
			if i%3 == 0 {
				typ = domain.EventListingCreated
			}
			if err := tx.Events().Append(ctx, &domain.Event{Type: typ, ListingID: 1, Timestamp: int64(1000 + i)}); err != nil {
				return err
			}
		}
		return nil
	}))
	return store
}

func newRunner(store storage.Store, pageSize int) *Runner {
	logger, _ := test.NewNullLogger()
	return NewRunner(store, pageSize, logger)
}

func seqs(evs []domain.Event) []uint64 {
	out := make([]uint64, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.Seq)
	}
	return out
}

func TestRunner_ReplaysAcrossPages(t *testing.T) {
	tests := []struct {
		name     string
		events   int
		pageSize int
	}{
		{"partial last page", 7, 3},
		{"exact pages", 6, 3},
		{"single page", 4, 10},
		{"empty log", 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := events.NewRecorder()
			last, err := newRunner(seed(t, tt.events), tt.pageSize).RunAll(context.Background(), rec)
			require.NoError(t, err)

			assert.Equal(t, uint64(tt.events), last)
			require.Len(t, rec.Events(), tt.events)
			for i, seq := range seqs(rec.Events()) {
				assert.Equal(t, uint64(i+1), seq)
			}
		})
	}
}

func TestRunner_ResumesAfterSequence(t *testing.T) {
	rec := events.NewRecorder()
	last, err := newRunner(seed(t, 5), 2).Run(context.Background(), 3, rec)
	require.NoError(t, err)

	assert.Equal(t, uint64(5), last)
	assert.Equal(t, []uint64{4, 5}, seqs(rec.Events()))
}

func TestRunner_StopsOnSinkError(t *testing.T) {
	boom := errors.New("broker down")
	var delivered []uint64
	sink := events.SinkFunc(func(_ context.Context, e domain.Event) error {
		if e.Seq == 3 {
			return boom
		}
		delivered = append(delivered, e.Seq)
		return nil
	})

	last, err := newRunner(seed(t, 5), 2).RunAll(context.Background(), sink)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, uint64(2), last)
	assert.Equal(t, []uint64{1, 2}, delivered)
}

func TestRunner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newRunner(seed(t, 3), 2).RunAll(ctx, events.Discard)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_RebuildsDistributionHistory(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Atomic(ctx, func(tx storage.Tx) error {
		return tx.Events().Append(ctx, &domain.Event{
			Type:      domain.EventEarningsDistributed,
			AssetID:   0,
			TokenID:   1,
			Actor:     "partner",
			Amount:    400,
			Payment:   4000,
			Fee:       100,
			Proceeds:  3900,
			Revenue:   10000,
			Timestamp: 1700000000,
		})
	}))

	history := memory.NewDistributionStore()
	projector := events.NewProjector(history, nil)
	r := newRunner(store, 10)

	// Replaying twice leaves a single row.
	for i := 0; i < 2; i++ {
		_, err := r.RunAll(ctx, projector)
		require.NoError(t, err)
	}

	rows, err := history.GetByAssetID(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, uint64(3900), rows[0].NetToInvestors)
}
