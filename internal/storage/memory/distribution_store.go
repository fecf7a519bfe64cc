package memory

import (
	"context"
	"sort"
	"sync"

	"revenue-market/internal/domain"
	"revenue-market/internal/storage"
)

// DistributionStore is an in-memory implementation of storage.DistributionHistoryStore.
type DistributionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Distribution // keyed by event_id
}

// NewDistributionStore creates a new in-memory distribution history store.
func NewDistributionStore() *DistributionStore {
	return &DistributionStore{
		data: make(map[string]*domain.Distribution),
	}
}

// Insert adds a distribution. Returns ErrDuplicateKey if event_id exists.
func (s *DistributionStore) Insert(_ context.Context, d *domain.Distribution) error {
	if d == nil || d.EventID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[d.EventID]; exists {
		return storage.ErrDuplicateKey
	}

	dCopy := *d
	s.data[d.EventID] = &dCopy
	return nil
}

// GetByAssetID retrieves an asset's distributions ordered by distributed_at ASC.
func (s *DistributionStore) GetByAssetID(_ context.Context, assetID uint64) ([]*domain.Distribution, error) {
	return s.filter(func(d *domain.Distribution) bool { return d.AssetID == assetID }), nil
}

// GetByTimeRange retrieves distributions within [start, end] (inclusive).
func (s *DistributionStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.Distribution, error) {
	return s.filter(func(d *domain.Distribution) bool {
		return d.DistributedAt >= start && d.DistributedAt <= end
	}), nil
}

func (s *DistributionStore) filter(match func(*domain.Distribution) bool) []*domain.Distribution {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Distribution
	for _, d := range s.data {
		if match(d) {
			dCopy := *d
			result = append(result, &dCopy)
		}
	}

	// Sort by distributed_at ASC, event_id ASC
	sort.Slice(result, func(i, j int) bool {
		if result[i].DistributedAt != result[j].DistributedAt {
			return result[i].DistributedAt < result[j].DistributedAt
		}
		return result[i].EventID < result[j].EventID
	})
	return result
}

var _ storage.DistributionHistoryStore = (*DistributionStore)(nil)
