package memory

import (
	"context"
	"sort"

	"revenue-market/internal/domain"
	"revenue-market/internal/storage"
)

type listingStore struct{ t *tx }

// NextID allocates the next listing id.
func (s listingStore) NextID(_ context.Context) (uint64, error) {
	id := s.t.nextListingID
	s.t.nextListingID++
	return id, nil
}

// Insert adds a new listing. Returns ErrDuplicateKey if the id exists.
func (s listingStore) Insert(_ context.Context, l *domain.Listing) error {
	if l == nil || l.ID == 0 {
		return storage.ErrInvalidInput
	}
	if _, exists := s.t.listings.get(l.ID); exists {
		return storage.ErrDuplicateKey
	}
	s.t.listings.put(l.ID, *l)
	return nil
}

// GetByID retrieves a listing. Returns ErrNotFound if not exists.
func (s listingStore) GetByID(_ context.Context, listingID uint64) (*domain.Listing, error) {
	l, ok := s.t.listings.get(listingID)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &l, nil
}

// Update replaces a listing. Returns ErrNotFound if not exists.
func (s listingStore) Update(_ context.Context, l *domain.Listing) error {
	if l == nil {
		return storage.ErrInvalidInput
	}
	if _, exists := s.t.listings.get(l.ID); !exists {
		return storage.ErrNotFound
	}
	s.t.listings.put(l.ID, *l)
	return nil
}

// GetByStatus retrieves listings in a status ordered by id ASC.
func (s listingStore) GetByStatus(_ context.Context, status domain.ListingStatus) ([]*domain.Listing, error) {
	return s.filter(func(l domain.Listing) bool { return l.Status == status }), nil
}

// GetBySeller retrieves a seller's listings ordered by id ASC.
func (s listingStore) GetBySeller(_ context.Context, seller string) ([]*domain.Listing, error) {
	return s.filter(func(l domain.Listing) bool { return l.Seller == seller }), nil
}

func (s listingStore) filter(match func(domain.Listing) bool) []*domain.Listing {
	var result []*domain.Listing
	s.t.listings.each(func(_ uint64, l domain.Listing) {
		if match(l) {
			listingCopy := l
			result = append(result, &listingCopy)
		}
	})

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

type escrowStore struct{ t *tx }

// Get retrieves a position. Returns ErrNotFound if not exists.
func (s escrowStore) Get(_ context.Context, listingID uint64, buyer string) (*domain.EscrowPosition, error) {
	p, ok := s.t.escrows.get(escrowKey{listingID, buyer})
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

// Put inserts or replaces a position.
func (s escrowStore) Put(_ context.Context, p *domain.EscrowPosition) error {
	if p == nil || p.Buyer == "" {
		return storage.ErrInvalidInput
	}
	s.t.escrows.put(escrowKey{p.ListingID, p.Buyer}, *p)
	return nil
}

// GetByListing retrieves all positions of a listing ordered by buyer ASC.
func (s escrowStore) GetByListing(_ context.Context, listingID uint64) ([]*domain.EscrowPosition, error) {
	var result []*domain.EscrowPosition
	s.t.escrows.each(func(k escrowKey, p domain.EscrowPosition) {
		if k.listingID == listingID {
			posCopy := p
			result = append(result, &posCopy)
		}
	})

	sort.Slice(result, func(i, j int) bool {
		return result[i].Buyer < result[j].Buyer
	})
	return result, nil
}

var (
	_ storage.ListingStore = listingStore{}
	_ storage.EscrowStore  = escrowStore{}
)
