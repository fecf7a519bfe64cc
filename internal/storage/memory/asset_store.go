package memory

import (
	"context"
	"sort"

	"revenue-market/internal/domain"
	"revenue-market/internal/storage"
)

type assetStore struct{ t *tx }

// NextID allocates the next even asset id.
func (s assetStore) NextID(_ context.Context) (uint64, error) {
	id := s.t.nextAssetID
	s.t.nextAssetID += 2
	return id, nil
}

// Insert adds a new asset. Returns ErrDuplicateKey if the id exists.
func (s assetStore) Insert(_ context.Context, a *domain.Asset) error {
	if a == nil || a.Partner == "" {
		return storage.ErrInvalidInput
	}
	if _, exists := s.t.assets.get(a.ID); exists {
		return storage.ErrDuplicateKey
	}
	s.t.assets.put(a.ID, *a)
	return nil
}

// GetByID retrieves an asset. Returns ErrNotFound if not exists.
func (s assetStore) GetByID(_ context.Context, assetID uint64) (*domain.Asset, error) {
	a, ok := s.t.assets.get(assetID)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &a, nil
}

type tokenStore struct{ t *tx }

// Insert adds a new token. Returns ErrDuplicateKey if the token id or asset id is taken.
func (s tokenStore) Insert(_ context.Context, tok *domain.RevenueToken) error {
	if tok == nil {
		return storage.ErrInvalidInput
	}
	if _, exists := s.t.tokens.get(tok.ID); exists {
		return storage.ErrDuplicateKey
	}
	dup := false
	s.t.tokens.each(func(_ uint64, v domain.RevenueToken) {
		if v.AssetID == tok.AssetID {
			dup = true
		}
	})
	if dup {
		return storage.ErrDuplicateKey
	}
	s.t.tokens.put(tok.ID, *tok)
	return nil
}

// GetByID retrieves a token. Returns ErrNotFound if not exists.
func (s tokenStore) GetByID(_ context.Context, tokenID uint64) (*domain.RevenueToken, error) {
	tok, ok := s.t.tokens.get(tokenID)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &tok, nil
}

// GetByAssetID retrieves the token minted for an asset. Returns ErrNotFound if not exists.
func (s tokenStore) GetByAssetID(_ context.Context, assetID uint64) (*domain.RevenueToken, error) {
	var found *domain.RevenueToken
	s.t.tokens.each(func(_ uint64, v domain.RevenueToken) {
		if v.AssetID == assetID {
			tokCopy := v
			found = &tokCopy
		}
	})
	if found == nil {
		return nil, storage.ErrNotFound
	}
	return found, nil
}

// GetAll retrieves all tokens ordered by id ASC.
func (s tokenStore) GetAll(_ context.Context) ([]*domain.RevenueToken, error) {
	var result []*domain.RevenueToken
	s.t.tokens.each(func(_ uint64, v domain.RevenueToken) {
		tokCopy := v
		result = append(result, &tokCopy)
	})

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

var (
	_ storage.AssetStore        = assetStore{}
	_ storage.RevenueTokenStore = tokenStore{}
)
