package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"revenue-market/internal/domain"
	"revenue-market/internal/settlement"
	"revenue-market/internal/storage"
)

// RegisterAsset records a new asset owned by partner.
func (l *Ledger) RegisterAsset(ctx context.Context, partner, metadataURI string) (*domain.Asset, error) {
	if err := l.checkActor(partner); err != nil {
		return nil, fmt.Errorf("register asset: %w", err)
	}

	var asset domain.Asset
	err := l.execute(ctx, "register_asset", []string{accountKey(partner)}, func(u *unit) error {
		id, err := u.tx.Assets().NextID(u.ctx)
		if err != nil {
			return fmt.Errorf("allocate asset id: %w", err)
		}

		asset = domain.Asset{
			ID:          id,
			Partner:     partner,
			MetadataURI: metadataURI,
			CreatedAt:   u.now,
		}
		if err := u.tx.Assets().Insert(u.ctx, &asset); err != nil {
			return fmt.Errorf("insert asset: %w", err)
		}

		return u.emit(domain.Event{
			Type:    domain.EventAssetRegistered,
			AssetID: id,
			Actor:   partner,
		})
	})
	if err != nil {
		return nil, err
	}

	l.log.WithField("asset", asset.ID).Info("asset registered")
	return &asset, nil
}

// MintRequest describes a revenue token issuance.
type MintRequest struct {
	Partner           string
	AssetID           uint64
	Price             uint64 // minor units per token
	Supply            uint64
	MaturityDate      int64 // unix seconds, must be in the future
	CollateralDeposit uint64
}

// MintRevenueToken issues the revenue token of an asset to its partner. The
// partner must lock at least the collateral the requirement formula asks for.
func (l *Ledger) MintRevenueToken(ctx context.Context, req MintRequest) (*domain.RevenueToken, error) {
	if err := l.checkActor(req.Partner); err != nil {
		return nil, fmt.Errorf("mint: %w", err)
	}
	if req.Price == 0 {
		return nil, fmt.Errorf("mint: %w", ErrInvalidPrice)
	}
	if req.Supply == 0 {
		return nil, fmt.Errorf("mint: %w", ErrInvalidSupply)
	}

	keys := []string{assetKey(req.AssetID), accountKey(req.Partner)}

	var token domain.RevenueToken
	var required uint64
	err := l.execute(ctx, "mint", keys, func(u *unit) error {
		if req.MaturityDate <= u.now {
			return ErrInvalidMaturity
		}

		asset, err := u.tx.Assets().GetByID(u.ctx, req.AssetID)
		if err != nil {
			return mapStorage(err, ErrAssetNotFound)
		}
		if asset.Partner != req.Partner {
			return ErrNotPartner
		}

		if _, err := u.tx.Tokens().GetByAssetID(u.ctx, req.AssetID); err == nil {
			return ErrTokenAlreadyMinted
		} else if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("get token by asset: %w", err)
		}

		tokenID := domain.RevenueTokenIDFor(req.AssetID)
		if existing, err := u.tx.Tokens().GetByID(u.ctx, tokenID); err == nil {
			return fmt.Errorf("%w: token %d belongs to asset %d", ErrTokenIDCollision, tokenID, existing.AssetID)
		} else if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("get token: %w", err)
		}
		if _, err := u.tx.Assets().GetByID(u.ctx, tokenID); err == nil {
			return fmt.Errorf("%w: %d is an asset id", ErrTokenIDCollision, tokenID)
		}

		required, err = l.requirement.RequiredCollateral(req.Price, req.Supply)
		if err != nil {
			return fmt.Errorf("%w: collateral requirement: %v", settlement.ErrAmountOverflow, err)
		}
		if req.CollateralDeposit < required {
			return fmt.Errorf("%w: deposit %d, required %d", ErrInsufficientCollateral, req.CollateralDeposit, required)
		}

		pos, err := l.loadAccount(u, req.Partner)
		if err != nil {
			return err
		}
		if pos.RequiredCollateral, err = checkedAdd(pos.RequiredCollateral, required); err != nil {
			return err
		}
		if pos.LockedCollateral, err = checkedAdd(pos.LockedCollateral, req.CollateralDeposit); err != nil {
			return err
		}
		pos.UpdatedAt = u.now
		if err := u.tx.Accounts().Put(u.ctx, pos); err != nil {
			return fmt.Errorf("put collateral position: %w", err)
		}

		token = domain.RevenueToken{
			ID:           tokenID,
			AssetID:      req.AssetID,
			Price:        req.Price,
			Supply:       req.Supply,
			MaturityDate: req.MaturityDate,
			MintedAt:     u.now,
		}
		if err := u.tx.Tokens().Insert(u.ctx, &token); err != nil {
			return fmt.Errorf("insert token: %w", err)
		}
		if err := u.tx.Balances().Mint(u.ctx, req.Partner, tokenID, req.Supply); err != nil {
			return fmt.Errorf("mint balance: %w", err)
		}

		return u.emit(domain.Event{
			Type:    domain.EventRevenueTokenMinted,
			AssetID: req.AssetID,
			TokenID: tokenID,
			Actor:   req.Partner,
			Amount:  req.Supply,
			Payment: req.CollateralDeposit,
		})
	})
	if err != nil {
		return nil, err
	}

	l.log.WithFields(logrus.Fields{
		"asset":      token.AssetID,
		"token":      token.ID,
		"supply":     token.Supply,
		"collateral": required,
	}).Info("revenue token minted")
	return &token, nil
}

// loadAccount returns the collateral position of id, or a fresh one.
func (l *Ledger) loadAccount(u *unit, id string) (*domain.CollateralPosition, error) {
	pos, err := u.tx.Accounts().Get(u.ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return &domain.CollateralPosition{AccountID: id}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get collateral position: %w", err)
	}
	return pos, nil
}
