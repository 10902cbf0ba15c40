package chain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/collectmall/collectmall-backend/pkg/db/models"
	"github.com/collectmall/collectmall-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a chain asset repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateCollection(ctx context.Context, row *models.Collection) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) CreateBlindBox(ctx context.Context, row *models.BlindBox) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) CreateHeldCollection(ctx context.Context, row *models.HeldCollection) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) FindCollectionByChainIdentifier(ctx context.Context, identifier string) (*models.Collection, error) {
	var row models.Collection
	err := r.db.WithContext(ctx).Where("chain_identifier = ?", identifier).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindBlindBoxByChainIdentifier(ctx context.Context, identifier string) (*models.BlindBox, error) {
	var row models.BlindBox
	err := r.db.WithContext(ctx).Where("chain_identifier = ?", identifier).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindHeldCollectionByChainIdentifier(ctx context.Context, identifier string) (*models.HeldCollection, error) {
	var row models.HeldCollection
	err := r.db.WithContext(ctx).Where("chain_identifier = ?", identifier).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindCollectionByGoodsID(ctx context.Context, goodsID uuid.UUID) (*models.Collection, error) {
	var row models.Collection
	err := r.db.WithContext(ctx).Where("goods_id = ?", goodsID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindBlindBoxByGoodsID(ctx context.Context, goodsID uuid.UUID) (*models.BlindBox, error) {
	var row models.BlindBox
	err := r.db.WithContext(ctx).Where("goods_id = ?", goodsID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindHeldCollectionByID(ctx context.Context, id uuid.UUID) (*models.HeldCollection, error) {
	var row models.HeldCollection
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repository) MarkCollectionSucceed(ctx context.Context, identifier, nftID, txHash string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Collection{}).
		Where("chain_identifier = ? AND state = ?", identifier, enums.CollectionStatePending).
		Updates(map[string]any{
			"state":        enums.CollectionStateSucceed,
			"nft_id":       nftID,
			"tx_hash":      txHash,
			"confirmed_at": at,
			"updated_at":   at,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *repository) MarkBlindBoxSucceed(ctx context.Context, identifier, nftID, txHash string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.BlindBox{}).
		Where("chain_identifier = ? AND state = ?", identifier, enums.BlindBoxStatePending).
		Updates(map[string]any{
			"state":        enums.BlindBoxStateSucceed,
			"nft_id":       nftID,
			"tx_hash":      txHash,
			"confirmed_at": at,
			"updated_at":   at,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *repository) ActivateHeldCollection(ctx context.Context, identifier, nftID, txHash string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.HeldCollection{}).
		Where("chain_identifier = ? AND state = ?", identifier, enums.HeldCollectionStateInit).
		Updates(map[string]any{
			"state":        enums.HeldCollectionStateActive,
			"nft_id":       nftID,
			"tx_hash":      txHash,
			"activated_at": at,
			"updated_at":   at,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *repository) MarkHeldCollectionDestroying(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.HeldCollection{}).
		Where("id = ? AND state = ?", id, enums.HeldCollectionStateActive).
		Updates(map[string]any{
			"state":        enums.HeldCollectionStateDestroying,
			"submitted_at": at,
			"updated_at":   at,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *repository) MarkHeldCollectionDestroyed(ctx context.Context, identifier, txHash string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.HeldCollection{}).
		Where("chain_identifier = ? AND state = ?", identifier, enums.HeldCollectionStateDestroying).
		Updates(map[string]any{
			"state":        enums.HeldCollectionStateDestroyed,
			"tx_hash":      txHash,
			"destroyed_at": at,
			"updated_at":   at,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *repository) ListStalePendingCollections(ctx context.Context, before time.Time, limit int) ([]models.Collection, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.Collection
	err := r.db.WithContext(ctx).
		Where("state = ? AND submitted_at IS NOT NULL AND submitted_at < ?", enums.CollectionStatePending, before).
		Order("submitted_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListStalePendingBlindBoxes(ctx context.Context, before time.Time, limit int) ([]models.BlindBox, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.BlindBox
	err := r.db.WithContext(ctx).
		Where("state = ? AND submitted_at IS NOT NULL AND submitted_at < ?", enums.BlindBoxStatePending, before).
		Order("submitted_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListStaleHeldCollections(ctx context.Context, before time.Time, limit int) ([]models.HeldCollection, error) {
	if limit <= 0 {
		limit = 100
	}
	states := []enums.HeldCollectionState{
		enums.HeldCollectionStateInit,
		enums.HeldCollectionStateDestroying,
	}
	var rows []models.HeldCollection
	err := r.db.WithContext(ctx).
		Where("state IN ? AND submitted_at IS NOT NULL AND submitted_at < ?", states, before).
		Order("submitted_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
