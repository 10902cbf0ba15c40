package goods

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/collectmall/collectmall-backend/internal/repo"
	"github.com/collectmall/collectmall-backend/pkg/db/models"
	pkgerrors "github.com/collectmall/collectmall-backend/pkg/errors"
)

// Repository exposes the listing lookups the order pipeline needs.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Goods, error)
	HasBooking(ctx context.Context, goodsID, userID uuid.UUID) (bool, error)
}

type repository struct {
	repo.Base
}

// NewRepository builds a goods repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Goods, error) {
	var goods models.Goods
	err := r.DB(ctx).
		Preload("Inventory").
		Where("id = ?", id).
		First(&goods).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "goods not found")
		}
		return nil, err
	}
	return &goods, nil
}

func (r *repository) HasBooking(ctx context.Context, goodsID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.GoodsBooking{}).
		Where("goods_id = ? AND user_id = ?", goodsID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
