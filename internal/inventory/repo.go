package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/collectmall/collectmall-backend/pkg/db/models"
	"github.com/collectmall/collectmall-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateReservation(ctx context.Context, row *models.InventoryReservation) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) FindReservationByIdentifier(ctx context.Context, identifier string) (*models.InventoryReservation, error) {
	var row models.InventoryReservation
	err := r.db.WithContext(ctx).Where("identifier = ?", identifier).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repository) UpdateReservationOutcome(ctx context.Context, identifier string, from, to enums.ReservationOutcome) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryReservation{}).
		Where("identifier = ? AND outcome = ?", identifier, from).
		Update("outcome", to)
	return res.RowsAffected > 0, res.Error
}

// MoveAvailableToReserved shifts stock in a single conditional statement so
// concurrent holds on the last unit cannot both succeed.
func (r *repository) MoveAvailableToReserved(ctx context.Context, goodsID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("goods_id = ? AND available_qty >= ?", goodsID, qty).
		Updates(map[string]any{
			"available_qty": gorm.Expr("available_qty - ?", qty),
			"reserved_qty":  gorm.Expr("reserved_qty + ?", qty),
		})
	return res.RowsAffected > 0, res.Error
}

func (r *repository) MoveReservedToSold(ctx context.Context, goodsID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("goods_id = ? AND reserved_qty >= ?", goodsID, qty).
		Updates(map[string]any{
			"reserved_qty": gorm.Expr("reserved_qty - ?", qty),
			"sold_qty":     gorm.Expr("sold_qty + ?", qty),
		})
	return res.RowsAffected > 0, res.Error
}

func (r *repository) MoveReservedToAvailable(ctx context.Context, goodsID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("goods_id = ? AND reserved_qty >= ?", goodsID, qty).
		Updates(map[string]any{
			"available_qty": gorm.Expr("available_qty + ?", qty),
			"reserved_qty":  gorm.Expr("reserved_qty - ?", qty),
		})
	return res.RowsAffected > 0, res.Error
}

// InitCounter creates the counter row for freshly settled goods. Replays keep
// the existing row untouched.
func (r *repository) InitCounter(ctx context.Context, goodsID uuid.UUID, available int) error {
	row := models.InventoryItem{GoodsID: goodsID, AvailableQty: available}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}
