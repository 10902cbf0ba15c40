package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/collectmall/collectmall-backend/pkg/enums"
)

// Goods represents a merchant listing for an ordinary item, a collection
// series or a blind box series.
type Goods struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MerchantID      uuid.UUID         `gorm:"column:merchant_id;type:uuid;not null"`
	Name            string            `gorm:"column:name;not null"`
	Type            enums.GoodsType   `gorm:"column:type;type:goods_type;not null"`
	Status          enums.GoodsStatus `gorm:"column:status;type:goods_status;not null;default:'draft'"`
	PriceCents      int               `gorm:"column:price_cents;not null"`
	BookingRequired bool              `gorm:"column:booking_required;not null;default:false"`
	SaleStartAt     *time.Time        `gorm:"column:sale_start_at"`
	Inventory       *InventoryItem    `gorm:"foreignKey:GoodsID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// GoodsBooking records a buyer's advance booking for booking-gated goods.
type GoodsBooking struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GoodsID   uuid.UUID `gorm:"column:goods_id;type:uuid;not null;uniqueIndex:idx_goods_bookings_goods_user"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_goods_bookings_goods_user"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
