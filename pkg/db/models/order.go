package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/collectmall/collectmall-backend/pkg/enums"
)

// Order represents a buyer purchase moving through the try/confirm/cancel
// lifecycle. Identifier carries the transaction idempotency key shared with
// the inventory reservation; Version backs optimistic status transitions.
type Order struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNo     string            `gorm:"column:order_no;not null;uniqueIndex:idx_orders_order_no"`
	Identifier  string            `gorm:"column:identifier;not null;uniqueIndex:idx_orders_identifier"`
	BuyerID     uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null"`
	MerchantID  uuid.UUID         `gorm:"column:merchant_id;type:uuid;not null"`
	GoodsID     uuid.UUID         `gorm:"column:goods_id;type:uuid;not null"`
	GoodsType   enums.GoodsType   `gorm:"column:goods_type;type:goods_type;not null"`
	Quantity    int               `gorm:"column:quantity;not null"`
	PriceCents  int               `gorm:"column:price_cents;not null"`
	TotalCents  int               `gorm:"column:total_cents;not null"`
	Status      enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'created'"`
	Version     int               `gorm:"column:version;not null;default:0"`
	PaidAt      *time.Time        `gorm:"column:paid_at"`
	CancelledAt *time.Time        `gorm:"column:cancelled_at"`
	RefundedAt  *time.Time        `gorm:"column:refunded_at"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
