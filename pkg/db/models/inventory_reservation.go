package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/collectmall/collectmall-backend/pkg/enums"
)

// InventoryReservation records one try-phase hold against a goods counter.
// Identifier is the caller-supplied idempotency key; replays with the same
// identifier resolve to the existing row instead of moving stock twice.
type InventoryReservation struct {
	ID         uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Identifier string                   `gorm:"column:identifier;not null;uniqueIndex:idx_inventory_reservations_identifier"`
	GoodsID    uuid.UUID                `gorm:"column:goods_id;type:uuid;not null"`
	Quantity   int                      `gorm:"column:quantity;not null"`
	Outcome    enums.ReservationOutcome `gorm:"column:outcome;type:reservation_outcome;not null;default:'reserved'"`
	CreatedAt  time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
