package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/collectmall/collectmall-backend/pkg/db/models"
	"github.com/collectmall/collectmall-backend/pkg/enums"
)

// DecreaseRequest describes one try-phase hold. Identifier is the idempotency
// key shared by all three phases of the same transaction.
type DecreaseRequest struct {
	Identifier string
	GoodsID    uuid.UUID
	Quantity   int
}

// Service is the inventory participant of the order transaction. Every phase
// is safe to replay with the same identifier and converges on the same state.
type Service interface {
	TryDecrease(ctx context.Context, tx *gorm.DB, req DecreaseRequest) (*models.InventoryReservation, error)
	ConfirmDecrease(ctx context.Context, tx *gorm.DB, identifier string) error
	CancelDecrease(ctx context.Context, tx *gorm.DB, identifier string) error
}

// Repository defines persistence operations for inventory counters and holds.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateReservation(ctx context.Context, row *models.InventoryReservation) error
	FindReservationByIdentifier(ctx context.Context, identifier string) (*models.InventoryReservation, error)
	UpdateReservationOutcome(ctx context.Context, identifier string, from, to enums.ReservationOutcome) (bool, error)
	MoveAvailableToReserved(ctx context.Context, goodsID uuid.UUID, qty int) (bool, error)
	MoveReservedToSold(ctx context.Context, goodsID uuid.UUID, qty int) (bool, error)
	MoveReservedToAvailable(ctx context.Context, goodsID uuid.UUID, qty int) (bool, error)
	InitCounter(ctx context.Context, goodsID uuid.UUID, available int) error
}
