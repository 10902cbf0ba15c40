package ordering

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/collectmall/collectmall-backend/pkg/db/models"
	"github.com/collectmall/collectmall-backend/pkg/enums"
)

// Repository defines persistence operations for orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIdentifier(ctx context.Context, identifier string) (*models.Order, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit int) ([]models.Order, error)
	UpdateStatusCAS(ctx context.Context, id uuid.UUID, version int, from, to enums.OrderStatus, updates map[string]any) (bool, error)
}

// Service coordinates the order transaction across its participants.
type Service interface {
	TryOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	ConfirmOrder(ctx context.Context, identifier string) (*models.Order, error)
	CancelOrder(ctx context.Context, identifier, reason string) (*models.Order, error)
	RefundOrder(ctx context.Context, identifier, reason string) (*models.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
}
