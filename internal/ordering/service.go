package ordering

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/collectmall/collectmall-backend/internal/goods"
	"github.com/collectmall/collectmall-backend/internal/inventory"
	"github.com/collectmall/collectmall-backend/internal/ordering/validators"
	"github.com/collectmall/collectmall-backend/internal/users"
	dbpkg "github.com/collectmall/collectmall-backend/pkg/db"
	"github.com/collectmall/collectmall-backend/pkg/db/models"
	"github.com/collectmall/collectmall-backend/pkg/enums"
	pkgerrors "github.com/collectmall/collectmall-backend/pkg/errors"
	"github.com/collectmall/collectmall-backend/pkg/logger"
	"github.com/collectmall/collectmall-backend/pkg/outbox"
	"github.com/collectmall/collectmall-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// SettlementSubmitter starts the ledger side effects of a paid collectible
// order. Implemented by the chain gateway.
type SettlementSubmitter interface {
	MintForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) error
}

type service struct {
	repo       Repository
	usersRepo  users.Repository
	goodsRepo  goods.Repository
	inventory  inventory.Service
	tx         txRunner
	outbox     outboxPublisher
	settlement SettlementSubmitter
	checks     *validators.Chain
	logg       *logger.Logger
}

// NewService builds the order coordinator with the required dependencies.
func NewService(
	repo Repository,
	usersRepo users.Repository,
	goodsRepo goods.Repository,
	inv inventory.Service,
	tx txRunner,
	publisher outboxPublisher,
	settlement SettlementSubmitter,
	checks *validators.Chain,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if usersRepo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if goodsRepo == nil {
		return nil, fmt.Errorf("goods repository required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if settlement == nil {
		return nil, fmt.Errorf("settlement submitter required")
	}
	if checks == nil {
		checks = validators.Default()
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       repo,
		usersRepo:  usersRepo,
		goodsRepo:  goodsRepo,
		inventory:  inv,
		tx:         tx,
		outbox:     publisher,
		settlement: settlement,
		checks:     checks,
		logg:       logg,
	}, nil
}

// TryOrder runs the pre-checks, holds stock and persists the unpaid order in
// one transaction. Replaying the same identifier returns the original order.
func (s *service) TryOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if strings.TrimSpace(input.Identifier) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order identifier required")
	}
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if input.GoodsID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "goods id required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	ctx = s.logg.WithIdentifier(ctx, input.Identifier)

	if existing, err := s.repo.FindByIdentifier(ctx, input.Identifier); err != nil {
		return nil, err
	} else if existing != nil {
		s.logg.Info(ctx, "order try replayed")
		return existing, nil
	}

	buyer, err := s.usersRepo.FindByID(ctx, input.BuyerID)
	if err != nil {
		return nil, err
	}
	listing, err := s.goodsRepo.FindByID(ctx, input.GoodsID)
	if err != nil {
		return nil, err
	}
	booked := false
	if listing.BookingRequired {
		booked, err = s.goodsRepo.HasBooking(ctx, listing.ID, buyer.ID)
		if err != nil {
			return nil, err
		}
	}

	checkInput := validators.Input{
		Buyer:      buyer,
		Goods:      listing,
		Quantity:   input.Quantity,
		PriceCents: input.PriceCents,
		Booked:     booked,
		Now:        time.Now(),
	}
	if err := s.checks.Run(ctx, checkInput); err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:         uuid.New(),
		OrderNo:    newOrderNo(),
		Identifier: input.Identifier,
		BuyerID:    buyer.ID,
		MerchantID: listing.MerchantID,
		GoodsID:    listing.ID,
		GoodsType:  listing.Type,
		Quantity:   input.Quantity,
		PriceCents: listing.PriceCents,
		TotalCents: listing.PriceCents * input.Quantity,
		Status:     enums.OrderStatusUnpaid,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, terr := s.inventory.TryDecrease(ctx, tx, inventory.DecreaseRequest{
			Identifier: input.Identifier,
			GoodsID:    listing.ID,
			Quantity:   input.Quantity,
		}); terr != nil {
			return terr
		}
		if terr := s.repo.WithTx(tx).Create(ctx, order); terr != nil {
			if dbpkg.IsUniqueViolation(terr, "idx_orders_identifier") {
				existing, findErr := s.repo.WithTx(tx).FindByIdentifier(ctx, input.Identifier)
				if findErr != nil {
					return findErr
				}
				if existing != nil {
					order = existing
					return nil
				}
			}
			return terr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithGoodsID(ctx, listing.ID.String()), "order placed")
	return order, nil
}

// ConfirmOrder finalizes payment: the hold becomes a sale, the order goes to
// paid, and collectible goods start their mint on the ledger.
func (s *service) ConfirmOrder(ctx context.Context, identifier string) (*models.Order, error) {
	order, err := s.loadByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithIdentifier(ctx, identifier)

	if order.Status == enums.OrderStatusPaid {
		s.logg.Info(ctx, "order confirm replayed")
		return order, nil
	}
	if !order.Status.CanTransitionTo(enums.OrderStatusPaid) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be confirmed").
			WithDetails(map[string]any{"status": order.Status})
	}

	now := time.Now()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if terr := s.inventory.ConfirmDecrease(ctx, tx, identifier); terr != nil {
			return terr
		}
		flipped, terr := s.repo.WithTx(tx).UpdateStatusCAS(ctx, order.ID, order.Version, order.Status, enums.OrderStatusPaid, map[string]any{
			"paid_at": now,
		})
		if terr != nil {
			return terr
		}
		if !flipped {
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
		}
		if terr := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderPaidEvent{
				OrderID:    order.ID,
				BuyerID:    order.BuyerID,
				GoodsID:    order.GoodsID,
				TotalCents: order.TotalCents,
				PaidAt:     now,
			},
		}); terr != nil {
			return terr
		}
		if order.GoodsType.IsCollectible() {
			if terr := s.settlement.MintForOrder(ctx, tx, order); terr != nil {
				return terr
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order.Status = enums.OrderStatusPaid
	order.Version++
	order.PaidAt = &now
	s.logg.Info(ctx, "order paid")
	return order, nil
}

// CancelOrder voids an unpaid order and returns its hold to stock. If the
// release itself fails, the cancellation still lands and the release is
// queued for the inventory worker instead of being lost.
func (s *service) CancelOrder(ctx context.Context, identifier, reason string) (*models.Order, error) {
	order, err := s.loadByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithIdentifier(ctx, identifier)

	if order.Status == enums.OrderStatusCancelled {
		s.logg.Info(ctx, "order cancel replayed")
		return order, nil
	}
	if !order.Status.CanTransitionTo(enums.OrderStatusCancelled) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be cancelled").
			WithDetails(map[string]any{"status": order.Status})
	}

	now := time.Now()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if terr := s.inventory.CancelDecrease(ctx, tx, identifier); terr != nil {
			s.logg.Error(ctx, "inline release failed; queueing compensation", terr)
			if qerr := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventReservationReleaseRequested,
				AggregateType: enums.AggregateReservation,
				AggregateID:   order.ID,
				Version:       1,
				Data: payloads.ReservationReleaseRequestedEvent{
					Identifier: identifier,
					GoodsID:    order.GoodsID,
					Quantity:   order.Quantity,
					OrderID:    order.ID,
				},
			}); qerr != nil {
				return qerr
			}
		}
		flipped, terr := s.repo.WithTx(tx).UpdateStatusCAS(ctx, order.ID, order.Version, order.Status, enums.OrderStatusCancelled, map[string]any{
			"cancelled_at": now,
		})
		if terr != nil {
			return terr
		}
		if !flipped {
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderCancelledEvent{
				OrderID:     order.ID,
				BuyerID:     order.BuyerID,
				GoodsID:     order.GoodsID,
				CancelledAt: now,
				Reason:      reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	order.Status = enums.OrderStatusCancelled
	order.Version++
	order.CancelledAt = &now
	s.logg.Info(ctx, "order cancelled")
	return order, nil
}

// RefundOrder records a refund on a paid order. Sold stock is not restored;
// any held collection is destroyed through its own ledger request.
func (s *service) RefundOrder(ctx context.Context, identifier, reason string) (*models.Order, error) {
	order, err := s.loadByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithIdentifier(ctx, identifier)

	if order.Status == enums.OrderStatusRefunded {
		s.logg.Info(ctx, "order refund replayed")
		return order, nil
	}
	if !order.Status.CanTransitionTo(enums.OrderStatusRefunded) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be refunded").
			WithDetails(map[string]any{"status": order.Status})
	}

	now := time.Now()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		flipped, terr := s.repo.WithTx(tx).UpdateStatusCAS(ctx, order.ID, order.Version, order.Status, enums.OrderStatusRefunded, map[string]any{
			"refunded_at": now,
		})
		if terr != nil {
			return terr
		}
		if !flipped {
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderCancelledEvent{
				OrderID:     order.ID,
				BuyerID:     order.BuyerID,
				GoodsID:     order.GoodsID,
				CancelledAt: now,
				Reason:      reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	order.Status = enums.OrderStatusRefunded
	order.Version++
	order.RefundedAt = &now
	s.logg.Info(ctx, "order refunded")
	return order, nil
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) loadByIdentifier(ctx context.Context, identifier string) (*models.Order, error) {
	if strings.TrimSpace(identifier) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order identifier required")
	}
	order, err := s.repo.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func newOrderNo() string {
	return fmt.Sprintf("CM%s-%s", time.Now().UTC().Format("20060102150405"), strings.ToUpper(uuid.NewString()[:8]))
}
