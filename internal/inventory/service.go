package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/collectmall/collectmall-backend/pkg/db"
	"github.com/collectmall/collectmall-backend/pkg/db/models"
	"github.com/collectmall/collectmall-backend/pkg/enums"
	pkgerrors "github.com/collectmall/collectmall-backend/pkg/errors"
	"github.com/collectmall/collectmall-backend/pkg/logger"
)

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds the inventory participant.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

// TryDecrease places a hold on the goods counter. The reservation row is the
// idempotency record: a replayed identifier returns the original hold without
// touching the counter again.
func (s *service) TryDecrease(ctx context.Context, tx *gorm.DB, req DecreaseRequest) (*models.InventoryReservation, error) {
	if strings.TrimSpace(req.Identifier) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation identifier required")
	}
	if req.GoodsID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "goods id required")
	}
	if req.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	repo := s.repo.WithTx(tx)
	row := &models.InventoryReservation{
		ID:         uuid.New(),
		Identifier: req.Identifier,
		GoodsID:    req.GoodsID,
		Quantity:   req.Quantity,
		Outcome:    enums.ReservationOutcomeReserved,
	}
	if err := repo.CreateReservation(ctx, row); err != nil {
		if dbpkg.IsUniqueViolation(err, "idx_inventory_reservations_identifier") {
			existing, findErr := repo.FindReservationByIdentifier(ctx, req.Identifier)
			if findErr != nil {
				return nil, findErr
			}
			if existing == nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "reservation identifier raced")
			}
			s.logg.Info(s.logg.WithIdentifier(ctx, req.Identifier), "reservation replayed")
			return existing, nil
		}
		return nil, err
	}

	moved, err := repo.MoveAvailableToReserved(ctx, req.GoodsID, req.Quantity)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, pkgerrors.New(pkgerrors.CodeInventoryNotEnough, "insufficient available stock").
			WithDetails(map[string]any{"goods_id": req.GoodsID, "quantity": req.Quantity})
	}
	return row, nil
}

// ConfirmDecrease finalizes the hold into a sale. A confirm for an unknown
// identifier means the try phase never committed, which is a protocol bug.
func (s *service) ConfirmDecrease(ctx context.Context, tx *gorm.DB, identifier string) error {
	if strings.TrimSpace(identifier) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation identifier required")
	}

	repo := s.repo.WithTx(tx)
	row, err := repo.FindReservationByIdentifier(ctx, identifier)
	if err != nil {
		return err
	}
	if row == nil {
		return pkgerrors.New(pkgerrors.CodeProtocol, "confirm for unknown reservation").
			WithDetails(map[string]any{"identifier": identifier})
	}

	switch row.Outcome {
	case enums.ReservationOutcomeConfirmed:
		return nil
	case enums.ReservationOutcomeReleased:
		return pkgerrors.New(pkgerrors.CodeProtocol, "confirm after release").
			WithDetails(map[string]any{"identifier": identifier})
	}

	flipped, err := repo.UpdateReservationOutcome(ctx, identifier, enums.ReservationOutcomeReserved, enums.ReservationOutcomeConfirmed)
	if err != nil {
		return err
	}
	if !flipped {
		// Lost the race against another phase; re-read and converge.
		return s.ConfirmDecrease(ctx, tx, identifier)
	}

	moved, err := repo.MoveReservedToSold(ctx, row.GoodsID, row.Quantity)
	if err != nil {
		return err
	}
	if !moved {
		return pkgerrors.New(pkgerrors.CodeProtocol, "reserved counter underflow on confirm").
			WithDetails(map[string]any{"identifier": identifier, "goods_id": row.GoodsID})
	}
	return nil
}

// CancelDecrease returns the hold to available stock. Cancels for unknown,
// already-released or already-confirmed identifiers are no-ops so cancel can
// be retried blindly.
func (s *service) CancelDecrease(ctx context.Context, tx *gorm.DB, identifier string) error {
	if strings.TrimSpace(identifier) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation identifier required")
	}

	repo := s.repo.WithTx(tx)
	row, err := repo.FindReservationByIdentifier(ctx, identifier)
	if err != nil {
		return err
	}
	if row == nil || row.Outcome == enums.ReservationOutcomeReleased {
		return nil
	}
	if row.Outcome == enums.ReservationOutcomeConfirmed {
		s.logg.Warn(s.logg.WithIdentifier(ctx, identifier), "cancel ignored for confirmed reservation")
		return nil
	}

	flipped, err := repo.UpdateReservationOutcome(ctx, identifier, enums.ReservationOutcomeReserved, enums.ReservationOutcomeReleased)
	if err != nil {
		return err
	}
	if !flipped {
		return s.CancelDecrease(ctx, tx, identifier)
	}

	moved, err := repo.MoveReservedToAvailable(ctx, row.GoodsID, row.Quantity)
	if err != nil {
		return err
	}
	if !moved {
		return pkgerrors.New(pkgerrors.CodeProtocol, "reserved counter underflow on cancel").
			WithDetails(map[string]any{"identifier": identifier, "goods_id": row.GoodsID})
	}
	return nil
}
