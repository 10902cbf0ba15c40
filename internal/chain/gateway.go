package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

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

// Gateway records ledger assets and queues their operations through the
// outbox. Nothing here talks to the ledger directly: delivery happens in the
// outbox publisher, so a slow or down ledger never stalls the calling
// transaction.
type Gateway struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
}

// NewGateway builds the settlement gateway with the required dependencies.
func NewGateway(repo Repository, tx txRunner, publisher outboxPublisher, logg *logger.Logger) (*Gateway, error) {
	if repo == nil {
		return nil, fmt.Errorf("chain repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Gateway{repo: repo, tx: tx, outbox: publisher, logg: logg}, nil
}

// RegisterCollectionInput describes a collection series to put on the ledger.
type RegisterCollectionInput struct {
	GoodsID     uuid.UUID
	MerchantID  uuid.UUID
	Name        string
	RoyaltyRate decimal.Decimal
}

// RegisterBlindBoxInput describes a blind box series to put on the ledger.
type RegisterBlindBoxInput struct {
	GoodsID    uuid.UUID
	MerchantID uuid.UUID
	Name       string
}

// RegisterCollection persists a pending collection and queues its ledger
// registration.
func (g *Gateway) RegisterCollection(ctx context.Context, input RegisterCollectionInput) (*models.Collection, error) {
	if input.GoodsID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "goods id required")
	}
	if input.MerchantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant id required")
	}
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name required")
	}

	now := time.Now()
	row := &models.Collection{
		ID:              uuid.New(),
		GoodsID:         input.GoodsID,
		MerchantID:      input.MerchantID,
		Name:            input.Name,
		State:           enums.CollectionStatePending,
		RoyaltyRate:     input.RoyaltyRate,
		ChainIdentifier: newChainIdentifier(),
		SubmittedAt:     &now,
	}
	err := g.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if terr := g.repo.WithTx(tx).CreateCollection(ctx, row); terr != nil {
			return terr
		}
		return g.emitOperation(ctx, tx, operation{
			operateType:   enums.ChainOperateCollectionChain,
			bizID:         row.GoodsID,
			bizType:       enums.AggregateCollection,
			operateInfoID: row.ID,
			identifier:    row.ChainIdentifier,
		})
	})
	if err != nil {
		return nil, err
	}
	g.logg.Info(g.logg.WithIdentifier(ctx, row.ChainIdentifier), "collection registration queued")
	return row, nil
}

// RegisterBlindBox persists a pending blind box series and queues its ledger
// registration.
func (g *Gateway) RegisterBlindBox(ctx context.Context, input RegisterBlindBoxInput) (*models.BlindBox, error) {
	if input.GoodsID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "goods id required")
	}
	if input.MerchantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant id required")
	}
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name required")
	}

	now := time.Now()
	row := &models.BlindBox{
		ID:              uuid.New(),
		GoodsID:         input.GoodsID,
		MerchantID:      input.MerchantID,
		Name:            input.Name,
		State:           enums.BlindBoxStatePending,
		ChainIdentifier: newChainIdentifier(),
		SubmittedAt:     &now,
	}
	err := g.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if terr := g.repo.WithTx(tx).CreateBlindBox(ctx, row); terr != nil {
			return terr
		}
		return g.emitOperation(ctx, tx, operation{
			operateType:   enums.ChainOperateBlindBoxChain,
			bizID:         row.GoodsID,
			bizType:       enums.AggregateBlindBox,
			operateInfoID: row.ID,
			identifier:    row.ChainIdentifier,
		})
	})
	if err != nil {
		return nil, err
	}
	g.logg.Info(g.logg.WithIdentifier(ctx, row.ChainIdentifier), "blind box registration queued")
	return row, nil
}

// MintForOrder creates one init held copy per purchased unit and queues their
// mints inside the caller's transaction. Blind box purchases settle at reveal
// time, so they queue nothing here.
func (g *Gateway) MintForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if order.GoodsType != enums.GoodsTypeCollection {
		return nil
	}

	collection, err := g.repo.WithTx(tx).FindCollectionByGoodsID(ctx, order.GoodsID)
	if err != nil {
		return err
	}
	if collection == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "collection for goods not found")
	}

	now := time.Now()
	repo := g.repo.WithTx(tx)
	for i := 0; i < order.Quantity; i++ {
		orderID := order.ID
		held := &models.HeldCollection{
			ID:              uuid.New(),
			CollectionID:    collection.ID,
			OwnerID:         order.BuyerID,
			OrderID:         &orderID,
			State:           enums.HeldCollectionStateInit,
			ChainIdentifier: newChainIdentifier(),
			SubmittedAt:     &now,
		}
		if err := repo.CreateHeldCollection(ctx, held); err != nil {
			return err
		}
		ownerID := order.BuyerID
		if err := g.emitOperation(ctx, tx, operation{
			operateType:   enums.ChainOperateCollectionMint,
			bizID:         order.ID,
			bizType:       enums.AggregateHeldCollection,
			operateInfoID: held.ID,
			identifier:    held.ChainIdentifier,
			ownerID:       &ownerID,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Transfer moves an active held copy to a new owner: the recipient gets an
// init row queued for activation and the source copy is queued for destroy.
func (g *Gateway) Transfer(ctx context.Context, heldID, toOwnerID uuid.UUID) (*models.HeldCollection, error) {
	if heldID == uuid.Nil || toOwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "held collection id and recipient required")
	}
	source, err := g.repo.FindHeldCollectionByID(ctx, heldID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "held collection not found")
	}
	if source.State != enums.HeldCollectionStateActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "held collection not transferable").
			WithDetails(map[string]any{"state": source.State})
	}
	if source.OwnerID == toOwnerID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient already owns this copy")
	}

	now := time.Now()
	recipient := &models.HeldCollection{
		ID:              uuid.New(),
		CollectionID:    source.CollectionID,
		OwnerID:         toOwnerID,
		State:           enums.HeldCollectionStateInit,
		ChainIdentifier: newChainIdentifier(),
		SubmittedAt:     &now,
	}
	err = g.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := g.repo.WithTx(tx)
		if terr := repo.CreateHeldCollection(ctx, recipient); terr != nil {
			return terr
		}
		fromOwner := source.OwnerID
		toOwner := toOwnerID
		if terr := g.emitOperation(ctx, tx, operation{
			operateType:   enums.ChainOperateCollectionTransfer,
			bizID:         source.ID,
			bizType:       enums.AggregateHeldCollection,
			operateInfoID: recipient.ID,
			identifier:    recipient.ChainIdentifier,
			ownerID:       &fromOwner,
			toOwnerID:     &toOwner,
		}); terr != nil {
			return terr
		}
		flipped, terr := repo.MarkHeldCollectionDestroying(ctx, source.ID, now)
		if terr != nil {
			return terr
		}
		if !flipped {
			return pkgerrors.New(pkgerrors.CodeConflict, "held collection changed concurrently")
		}
		return g.emitOperation(ctx, tx, operation{
			operateType:   enums.ChainOperateCollectionDestroy,
			bizID:         source.ID,
			bizType:       enums.AggregateHeldCollection,
			operateInfoID: source.ID,
			identifier:    source.ChainIdentifier,
			ownerID:       &fromOwner,
		})
	})
	if err != nil {
		return nil, err
	}
	g.logg.Info(g.logg.WithIdentifier(ctx, recipient.ChainIdentifier), "transfer queued")
	return recipient, nil
}

// Destroy queues the ledger burn for an active held copy. Calling it on an
// already destroyed copy is a no-op.
func (g *Gateway) Destroy(ctx context.Context, heldID uuid.UUID) (*models.HeldCollection, error) {
	if heldID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "held collection id required")
	}
	held, err := g.repo.FindHeldCollectionByID(ctx, heldID)
	if err != nil {
		return nil, err
	}
	if held == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "held collection not found")
	}
	switch held.State {
	case enums.HeldCollectionStateDestroyed, enums.HeldCollectionStateDestroying:
		return held, nil
	case enums.HeldCollectionStateActive:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "held collection not destroyable").
			WithDetails(map[string]any{"state": held.State})
	}

	now := time.Now()
	err = g.tx.WithTx(ctx, func(tx *gorm.DB) error {
		flipped, terr := g.repo.WithTx(tx).MarkHeldCollectionDestroying(ctx, held.ID, now)
		if terr != nil {
			return terr
		}
		if !flipped {
			return pkgerrors.New(pkgerrors.CodeConflict, "held collection changed concurrently")
		}
		ownerID := held.OwnerID
		return g.emitOperation(ctx, tx, operation{
			operateType:   enums.ChainOperateCollectionDestroy,
			bizID:         held.ID,
			bizType:       enums.AggregateHeldCollection,
			operateInfoID: held.ID,
			identifier:    held.ChainIdentifier,
			ownerID:       &ownerID,
		})
	})
	if err != nil {
		return nil, err
	}
	held.State = enums.HeldCollectionStateDestroying
	held.SubmittedAt = &now
	g.logg.Info(g.logg.WithIdentifier(ctx, held.ChainIdentifier), "destroy queued")
	return held, nil
}

// ResubmitStale re-queues operations for assets whose submission never got a
// result. The stored chain identifier travels with the replay so the ledger
// deduplicates instead of double-applying. Each asset is requeued in its own
// transaction so one stuck row does not block the rest of the sweep.
func (g *Gateway) ResubmitStale(ctx context.Context, before time.Time, limit int) (int, error) {
	collections, err := g.repo.ListStalePendingCollections(ctx, before, limit)
	if err != nil {
		return 0, err
	}
	blindBoxes, err := g.repo.ListStalePendingBlindBoxes(ctx, before, limit)
	if err != nil {
		return 0, err
	}
	held, err := g.repo.ListStaleHeldCollections(ctx, before, limit)
	if err != nil {
		return 0, err
	}

	ops := make([]operation, 0, len(collections)+len(blindBoxes)+len(held))
	for i := range collections {
		row := collections[i]
		ops = append(ops, operation{
			operateType:   enums.ChainOperateCollectionChain,
			bizID:         row.GoodsID,
			bizType:       enums.AggregateCollection,
			operateInfoID: row.ID,
			identifier:    row.ChainIdentifier,
		})
	}
	for i := range blindBoxes {
		row := blindBoxes[i]
		ops = append(ops, operation{
			operateType:   enums.ChainOperateBlindBoxChain,
			bizID:         row.GoodsID,
			bizType:       enums.AggregateBlindBox,
			operateInfoID: row.ID,
			identifier:    row.ChainIdentifier,
		})
	}
	for i := range held {
		row := held[i]
		ownerID := row.OwnerID
		ops = append(ops, operation{
			operateType:   heldResubmitOperation(row),
			bizID:         heldResubmitBizID(row),
			bizType:       enums.AggregateHeldCollection,
			operateInfoID: row.ID,
			identifier:    row.ChainIdentifier,
			ownerID:       &ownerID,
		})
	}

	resubmitted := 0
	var errs []error
	for _, op := range ops {
		op := op
		if terr := g.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return g.emitOperation(ctx, tx, op)
		}); terr != nil {
			errs = append(errs, fmt.Errorf("resubmit %s %s: %w", op.bizType, op.identifier, terr))
			continue
		}
		resubmitted++
	}
	if resubmitted > 0 {
		g.logg.Info(g.logg.WithField(ctx, "resubmitted", resubmitted), "stale chain operations requeued")
	}
	return resubmitted, multierr.Combine(errs...)
}

type operation struct {
	operateType   enums.ChainOperateType
	bizID         uuid.UUID
	bizType       enums.OutboxAggregateType
	operateInfoID uuid.UUID
	identifier    string
	ownerID       *uuid.UUID
	toOwnerID     *uuid.UUID
}

func (g *Gateway) emitOperation(ctx context.Context, tx *gorm.DB, op operation) error {
	return g.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventChainOperationRequested,
		AggregateType: op.bizType,
		AggregateID:   op.operateInfoID,
		Version:       1,
		Data: payloads.ChainOperationRequestedEvent{
			OperateType:   op.operateType,
			BizID:         op.bizID,
			BizType:       op.bizType,
			OperateInfoID: op.operateInfoID,
			Identifier:    op.identifier,
			OwnerID:       op.ownerID,
			ToOwnerID:     op.toOwnerID,
		},
	})
}

// Stuck init rows from an order replay as mints; init rows without an order
// came from a transfer. Destroying rows always replay the burn.
func heldResubmitOperation(row models.HeldCollection) enums.ChainOperateType {
	if row.State == enums.HeldCollectionStateDestroying {
		return enums.ChainOperateCollectionDestroy
	}
	if row.OrderID != nil {
		return enums.ChainOperateCollectionMint
	}
	return enums.ChainOperateCollectionTransfer
}

func heldResubmitBizID(row models.HeldCollection) uuid.UUID {
	if row.OrderID != nil {
		return *row.OrderID
	}
	return row.ID
}

func newChainIdentifier() string {
	return "chain-" + uuid.NewString()
}
