package chain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/collectmall/collectmall-backend/pkg/db/models"
)

// Repository defines persistence for ledger-settled assets. State transitions
// are compare-and-set updates keyed on the chain identifier so duplicate
// results converge instead of double-applying.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateCollection(ctx context.Context, row *models.Collection) error
	CreateBlindBox(ctx context.Context, row *models.BlindBox) error
	CreateHeldCollection(ctx context.Context, row *models.HeldCollection) error

	FindCollectionByChainIdentifier(ctx context.Context, identifier string) (*models.Collection, error)
	FindBlindBoxByChainIdentifier(ctx context.Context, identifier string) (*models.BlindBox, error)
	FindHeldCollectionByChainIdentifier(ctx context.Context, identifier string) (*models.HeldCollection, error)
	FindCollectionByGoodsID(ctx context.Context, goodsID uuid.UUID) (*models.Collection, error)
	FindBlindBoxByGoodsID(ctx context.Context, goodsID uuid.UUID) (*models.BlindBox, error)
	FindHeldCollectionByID(ctx context.Context, id uuid.UUID) (*models.HeldCollection, error)

	MarkCollectionSucceed(ctx context.Context, identifier, nftID, txHash string, at time.Time) (bool, error)
	MarkBlindBoxSucceed(ctx context.Context, identifier, nftID, txHash string, at time.Time) (bool, error)
	ActivateHeldCollection(ctx context.Context, identifier, nftID, txHash string, at time.Time) (bool, error)
	MarkHeldCollectionDestroying(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkHeldCollectionDestroyed(ctx context.Context, identifier, txHash string, at time.Time) (bool, error)

	ListStalePendingCollections(ctx context.Context, before time.Time, limit int) ([]models.Collection, error)
	ListStalePendingBlindBoxes(ctx context.Context, before time.Time, limit int) ([]models.BlindBox, error)
	ListStaleHeldCollections(ctx context.Context, before time.Time, limit int) ([]models.HeldCollection, error)
}
