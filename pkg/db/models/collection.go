package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/collectmall/collectmall-backend/pkg/enums"
)

// Collection represents a collection series registered on the ledger.
// ChainIdentifier ties the row to its pending ledger submission so results
// and re-submissions resolve to the same operation.
type Collection struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GoodsID         uuid.UUID             `gorm:"column:goods_id;type:uuid;not null"`
	MerchantID      uuid.UUID             `gorm:"column:merchant_id;type:uuid;not null"`
	Name            string                `gorm:"column:name;not null"`
	State           enums.CollectionState `gorm:"column:state;type:collection_state;not null;default:'pending'"`
	RoyaltyRate     decimal.Decimal       `gorm:"column:royalty_rate;type:numeric(5,4);not null;default:0"`
	ChainIdentifier string                `gorm:"column:chain_identifier;not null;uniqueIndex:idx_collections_chain_identifier"`
	NFTID           *string               `gorm:"column:nft_id"`
	TxHash          *string               `gorm:"column:tx_hash"`
	SubmittedAt     *time.Time            `gorm:"column:submitted_at"`
	ConfirmedAt     *time.Time            `gorm:"column:confirmed_at"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
