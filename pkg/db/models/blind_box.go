package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/collectmall/collectmall-backend/pkg/enums"
)

// BlindBox represents a blind box series registered on the ledger.
type BlindBox struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GoodsID         uuid.UUID           `gorm:"column:goods_id;type:uuid;not null"`
	MerchantID      uuid.UUID           `gorm:"column:merchant_id;type:uuid;not null"`
	Name            string              `gorm:"column:name;not null"`
	State           enums.BlindBoxState `gorm:"column:state;type:blind_box_state;not null;default:'pending'"`
	ChainIdentifier string              `gorm:"column:chain_identifier;not null;uniqueIndex:idx_blind_boxes_chain_identifier"`
	NFTID           *string             `gorm:"column:nft_id"`
	TxHash          *string             `gorm:"column:tx_hash"`
	SubmittedAt     *time.Time          `gorm:"column:submitted_at"`
	ConfirmedAt     *time.Time          `gorm:"column:confirmed_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
