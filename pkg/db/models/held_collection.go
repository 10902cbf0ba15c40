package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/collectmall/collectmall-backend/pkg/enums"
)

// HeldCollection represents a single numbered copy of a collection owned by
// a user. Rows start in init and only become visible holdings once the mint
// result lands.
type HeldCollection struct {
	ID              uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CollectionID    uuid.UUID                 `gorm:"column:collection_id;type:uuid;not null"`
	OwnerID         uuid.UUID                 `gorm:"column:owner_id;type:uuid;not null"`
	OrderID         *uuid.UUID                `gorm:"column:order_id;type:uuid"`
	State           enums.HeldCollectionState `gorm:"column:state;type:held_collection_state;not null;default:'init'"`
	ChainIdentifier string                    `gorm:"column:chain_identifier;not null;uniqueIndex:idx_held_collections_chain_identifier"`
	NFTID           *string                   `gorm:"column:nft_id"`
	TxHash          *string                   `gorm:"column:tx_hash"`
	SubmittedAt     *time.Time                `gorm:"column:submitted_at"`
	ActivatedAt     *time.Time                `gorm:"column:activated_at"`
	DestroyedAt     *time.Time                `gorm:"column:destroyed_at"`
	CreatedAt       time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
