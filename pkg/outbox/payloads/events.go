package payloads

import (
	"time"

	"github.com/collectmall/collectmall-backend/pkg/enums"
	"github.com/google/uuid"
)

// ChainOperationRequestedEvent asks the ledger to run one operation. BizID
// references the business row that triggered the submission, OperateInfoID
// the row whose state machine the result will advance, and Identifier the
// idempotency key the ledger deduplicates on.
type ChainOperationRequestedEvent struct {
	OperateType   enums.ChainOperateType    `json:"operate_type"`
	BizID         uuid.UUID                 `json:"biz_id"`
	BizType       enums.OutboxAggregateType `json:"biz_type"`
	OperateInfoID uuid.UUID                 `json:"operate_info_id"`
	Identifier    string                    `json:"identifier"`
	OwnerID       *uuid.UUID                `json:"owner_id,omitempty"`
	ToOwnerID     *uuid.UUID                `json:"to_owner_id,omitempty"`
}

// ReservationReleaseRequestedEvent queues a compensating release for a hold
// that could not be released inline.
type ReservationReleaseRequestedEvent struct {
	Identifier string    `json:"identifier"`
	GoodsID    uuid.UUID `json:"goods_id"`
	Quantity   int       `json:"quantity"`
	OrderID    uuid.UUID `json:"order_id"`
}

// OrderPaidEvent is emitted when a payment confirmation lands.
type OrderPaidEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	BuyerID    uuid.UUID `json:"buyer_id"`
	GoodsID    uuid.UUID `json:"goods_id"`
	TotalCents int       `json:"total_cents"`
	PaidAt     time.Time `json:"paid_at"`
}

// OrderCancelledEvent is emitted whenever an unpaid order is cancelled.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	GoodsID     uuid.UUID `json:"goods_id"`
	CancelledAt time.Time `json:"cancelled_at"`
	Reason      string    `json:"reason,omitempty"`
}
