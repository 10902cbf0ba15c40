package ordering

import "github.com/google/uuid"

// CreateOrderInput carries everything the try phase needs. Identifier is the
// client-supplied transaction key; retries with the same identifier return
// the order created by the first attempt.
type CreateOrderInput struct {
	Identifier string
	BuyerID    uuid.UUID
	GoodsID    uuid.UUID
	Quantity   int
	PriceCents int
}
