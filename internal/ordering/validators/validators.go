package validators

import (
	"context"
	"fmt"
	"time"

	"github.com/collectmall/collectmall-backend/pkg/db/models"
	"github.com/collectmall/collectmall-backend/pkg/enums"
	pkgerrors "github.com/collectmall/collectmall-backend/pkg/errors"
)

// Input is the assembled state every pre-check runs against. The service
// loads it once so checks stay pure and cheap to reorder.
type Input struct {
	Buyer      *models.User
	Goods      *models.Goods
	Quantity   int
	PriceCents int
	Booked     bool
	Now        time.Time
}

// Validator is one pre-check in the order pipeline. Applies lets checks that
// only matter for some listings (booking gates) remove themselves instead of
// every check re-testing the same conditions.
type Validator interface {
	Name() string
	Applies(in Input) bool
	Validate(ctx context.Context, in Input) error
}

// Chain runs validators in order and stops at the first failure.
type Chain struct {
	validators []Validator
}

// NewChain builds a chain from the given validators.
func NewChain(vs ...Validator) *Chain {
	chain := &Chain{}
	for _, v := range vs {
		if v == nil {
			continue
		}
		chain.validators = append(chain.validators, v)
	}
	return chain
}

// Default returns the standard order pre-check pipeline.
func Default() *Chain {
	return NewChain(
		BuyerValidator{},
		GoodsValidator{},
		BookingValidator{},
		StockValidator{},
	)
}

// Run executes the applicable validators, short-circuiting on the first error.
func (c *Chain) Run(ctx context.Context, in Input) error {
	for _, v := range c.validators {
		if !v.Applies(in) {
			continue
		}
		if err := v.Validate(ctx, in); err != nil {
			return fmt.Errorf("%s: %w", v.Name(), err)
		}
	}
	return nil
}

// BuyerValidator rejects buyers who cannot transact.
type BuyerValidator struct{}

func (BuyerValidator) Name() string { return "buyer" }

func (BuyerValidator) Applies(Input) bool { return true }

func (BuyerValidator) Validate(_ context.Context, in Input) error {
	if in.Buyer == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "buyer not found")
	}
	if in.Buyer.Role == enums.UserRolePlatform {
		return pkgerrors.New(pkgerrors.CodeBuyerIsPlatformUser, "platform accounts cannot place orders")
	}
	if in.Buyer.Status != enums.UserStatusActive {
		return pkgerrors.New(pkgerrors.CodeBuyerStatusAbnormal, "buyer account is not active").
			WithDetails(map[string]any{"status": in.Buyer.Status})
	}
	return nil
}

// GoodsValidator rejects listings that are not purchasable as quoted.
type GoodsValidator struct{}

func (GoodsValidator) Name() string { return "goods" }

func (GoodsValidator) Applies(Input) bool { return true }

func (GoodsValidator) Validate(_ context.Context, in Input) error {
	if in.Goods == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "goods not found")
	}
	if in.Goods.Status != enums.GoodsStatusOnSale {
		return pkgerrors.New(pkgerrors.CodeGoodsNotAvailable, "goods are not on sale").
			WithDetails(map[string]any{"status": in.Goods.Status})
	}
	if in.Goods.SaleStartAt != nil && in.Goods.SaleStartAt.After(in.Now) {
		return pkgerrors.New(pkgerrors.CodeGoodsNotAvailable, "sale has not started").
			WithDetails(map[string]any{"sale_start_at": in.Goods.SaleStartAt})
	}
	if in.PriceCents != in.Goods.PriceCents {
		return pkgerrors.New(pkgerrors.CodeGoodsPriceChanged, "quoted price is stale").
			WithDetails(map[string]any{
				"quoted_cents":  in.PriceCents,
				"current_cents": in.Goods.PriceCents,
			})
	}
	return nil
}

// BookingValidator gates booking-required listings behind an advance booking.
type BookingValidator struct{}

func (BookingValidator) Name() string { return "booking" }

func (BookingValidator) Applies(in Input) bool {
	return in.Goods != nil && in.Goods.BookingRequired
}

func (BookingValidator) Validate(_ context.Context, in Input) error {
	if !in.Booked {
		return pkgerrors.New(pkgerrors.CodeGoodsNotBooked, "goods require a booking before purchase")
	}
	return nil
}

// StockValidator is an advisory availability check. The authoritative guard
// is the conditional counter update inside the transaction; this exists to
// fail obvious losers before any row is written.
type StockValidator struct{}

func (StockValidator) Name() string { return "stock" }

func (StockValidator) Applies(in Input) bool {
	return in.Goods != nil && in.Goods.Inventory != nil
}

func (StockValidator) Validate(_ context.Context, in Input) error {
	if in.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if in.Goods.Inventory.AvailableQty < in.Quantity {
		return pkgerrors.New(pkgerrors.CodeInventoryNotEnough, "insufficient available stock").
			WithDetails(map[string]any{
				"available": in.Goods.Inventory.AvailableQty,
				"requested": in.Quantity,
			})
	}
	return nil
}
