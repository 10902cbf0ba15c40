package orders

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/collectmall/collectmall-backend/api/responses"
	"github.com/collectmall/collectmall-backend/api/validators"
	"github.com/collectmall/collectmall-backend/internal/ordering"
	"github.com/collectmall/collectmall-backend/pkg/db/models"
	pkgerrors "github.com/collectmall/collectmall-backend/pkg/errors"
	"github.com/collectmall/collectmall-backend/pkg/logger"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type createOrderRequest struct {
	Identifier string `json:"identifier" validate:"required,min=8,max=128"`
	BuyerID    string `json:"buyerId" validate:"required,uuid"`
	GoodsID    string `json:"goodsId" validate:"required,uuid"`
	Quantity   int    `json:"quantity" validate:"required,min=1"`
	PriceCents int    `json:"priceCents" validate:"required,min=1"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=255"`
}

type orderResponse struct {
	ID         uuid.UUID  `json:"id"`
	OrderNo    string     `json:"orderNo"`
	Identifier string     `json:"identifier"`
	BuyerID    uuid.UUID  `json:"buyerId"`
	GoodsID    uuid.UUID  `json:"goodsId"`
	GoodsType  string     `json:"goodsType"`
	Quantity   int        `json:"quantity"`
	PriceCents int        `json:"priceCents"`
	TotalCents int        `json:"totalCents"`
	Status     string     `json:"status"`
	PaidAt     *time.Time `json:"paidAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func toOrderResponse(order *models.Order) orderResponse {
	return orderResponse{
		ID:         order.ID,
		OrderNo:    order.OrderNo,
		Identifier: order.Identifier,
		BuyerID:    order.BuyerID,
		GoodsID:    order.GoodsID,
		GoodsType:  string(order.GoodsType),
		Quantity:   order.Quantity,
		PriceCents: order.PriceCents,
		TotalCents: order.TotalCents,
		Status:     string(order.Status),
		PaidAt:     order.PaidAt,
		CreatedAt:  order.CreatedAt,
	}
}

// Create runs the try phase. Retries with the same identifier return the
// order placed by the first attempt with a 200 instead of a 201.
func Create(svc ordering.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ordering service unavailable"))
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		buyerID, err := uuid.Parse(req.BuyerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid buyer id"))
			return
		}
		goodsID, err := uuid.Parse(req.GoodsID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid goods id"))
			return
		}

		order, err := svc.TryOrder(ctx, ordering.CreateOrderInput{
			Identifier: strings.TrimSpace(req.Identifier),
			BuyerID:    buyerID,
			GoodsID:    goodsID,
			Quantity:   req.Quantity,
			PriceCents: req.PriceCents,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toOrderResponse(order))
	}
}

// Confirm runs the confirm phase against the payment identifier.
func Confirm(svc ordering.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ordering service unavailable"))
			return
		}

		identifier, err := parseIdentifier(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		order, err := svc.ConfirmOrder(ctx, identifier)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toOrderResponse(order))
	}
}

// Cancel runs the cancel phase, restoring the reserved stock.
func Cancel(svc ordering.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ordering service unavailable"))
			return
		}

		identifier, err := parseIdentifier(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req cancelOrderRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		order, err := svc.CancelOrder(ctx, identifier, req.Reason)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toOrderResponse(order))
	}
}

// Refund moves a paid order to refunded.
func Refund(svc ordering.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ordering service unavailable"))
			return
		}

		identifier, err := parseIdentifier(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req cancelOrderRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		order, err := svc.RefundOrder(ctx, identifier, req.Reason)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toOrderResponse(order))
	}
}

// Detail returns one order by id.
func Detail(svc ordering.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ordering service unavailable"))
			return
		}

		raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
		if raw == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id is required"))
			return
		}
		orderID, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		order, err := svc.GetOrder(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toOrderResponse(order))
	}
}

// List returns a buyer's recent orders.
func List(repo ordering.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if repo == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders repository unavailable"))
			return
		}

		raw := strings.TrimSpace(r.URL.Query().Get("buyerId"))
		if raw == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "buyerId is required"))
			return
		}
		buyerID, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid buyer id"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", defaultListLimit, 1, maxListLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		orders, err := repo.ListByBuyer(ctx, buyerID, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders"))
			return
		}

		items := make([]orderResponse, 0, len(orders))
		for i := range orders {
			items = append(items, toOrderResponse(&orders[i]))
		}
		responses.WriteSuccess(w, items)
	}
}

func parseIdentifier(r *http.Request) (string, error) {
	identifier := strings.TrimSpace(chi.URLParam(r, "identifier"))
	if identifier == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "identifier is required")
	}
	return identifier, nil
}
