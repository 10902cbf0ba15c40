package webhooks

import (
	"context"
	"net/http"
	"strings"

	"github.com/collectmall/collectmall-backend/api/responses"
	"github.com/collectmall/collectmall-backend/api/validators"
	"github.com/collectmall/collectmall-backend/pkg/db/models"
	pkgerrors "github.com/collectmall/collectmall-backend/pkg/errors"
	"github.com/collectmall/collectmall-backend/pkg/logger"
)

const (
	paymentResultSuccess = "success"
	paymentResultFailed  = "failed"
)

// PaymentService narrows the ordering service to the two phases a gateway
// callback can drive.
type PaymentService interface {
	ConfirmOrder(ctx context.Context, identifier string) (*models.Order, error)
	CancelOrder(ctx context.Context, identifier, reason string) (*models.Order, error)
}

type paymentWebhookRequest struct {
	Identifier string `json:"identifier" validate:"required,min=8,max=128"`
	OrderID    string `json:"orderId" validate:"omitempty,uuid"`
	Result     string `json:"result" validate:"required,oneof=success failed"`
	Reason     string `json:"reason" validate:"omitempty,max=255"`
}

// PaymentWebhook consumes the payment gateway callback. Both branches replay
// safely: confirm and cancel are idempotent per identifier, so gateway
// redeliveries converge on the same order state.
func PaymentWebhook(svc PaymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		var req paymentWebhookRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		identifier := strings.TrimSpace(req.Identifier)
		logCtx := ctx
		if logg != nil {
			logCtx = logg.WithFields(ctx, map[string]any{
				"identifier": identifier,
				"result":     req.Result,
			})
		}

		var (
			order *models.Order
			err   error
		)
		switch req.Result {
		case paymentResultSuccess:
			order, err = svc.ConfirmOrder(logCtx, identifier)
		case paymentResultFailed:
			reason := req.Reason
			if reason == "" {
				reason = "payment failed"
			}
			order, err = svc.CancelOrder(logCtx, identifier, reason)
		default:
			err = pkgerrors.New(pkgerrors.CodeValidation, "unknown payment result")
		}
		if err != nil {
			responses.WriteError(logCtx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(logCtx, "payment callback processed")
		}
		responses.WriteSuccess(w, map[string]string{
			"orderId": order.ID.String(),
			"status":  string(order.Status),
		})
	}
}
