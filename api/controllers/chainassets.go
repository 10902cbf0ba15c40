package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/collectmall/collectmall-backend/api/responses"
	"github.com/collectmall/collectmall-backend/api/validators"
	"github.com/collectmall/collectmall-backend/internal/chain"
	"github.com/collectmall/collectmall-backend/pkg/db/models"
	pkgerrors "github.com/collectmall/collectmall-backend/pkg/errors"
	"github.com/collectmall/collectmall-backend/pkg/logger"
)

type registerCollectionRequest struct {
	GoodsID     string `json:"goodsId" validate:"required,uuid"`
	MerchantID  string `json:"merchantId" validate:"required,uuid"`
	Name        string `json:"name" validate:"required,min=1,max=255"`
	RoyaltyRate string `json:"royaltyRate" validate:"required"`
}

type registerBlindBoxRequest struct {
	GoodsID    string `json:"goodsId" validate:"required,uuid"`
	MerchantID string `json:"merchantId" validate:"required,uuid"`
	Name       string `json:"name" validate:"required,min=1,max=255"`
}

type transferRequest struct {
	ToOwnerID string `json:"toOwnerId" validate:"required,uuid"`
}

type collectionResponse struct {
	ID              uuid.UUID `json:"id"`
	GoodsID         uuid.UUID `json:"goodsId"`
	State           string    `json:"state"`
	ChainIdentifier string    `json:"chainIdentifier"`
}

type heldCollectionResponse struct {
	ID      uuid.UUID `json:"id"`
	OwnerID uuid.UUID `json:"ownerId"`
	State   string    `json:"state"`
}

// RegisterCollection queues ledger registration for a collection series.
func RegisterCollection(gateway *chain.Gateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if gateway == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement gateway unavailable"))
			return
		}

		var req registerCollectionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		goodsID, err := uuid.Parse(req.GoodsID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid goods id"))
			return
		}
		merchantID, err := uuid.Parse(req.MerchantID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid merchant id"))
			return
		}
		royalty, err := decimal.NewFromString(strings.TrimSpace(req.RoyaltyRate))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid royalty rate"))
			return
		}
		if royalty.IsNegative() || royalty.GreaterThan(decimal.NewFromInt(1)) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "royalty rate must be between 0 and 1"))
			return
		}

		collection, err := gateway.RegisterCollection(ctx, chain.RegisterCollectionInput{
			GoodsID:     goodsID,
			MerchantID:  merchantID,
			Name:        strings.TrimSpace(req.Name),
			RoyaltyRate: royalty,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toCollectionResponse(collection))
	}
}

// RegisterBlindBox queues ledger registration for a blind box series.
func RegisterBlindBox(gateway *chain.Gateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if gateway == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement gateway unavailable"))
			return
		}

		var req registerBlindBoxRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		goodsID, err := uuid.Parse(req.GoodsID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid goods id"))
			return
		}
		merchantID, err := uuid.Parse(req.MerchantID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid merchant id"))
			return
		}

		box, err := gateway.RegisterBlindBox(ctx, chain.RegisterBlindBoxInput{
			GoodsID:    goodsID,
			MerchantID: merchantID,
			Name:       strings.TrimSpace(req.Name),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, collectionResponse{
			ID:              box.ID,
			GoodsID:         box.GoodsID,
			State:           string(box.State),
			ChainIdentifier: box.ChainIdentifier,
		})
	}
}

// TransferHeldCollection queues the burn-and-remint pair moving a copy to a
// new owner.
func TransferHeldCollection(gateway *chain.Gateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if gateway == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement gateway unavailable"))
			return
		}

		heldID, err := parseHeldID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req transferRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		toOwnerID, err := uuid.Parse(req.ToOwnerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid owner id"))
			return
		}

		recipient, err := gateway.Transfer(ctx, heldID, toOwnerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toHeldResponse(recipient))
	}
}

// DestroyHeldCollection queues the ledger burn for an active copy.
func DestroyHeldCollection(gateway *chain.Gateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if gateway == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement gateway unavailable"))
			return
		}

		heldID, err := parseHeldID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		held, err := gateway.Destroy(ctx, heldID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toHeldResponse(held))
	}
}

func parseHeldID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "heldId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "held collection id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid held collection id")
	}
	return id, nil
}

func toCollectionResponse(collection *models.Collection) collectionResponse {
	return collectionResponse{
		ID:              collection.ID,
		GoodsID:         collection.GoodsID,
		State:           string(collection.State),
		ChainIdentifier: collection.ChainIdentifier,
	}
}

func toHeldResponse(held *models.HeldCollection) heldCollectionResponse {
	return heldCollectionResponse{
		ID:      held.ID,
		OwnerID: held.OwnerID,
		State:   string(held.State),
	}
}
