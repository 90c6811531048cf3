// Package cart serves the shopper cart endpoints. Every handler renders the
// cart view after the mutation.
package cart

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/commerce-engine/api/middleware"
	"github.com/angelmondragon/commerce-engine/api/responses"
	"github.com/angelmondragon/commerce-engine/api/validators"
	cartsvc "github.com/angelmondragon/commerce-engine/internal/cart"
	pkgerrors "github.com/angelmondragon/commerce-engine/pkg/errors"
	"github.com/angelmondragon/commerce-engine/pkg/logger"
	"github.com/angelmondragon/commerce-engine/pkg/types"
)

type addItemRequest struct {
	ProductID string         `json:"product_id" validate:"required,uuid"`
	Quantity  int            `json:"quantity"`
	Variants  types.Variants `json:"variants" validate:"omitempty,max=10,dive"`
}

type setQuantityRequest struct {
	Quantity int            `json:"quantity"`
	Variants types.Variants `json:"variants" validate:"omitempty,max=10,dive"`
}

type couponRequest struct {
	Code string `json:"code" validate:"required,max=32"`
}

// Get renders the caller's cart, empty when none exists yet.
func Get(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.Get(r.Context(), middleware.UserIDFromContext(r.Context()))
		respond(w, r, logg, view, err)
	}
}

// AddItem adds units of a product, merging into an existing line with the
// same variant set.
func AddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload addItemRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := parseProductID(payload.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quantity := payload.Quantity
		if quantity == 0 {
			quantity = 1
		}
		view, err := svc.AddItem(r.Context(), middleware.UserIDFromContext(r.Context()), cartsvc.AddItemInput{
			ProductID: productID,
			Quantity:  quantity,
			Variants:  payload.Variants,
		})
		respond(w, r, logg, view, err)
	}
}

// SetQuantity sets the quantity of the line for {productID} and the variants
// in the body. Zero removes the line.
func SetQuantity(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload setQuantityRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.SetQuantity(r.Context(), middleware.UserIDFromContext(r.Context()), cartsvc.SetQuantityInput{
			ProductID: productID,
			Variants:  payload.Variants,
			Quantity:  payload.Quantity,
		})
		respond(w, r, logg, view, err)
	}
}

// RemoveItem removes the line for {productID}. Variants are passed as
// repeated ?variant=name:value query parameters.
func RemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variants, err := variantsFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.RemoveItem(r.Context(), middleware.UserIDFromContext(r.Context()), productID, variants)
		respond(w, r, logg, view, err)
	}
}

func ApplyCoupon(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload couponRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.ApplyCoupon(r.Context(), middleware.UserIDFromContext(r.Context()), payload.Code)
		respond(w, r, logg, view, err)
	}
}

func RemoveCoupon(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.RemoveCoupon(r.Context(), middleware.UserIDFromContext(r.Context()))
		respond(w, r, logg, view, err)
	}
}

func Clear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.Clear(r.Context(), middleware.UserIDFromContext(r.Context()))
		respond(w, r, logg, view, err)
	}
}

func respond(w http.ResponseWriter, r *http.Request, logg *logger.Logger, view *cartsvc.View, err error) {
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, view)
}

func variantsFromQuery(r *http.Request) (types.Variants, error) {
	raw := r.URL.Query()["variant"]
	if len(raw) == 0 {
		return nil, nil
	}
	variants := make(types.Variants, 0, len(raw))
	for _, entry := range raw {
		name, value, ok := strings.Cut(entry, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant must be name:value").
				WithDetails(map[string]any{"field": "variant", "value": entry})
		}
		variants = append(variants, types.Variant{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)})
	}
	return variants, nil
}

func parseProductID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id").
			WithDetails(map[string]any{"field": "product_id"})
	}
	return id, nil
}
