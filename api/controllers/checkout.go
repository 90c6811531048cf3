package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/commerce-engine/api/controllers/orders"
	"github.com/angelmondragon/commerce-engine/api/middleware"
	"github.com/angelmondragon/commerce-engine/api/responses"
	"github.com/angelmondragon/commerce-engine/api/validators"
	checkoutsvc "github.com/angelmondragon/commerce-engine/internal/checkout"
	"github.com/angelmondragon/commerce-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/commerce-engine/pkg/errors"
	"github.com/angelmondragon/commerce-engine/pkg/logger"
	"github.com/angelmondragon/commerce-engine/pkg/types"
)

const maxNotesLen = 1000

type checkoutRequest struct {
	ShippingAddress types.ShippingAddress `json:"shipping_address" validate:"required"`
	PaymentMethod   string                `json:"payment_method" validate:"required"`
	Notes           string                `json:"notes"`
}

// Checkout converts the caller's cart into an order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload checkoutRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(strings.ToLower(strings.TrimSpace(payload.PaymentMethod)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method").
				WithDetails(map[string]any{"field": "payment_method"}))
			return
		}

		order, err := svc.Checkout(r.Context(), middleware.UserIDFromContext(r.Context()), checkoutsvc.Input{
			ShippingAddress: payload.ShippingAddress,
			PaymentMethod:   method,
			Notes:           validators.SanitizeString(payload.Notes, maxNotesLen),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, orders.NewOrderResponse(order))
	}
}
