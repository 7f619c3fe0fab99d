package controllers

import (
	"net/http"

	"github.com/mercadito-pesca/mercadito-backend/api/responses"
	"github.com/mercadito-pesca/mercadito-backend/api/validators"
	checkoutsvc "github.com/mercadito-pesca/mercadito-backend/internal/checkout"
	"github.com/mercadito-pesca/mercadito-backend/pkg/logger"
)

type checkoutRequest struct {
	ShippingAddress string `json:"shipping_address" validate:"required,notblank,max=300"`
	Phone           string `json:"phone" validate:"max=32"`
	Notes           string `json:"notes" validate:"max=1000"`
}

// Checkout turns the caller's cart into an order. Stock is reserved inside
// the same transaction that writes the order; notifications follow.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("checkout service"))
			return
		}
		actor, err := requireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Checkout(r.Context(), actor.UserID, checkoutsvc.Input{
			ShippingAddress: payload.ShippingAddress,
			Phone:           payload.Phone,
			Notes:           payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
