package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercadito-pesca/mercadito-backend/api/responses"
	"github.com/mercadito-pesca/mercadito-backend/api/validators"
	productsvc "github.com/mercadito-pesca/mercadito-backend/internal/products"
	"github.com/mercadito-pesca/mercadito-backend/pkg/enums"
	pkgerrors "github.com/mercadito-pesca/mercadito-backend/pkg/errors"
	"github.com/mercadito-pesca/mercadito-backend/pkg/logger"
)

// viewTracker records product views for signed-in shoppers.
type viewTracker interface {
	Track(ctx context.Context, userID, productID uuid.UUID, action enums.BehaviorAction) error
}

// ProductList returns the public catalog, newest first.
func ProductList(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("product service"))
			return
		}

		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := r.URL.Query()
		filter := productsvc.ListFilter{
			Brand:  validators.SanitizeString(query.Get("brand"), 100),
			Search: validators.SanitizeString(query.Get("search"), 200),
		}
		if raw := strings.TrimSpace(query.Get("owner_id")); raw != "" {
			ownerID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid owner_id"))
				return
			}
			filter.OwnerID = &ownerID
		}

		page, err := svc.List(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// ProductDetail returns one listing. Views by signed-in callers feed the
// behavior history; tracking failures never fail the read.
func ProductDetail(svc productsvc.Service, tracker viewTracker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("product service"))
			return
		}

		productID, err := validators.ParseUUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor := optionalActor(r.Context())
		product, err := svc.Get(r.Context(), actor, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if actor != nil && tracker != nil {
			if err := tracker.Track(r.Context(), actor.UserID, productID, enums.BehaviorView); err != nil && logg != nil {
				logg.Warn(logg.WithField(r.Context(), "product_id", productID.String()), "products.view_track_failed")
			}
		}
		responses.WriteSuccess(w, product)
	}
}

// ProductCreate lists a new product owned by the caller.
func ProductCreate(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("product service"))
			return
		}
		actor, err := requireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Create(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

type createProductRequest struct {
	Title       string `json:"title" validate:"required,notblank,max=200"`
	Brand       string `json:"brand" validate:"required,notblank,max=100"`
	Description string `json:"description" validate:"max=4000"`
	Price       string `json:"price" validate:"required,money"`
	Stock       int    `json:"stock" validate:"min=0"`
}

func (p createProductRequest) toInput() (productsvc.CreateInput, error) {
	price, err := parsePrice(p.Price)
	if err != nil {
		return productsvc.CreateInput{}, err
	}
	return productsvc.CreateInput{
		Title:       p.Title,
		Brand:       p.Brand,
		Description: p.Description,
		Price:       price,
		Stock:       p.Stock,
	}, nil
}

// ProductUpdate applies a partial edit. Only the owner or staff may call it.
func ProductUpdate(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("product service"))
			return
		}
		actor, err := requireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Update(r.Context(), actor, productID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

type updateProductRequest struct {
	Title       *string `json:"title" validate:"omitempty,notblank,max=200"`
	Brand       *string `json:"brand" validate:"omitempty,notblank,max=100"`
	Description *string `json:"description" validate:"omitempty,max=4000"`
	Price       *string `json:"price" validate:"omitempty,money"`
	Stock       *int    `json:"stock" validate:"omitempty,min=0"`
	IsActive    *bool   `json:"is_active"`
}

func (p updateProductRequest) toInput() (productsvc.UpdateInput, error) {
	input := productsvc.UpdateInput{
		Title:       p.Title,
		Brand:       p.Brand,
		Description: p.Description,
		Stock:       p.Stock,
		IsActive:    p.IsActive,
	}
	if p.Price != nil {
		price, err := parsePrice(*p.Price)
		if err != nil {
			return productsvc.UpdateInput{}, err
		}
		input.Price = &price
	}
	return input, nil
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid price").
			WithDetails(map[string]any{"field": "price"})
	}
	return price, nil
}
