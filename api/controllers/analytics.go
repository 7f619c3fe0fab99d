package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mercadito-pesca/mercadito-backend/api/responses"
	"github.com/mercadito-pesca/mercadito-backend/api/validators"
	analyticssvc "github.com/mercadito-pesca/mercadito-backend/internal/analytics"
	"github.com/mercadito-pesca/mercadito-backend/pkg/enums"
	pkgerrors "github.com/mercadito-pesca/mercadito-backend/pkg/errors"
	"github.com/mercadito-pesca/mercadito-backend/pkg/logger"
)

const maxTrendingDays = 90

type recordBehaviorRequest struct {
	Action     string     `json:"action" validate:"required,notblank"`
	ProductID  *uuid.UUID `json:"product_id"`
	TimeOnPage int        `json:"time_on_page" validate:"min=0"`
	Query      string     `json:"query" validate:"max=200"`
}

// AnalyticsRecordBehavior stores one interaction and returns the caller's
// refreshed intent score.
func AnalyticsRecordBehavior(svc analyticssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("analytics service"))
			return
		}
		actor, err := requireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload recordBehaviorRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		action, err := enums.ParseBehaviorAction(strings.TrimSpace(payload.Action))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid action").
				WithDetails(map[string]any{"field": "action"}))
			return
		}

		score, err := svc.RecordBehavior(r.Context(), analyticssvc.BehaviorInput{
			UserID:     actor.UserID,
			ProductID:  payload.ProductID,
			Action:     action,
			TimeOnPage: payload.TimeOnPage,
			Query:      strings.TrimSpace(payload.Query),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, score)
	}
}

func AnalyticsIntentScore(svc analyticssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("analytics service"))
			return
		}
		actor, err := requireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		score, err := svc.IntentScore(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, score)
	}
}

// AnalyticsRecommendations serves personalized picks for signed-in callers
// and popular products otherwise. product_id excludes the page being viewed.
func AnalyticsRecommendations(svc analyticssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("analytics service"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", analyticssvc.DefaultRecommendationLimit, 1, analyticssvc.MaxRecommendationLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var current *uuid.UUID
		if raw := strings.TrimSpace(r.URL.Query().Get("product_id")); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid product_id").
					WithDetails(map[string]any{"field": "product_id"}))
				return
			}
			current = &id
		}

		var userID *uuid.UUID
		if actor := optionalActor(r.Context()); actor != nil {
			userID = &actor.UserID
		}

		items, err := svc.Recommendations(r.Context(), userID, current, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

func AnalyticsTrending(svc analyticssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("analytics service"))
			return
		}
		days, err := validators.ParseQueryInt(r, "days", 0, 0, maxTrendingDays)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", analyticssvc.DefaultTrendingLimit, 1, analyticssvc.MaxRecommendationLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var since time.Time
		if days > 0 {
			since = time.Now().UTC().AddDate(0, 0, -days)
		}

		items, err := svc.Trending(r.Context(), since, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

func AnalyticsDeals(svc analyticssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("analytics service"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", analyticssvc.DefaultDealsLimit, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deals, err := svc.ListDeals(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, deals)
	}
}

// ProductPriceComparison recomputes and returns the brand comparison for one product.
func ProductPriceComparison(svc analyticssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("analytics service"))
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		comparison, err := svc.RefreshPriceComparison(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, comparison)
	}
}

// AdminRefreshPrices recomputes every active product's comparison.
func AdminRefreshPrices(svc analyticssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("analytics service"))
			return
		}

		refreshed, err := svc.RefreshAll(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"refreshed": refreshed})
	}
}
