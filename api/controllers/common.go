package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/mercadito-pesca/mercadito-backend/api/middleware"
	"github.com/mercadito-pesca/mercadito-backend/api/validators"
	pkgerrors "github.com/mercadito-pesca/mercadito-backend/pkg/errors"
	"github.com/mercadito-pesca/mercadito-backend/pkg/pagination"
	"github.com/mercadito-pesca/mercadito-backend/pkg/types"
)

var errUnauthenticated = pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")

// requireActor reads the authenticated caller set by middleware.Auth.
func requireActor(ctx context.Context) (types.Actor, error) {
	userID, ok := middleware.UserUUIDFromContext(ctx)
	if !ok {
		return types.Actor{}, errUnauthenticated
	}
	return types.Actor{UserID: userID, Role: middleware.RoleFromContext(ctx)}, nil
}

// optionalActor returns nil for anonymous callers.
func optionalActor(ctx context.Context) *types.Actor {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil
	}
	return &actor
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}

func unavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" unavailable")
}
