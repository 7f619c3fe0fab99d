package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadito-pesca/mercadito-backend/pkg/db/models"
	pkgerrors "github.com/mercadito-pesca/mercadito-backend/pkg/errors"
	"github.com/mercadito-pesca/mercadito-backend/pkg/pagination"
	"github.com/mercadito-pesca/mercadito-backend/pkg/types"
)

// Service exposes catalog reads and owner/staff writes.
type Service interface {
	List(ctx context.Context, filter ListFilter, params pagination.Params) (types.Page[ProductDTO], error)
	Get(ctx context.Context, actor *types.Actor, id uuid.UUID) (*ProductDTO, error)
	Create(ctx context.Context, actor types.Actor, input CreateInput) (*ProductDTO, error)
	Update(ctx context.Context, actor types.Actor, id uuid.UUID, input UpdateInput) (*ProductDTO, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, filter ListFilter, params pagination.Params) (types.Page[ProductDTO], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return types.Page[ProductDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	filter.Cursor = cursor
	filter.Limit = params.Limit

	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return types.Page[ProductDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	rows, next := pagination.Trim(rows, params.Limit, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})

	items := make([]ProductDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, FromModel(row))
	}
	return types.Page[ProductDTO]{Items: items, NextCursor: next}, nil
}

// Get hides inactive listings from everyone except their owner and staff.
func (s *service) Get(ctx context.Context, actor *types.Actor, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	if !product.IsActive && (actor == nil || !actor.CanManage(product.OwnerID)) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	dto := FromModel(*product)
	return &dto, nil
}

func (s *service) Create(ctx context.Context, actor types.Actor, input CreateInput) (*ProductDTO, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	product := &models.Product{
		OwnerID:     actor.UserID,
		Title:       strings.TrimSpace(input.Title),
		Brand:       strings.TrimSpace(input.Brand),
		Description: strings.TrimSpace(input.Description),
		Price:       input.Price,
		Stock:       input.Stock,
		IsActive:    true,
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	dto := FromModel(*product)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, actor types.Actor, id uuid.UUID, input UpdateInput) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	if !actor.CanManage(product.OwnerID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the owner or staff can edit this product")
	}

	if input.Title != nil {
		product.Title = strings.TrimSpace(*input.Title)
	}
	if input.Brand != nil {
		product.Brand = strings.TrimSpace(*input.Brand)
	}
	if input.Description != nil {
		product.Description = strings.TrimSpace(*input.Description)
	}
	if input.Price != nil {
		product.Price = *input.Price
	}
	if input.Stock != nil {
		product.Stock = *input.Stock
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	dto := FromModel(*product)
	return &dto, nil
}

func validateProduct(p *models.Product) error {
	details := map[string]string{}
	if p.Title == "" {
		details["title"] = "is required"
	}
	if p.Brand == "" {
		details["brand"] = "is required"
	}
	if p.Price.IsNegative() {
		details["price"] = "must be at least 0"
	}
	if p.Stock < 0 {
		details["stock"] = "must be at least 0"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid product").WithDetails(details)
	}
	return nil
}

func mapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
}
