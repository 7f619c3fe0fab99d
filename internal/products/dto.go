package products

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercadito-pesca/mercadito-backend/pkg/db/models"
)

// ProductDTO is the catalog payload returned to clients.
type ProductDTO struct {
	ID          uuid.UUID       `json:"id"`
	OwnerID     uuid.UUID       `json:"owner_id"`
	Title       string          `json:"title"`
	Brand       string          `json:"brand"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	InStock     bool            `json:"in_stock"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func FromModel(p models.Product) ProductDTO {
	return ProductDTO{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Title:       p.Title,
		Brand:       p.Brand,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		InStock:     p.IsActive && p.Stock > 0,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// CreateInput carries a new listing.
type CreateInput struct {
	Title       string
	Brand       string
	Description string
	Price       decimal.Decimal
	Stock       int
}

// UpdateInput carries a partial edit; nil fields are left alone.
type UpdateInput struct {
	Title       *string
	Brand       *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	IsActive    *bool
}
