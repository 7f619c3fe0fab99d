package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercadito-pesca/mercadito-backend/pkg/db/models"
)

type CartItemDTO struct {
	ProductID uuid.UUID       `json:"product_id"`
	Title     string          `json:"title"`
	Brand     string          `json:"brand"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Available int             `json:"available"`
}

type CartDTO struct {
	ID         uuid.UUID       `json:"id"`
	Items      []CartItemDTO   `json:"items"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

func FromModel(c *models.Cart) CartDTO {
	dto := CartDTO{
		ID:         c.ID,
		Items:      make([]CartItemDTO, 0, len(c.Items)),
		TotalItems: c.TotalItems(),
		TotalPrice: c.TotalPrice(),
	}
	for _, item := range c.Items {
		line := CartItemDTO{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal(),
		}
		if item.Product != nil {
			line.Title = item.Product.Title
			line.Brand = item.Product.Brand
			line.UnitPrice = item.Product.Price
			line.Available = item.Product.Stock
		}
		dto.Items = append(dto.Items, line)
	}
	return dto
}
