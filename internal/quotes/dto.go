package quotes

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercadito-pesca/mercadito-backend/internal/notifications"
	"github.com/mercadito-pesca/mercadito-backend/pkg/db/models"
	"github.com/mercadito-pesca/mercadito-backend/pkg/enums"
)

type QuoteItemDTO struct {
	ProductID uuid.UUID       `json:"product_id"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type QuoteDTO struct {
	ID         uuid.UUID         `json:"id"`
	Status     enums.QuoteStatus `json:"status"`
	Total      decimal.Decimal   `json:"total"`
	Notes      string            `json:"notes,omitempty"`
	Items      []QuoteItemDTO    `json:"items"`
	CreatedAt  time.Time         `json:"created_at"`
	ValidUntil time.Time         `json:"valid_until"`
}

// GenerateResult carries the new quote and how its delivery went.
type GenerateResult struct {
	Quote         QuoteDTO              `json:"quote"`
	Notifications notifications.Summary `json:"notifications"`
}

// Document is a rendered quote ready for download.
type Document struct {
	Filename string
	Content  []byte
}

func FromModel(q *models.Quote) QuoteDTO {
	dto := QuoteDTO{
		ID:         q.ID,
		Status:     q.Status,
		Total:      q.Total,
		Notes:      q.Notes,
		Items:      make([]QuoteItemDTO, 0, len(q.Items)),
		CreatedAt:  q.CreatedAt,
		ValidUntil: validUntil(q.CreatedAt),
	}
	for _, item := range q.Items {
		dto.Items = append(dto.Items, QuoteItemDTO{
			ProductID: item.ProductID,
			Title:     item.ProductTitle,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal(),
		})
	}
	return dto
}
