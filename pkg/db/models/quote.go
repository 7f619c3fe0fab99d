package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mercadito-pesca/mercadito-backend/pkg/enums"
)

// Quote (presupuesto) is a priced proposal built from a cart. It never reserves stock.
type Quote struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Status    enums.QuoteStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Total     decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null"`
	Notes     string            `gorm:"column:notes;not null;default:''"`
	Items     []QuoteItem       `gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (q *Quote) BeforeCreate(*gorm.DB) error {
	assignID(&q.ID)
	return nil
}

// ComputeTotal sums unit price times quantity over the items.
func (q *Quote) ComputeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range q.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

type QuoteItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	QuoteID      uuid.UUID       `gorm:"column:quote_id;type:uuid;not null;index"`
	ProductID    uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductTitle string          `gorm:"column:product_title;not null"`
	Quantity     int             `gorm:"column:quantity;not null"`
	UnitPrice    decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
}

func (i *QuoteItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}

func (i QuoteItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
