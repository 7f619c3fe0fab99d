package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog listing. Stock and price never go negative.
type Product struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID     uuid.UUID       `gorm:"column:owner_id;type:uuid;not null;index"`
	Title       string          `gorm:"column:title;not null"`
	Brand       string          `gorm:"column:brand;not null;index"`
	Description string          `gorm:"column:description;not null;default:''"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Stock       int             `gorm:"column:stock;not null;default:0"`
	IsActive    bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// InStock reports whether qty units can currently be sold.
func (p *Product) InStock(qty int) bool {
	return p != nil && p.IsActive && qty > 0 && qty <= p.Stock
}
