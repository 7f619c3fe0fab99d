package reports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mercadito-pesca/mercadito-backend/pkg/db/models"
)

// CatalogRow is a product joined with its last price comparison, if any.
type CatalogRow struct {
	ID          uuid.UUID           `gorm:"column:id"`
	Title       string              `gorm:"column:title"`
	Brand       string              `gorm:"column:brand"`
	Price       decimal.Decimal     `gorm:"column:price"`
	Stock       int                 `gorm:"column:stock"`
	IsActive    bool                `gorm:"column:is_active"`
	AvgPrice    decimal.NullDecimal `gorm:"column:avg_price"`
	IsDeal      *bool               `gorm:"column:is_deal"`
	SavingsPct  decimal.NullDecimal `gorm:"column:savings_pct"`
	RefreshedAt *time.Time          `gorm:"column:refreshed_at"`
	CreatedAt   time.Time           `gorm:"column:created_at"`
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Catalog lists every product, active or not, ordered by brand then title.
func (r *Repository) Catalog(ctx context.Context) ([]CatalogRow, error) {
	var rows []CatalogRow
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Select(`products.id, products.title, products.brand, products.price, products.stock,
			products.is_active, products.created_at, price_comparisons.avg_price,
			price_comparisons.is_deal, price_comparisons.savings_pct, price_comparisons.refreshed_at`).
		Joins("LEFT JOIN price_comparisons ON price_comparisons.product_id = products.id").
		Order("products.brand").
		Order("products.title").
		Scan(&rows).Error
	return rows, err
}
