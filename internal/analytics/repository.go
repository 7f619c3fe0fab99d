package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mercadito-pesca/mercadito-backend/pkg/db/models"
	"github.com/mercadito-pesca/mercadito-backend/pkg/enums"
)

// ProductHits is a product id with the number of matching behavior rows.
type ProductHits struct {
	ProductID uuid.UUID `gorm:"column:product_id"`
	Hits      int64     `gorm:"column:hits"`
}

// Repository persists behaviors, intent scores and price comparisons.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindBehavior returns the existing row for a repeatable (user, product, action).
func (r *Repository) FindBehavior(ctx context.Context, userID, productID uuid.UUID, action enums.BehaviorAction) (*models.UserBehavior, error) {
	var row models.UserBehavior
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ? AND action = ?", userID, productID, action).
		Order("created_at ASC").
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) CreateBehavior(ctx context.Context, row *models.UserBehavior) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// AddRepeatView counts one more view on an existing row.
func (r *Repository) AddRepeatView(ctx context.Context, id uuid.UUID, seconds int) error {
	return r.db.WithContext(ctx).
		Model(&models.UserBehavior{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"views":        gorm.Expr("views + 1"),
			"time_on_page": gorm.Expr("time_on_page + ?", seconds),
		}).Error
}

// ListBehaviors loads a user's full history.
func (r *Repository) ListBehaviors(ctx context.Context, userID uuid.UUID) ([]models.UserBehavior, error) {
	var rows []models.UserBehavior
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// SaveIntentScore upserts the score row keyed by user.
func (r *Repository) SaveIntentScore(ctx context.Context, score *models.CartIntentScore) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"score", "behaviors", "computed_at"}),
		}).
		Create(score).Error
}

func (r *Repository) FindIntentScore(ctx context.Context, userID uuid.UUID) (*models.CartIntentScore, error) {
	var row models.CartIntentScore
	if err := r.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// SaveComparison upserts the snapshot keyed by product.
func (r *Repository) SaveComparison(ctx context.Context, row *models.PriceComparison) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"peer_count", "avg_price", "min_price", "max_price", "is_deal", "savings_pct", "refreshed_at",
			}),
		}).
		Create(row).Error
}

func (r *Repository) FindComparison(ctx context.Context, productID uuid.UUID) (*models.PriceComparison, error) {
	var row models.PriceComparison
	if err := r.db.WithContext(ctx).First(&row, "product_id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ListDeals returns deal snapshots of active products, biggest savings first.
func (r *Repository) ListDeals(ctx context.Context, limit int) ([]models.PriceComparison, error) {
	var rows []models.PriceComparison
	err := r.db.WithContext(ctx).
		Model(&models.PriceComparison{}).
		Joins("JOIN products ON products.id = price_comparisons.product_id").
		Where("price_comparisons.is_deal = ? AND products.is_active = ?", true, true).
		Order("price_comparisons.savings_pct DESC").
		Order("price_comparisons.product_id").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// PopularProducts ranks active in-stock products by their activity,
// including products nobody has touched yet. Folded view rows count once per
// recorded view.
func (r *Repository) PopularProducts(ctx context.Context, limit int) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Select("products.*").
		Joins("LEFT JOIN user_behaviors ON user_behaviors.product_id = products.id").
		Where("products.is_active = ? AND products.stock > 0", true).
		Group("products.id").
		Order("COALESCE(SUM(user_behaviors.views), 0) DESC").
		Order("products.created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// PurchasedProductIDs lists the distinct products a user has bought.
func (r *Repository) PurchasedProductIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.UserBehavior{}).
		Distinct("product_id").
		Where("user_id = ? AND action = ? AND product_id IS NOT NULL", userID, enums.BehaviorBuy).
		Pluck("product_id", &ids).Error
	return ids, err
}

// SimilarProducts returns active in-stock products sharing a brand or seller
// with the given products, excluding them.
func (r *Repository) SimilarProducts(ctx context.Context, productIDs []uuid.UUID, limit int) ([]models.Product, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	brands := r.db.Model(&models.Product{}).Select("brand").Where("id IN ?", productIDs)
	owners := r.db.Model(&models.Product{}).Select("owner_id").Where("id IN ?", productIDs)

	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("(brand IN (?) OR owner_id IN (?))", brands, owners).
		Where("id NOT IN ?", productIDs).
		Where("is_active = ? AND stock > 0", true).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// CoInterestProducts ranks products that shoppers who carted or bought
// productID also carted or bought.
func (r *Repository) CoInterestProducts(ctx context.Context, productID uuid.UUID, limit int) ([]ProductHits, error) {
	actions := []enums.BehaviorAction{enums.BehaviorBuy, enums.BehaviorCart}
	shoppers := r.db.Model(&models.UserBehavior{}).
		Select("user_id").
		Where("product_id = ? AND action IN ?", productID, actions)

	var rows []ProductHits
	err := r.db.WithContext(ctx).
		Model(&models.UserBehavior{}).
		Select("product_id, COUNT(*) AS hits").
		Where("user_id IN (?) AND action IN ?", shoppers, actions).
		Where("product_id IS NOT NULL AND product_id <> ?", productID).
		Group("product_id").
		Order("hits DESC").
		Order("product_id").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// Trending ranks products by view, cart and buy activity since the cutoff.
// A folded view row contributes its view count.
func (r *Repository) Trending(ctx context.Context, since time.Time, limit int) ([]ProductHits, error) {
	actions := []enums.BehaviorAction{enums.BehaviorView, enums.BehaviorCart, enums.BehaviorBuy}
	var rows []ProductHits
	err := r.db.WithContext(ctx).
		Model(&models.UserBehavior{}).
		Select("product_id, SUM(views) AS hits").
		Where("created_at >= ? AND action IN ? AND product_id IS NOT NULL", since, actions).
		Group("product_id").
		Order("hits DESC").
		Order("product_id").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
