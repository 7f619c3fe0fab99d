package analytics

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercadito-pesca/mercadito-backend/internal/products"
	"github.com/mercadito-pesca/mercadito-backend/pkg/db/models"
	"github.com/mercadito-pesca/mercadito-backend/pkg/enums"
)

// BehaviorInput is one tracked interaction. ProductID is required for every
// action except search.
type BehaviorInput struct {
	UserID     uuid.UUID
	ProductID  *uuid.UUID
	Action     enums.BehaviorAction
	TimeOnPage int
	Query      string
}

type IntentScoreDTO struct {
	UserID     uuid.UUID `json:"user_id"`
	Score      float64   `json:"score"`
	Behaviors  int       `json:"behaviors"`
	ComputedAt time.Time `json:"computed_at"`
}

func intentFromModel(m models.CartIntentScore) IntentScoreDTO {
	return IntentScoreDTO{
		UserID:     m.UserID,
		Score:      m.Score,
		Behaviors:  m.Behaviors,
		ComputedAt: m.ComputedAt,
	}
}

// PriceComparisonDTO is a snapshot plus its shopper-facing label. Null stats
// and a null is_deal mean the brand has no other active products.
type PriceComparisonDTO struct {
	ProductID   uuid.UUID           `json:"product_id"`
	PeerCount   int                 `json:"peer_count"`
	AvgPrice    decimal.NullDecimal `json:"avg_price"`
	MinPrice    decimal.NullDecimal `json:"min_price"`
	MaxPrice    decimal.NullDecimal `json:"max_price"`
	IsDeal      *bool               `json:"is_deal"`
	SavingsPct  decimal.Decimal     `json:"savings_pct"`
	Label       string              `json:"label"`
	RefreshedAt time.Time           `json:"refreshed_at"`
}

func comparisonFromModel(m models.PriceComparison) PriceComparisonDTO {
	return PriceComparisonDTO{
		ProductID:   m.ProductID,
		PeerCount:   m.PeerCount,
		AvgPrice:    m.AvgPrice,
		MinPrice:    m.MinPrice,
		MaxPrice:    m.MaxPrice,
		IsDeal:      m.IsDeal,
		SavingsPct:  m.SavingsPct,
		Label:       Label(m.IsDeal, m.SavingsPct),
		RefreshedAt: m.RefreshedAt,
	}
}

// RecommendationDTO pairs a product with its current price analysis. Price is
// omitted when the comparison could not be refreshed.
type RecommendationDTO struct {
	Product products.ProductDTO `json:"product"`
	Price   *PriceComparisonDTO `json:"price,omitempty"`
}

type TrendingDTO struct {
	Product products.ProductDTO `json:"product"`
	Hits    int64               `json:"hits"`
}

type DealDTO struct {
	Product    products.ProductDTO `json:"product"`
	Comparison PriceComparisonDTO  `json:"comparison"`
}
