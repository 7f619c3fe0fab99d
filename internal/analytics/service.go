package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mercadito-pesca/mercadito-backend/internal/products"
	"github.com/mercadito-pesca/mercadito-backend/pkg/db/models"
	"github.com/mercadito-pesca/mercadito-backend/pkg/enums"
	pkgerrors "github.com/mercadito-pesca/mercadito-backend/pkg/errors"
	"github.com/mercadito-pesca/mercadito-backend/pkg/logger"
)

const (
	DefaultRecommendationLimit = 6
	MaxRecommendationLimit     = 24
	DefaultTrendingLimit       = 10
	DefaultTrendingWindow      = 7 * 24 * time.Hour
	DefaultDealsLimit          = 20

	similarProductsLimit = 3
	coInterestLimit      = 3
	maxQueryLength       = 200
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service records shopper behavior and derives scores, recommendations and
// price analyses from it.
type Service interface {
	RecordBehavior(ctx context.Context, input BehaviorInput) (*IntentScoreDTO, error)
	Track(ctx context.Context, userID, productID uuid.UUID, action enums.BehaviorAction) error
	RecomputeIntentScore(ctx context.Context, userID uuid.UUID) (*IntentScoreDTO, error)
	IntentScore(ctx context.Context, userID uuid.UUID) (*IntentScoreDTO, error)

	Recommendations(ctx context.Context, userID, currentProductID *uuid.UUID, limit int) ([]RecommendationDTO, error)
	Trending(ctx context.Context, since time.Time, limit int) ([]TrendingDTO, error)

	RefreshPriceComparison(ctx context.Context, productID uuid.UUID) (*PriceComparisonDTO, error)
	RefreshAll(ctx context.Context) (int, error)
	ListDeals(ctx context.Context, limit int) ([]DealDTO, error)
}

type service struct {
	repo     *Repository
	products *products.Repository
	tx       txRunner
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(repo *Repository, productRepo *products.Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("analytics repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		products: productRepo,
		tx:       tx,
		logg:     logg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// RecordBehavior stores one interaction and refreshes the user's intent
// score in the same transaction. Repeat views fold into the first view row.
func (s *service) RecordBehavior(ctx context.Context, input BehaviorInput) (*IntentScoreDTO, error) {
	if err := validateBehavior(input); err != nil {
		return nil, err
	}
	if input.ProductID != nil {
		if _, err := s.products.FindByID(ctx, *input.ProductID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
	}

	var score models.CartIntentScore
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.appendBehavior(ctx, repo, input); err != nil {
			return err
		}
		computed, err := s.recompute(ctx, repo, input.UserID)
		if err != nil {
			return err
		}
		score = computed
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record behavior")
	}

	dto := intentFromModel(score)
	return &dto, nil
}

// Track is the narrow entry point used by cart and checkout.
func (s *service) Track(ctx context.Context, userID, productID uuid.UUID, action enums.BehaviorAction) error {
	_, err := s.RecordBehavior(ctx, BehaviorInput{UserID: userID, ProductID: &productID, Action: action})
	return err
}

func (s *service) RecomputeIntentScore(ctx context.Context, userID uuid.UUID) (*IntentScoreDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	var score models.CartIntentScore
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		computed, err := s.recompute(ctx, s.repo.WithTx(tx), userID)
		score = computed
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recompute intent score")
	}
	dto := intentFromModel(score)
	return &dto, nil
}

// IntentScore returns the stored score, computing it on first access.
func (s *service) IntentScore(ctx context.Context, userID uuid.UUID) (*IntentScoreDTO, error) {
	row, err := s.repo.FindIntentScore(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.RecomputeIntentScore(ctx, userID)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load intent score")
	}
	dto := intentFromModel(*row)
	return &dto, nil
}

func (s *service) appendBehavior(ctx context.Context, repo *Repository, input BehaviorInput) error {
	if input.Action.Repeatable() && input.ProductID != nil {
		existing, err := repo.FindBehavior(ctx, input.UserID, *input.ProductID, input.Action)
		switch {
		case err == nil:
			return repo.AddRepeatView(ctx, existing.ID, input.TimeOnPage)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
	}
	return repo.CreateBehavior(ctx, &models.UserBehavior{
		UserID:     input.UserID,
		ProductID:  input.ProductID,
		Action:     input.Action,
		TimeOnPage: input.TimeOnPage,
		Views:      1,
		Query:      strings.TrimSpace(input.Query),
	})
}

func (s *service) recompute(ctx context.Context, repo *Repository, userID uuid.UUID) (models.CartIntentScore, error) {
	history, err := repo.ListBehaviors(ctx, userID)
	if err != nil {
		return models.CartIntentScore{}, err
	}
	score := models.CartIntentScore{
		UserID:     userID,
		Score:      ComputeIntentScore(history),
		Behaviors:  len(history),
		ComputedAt: s.now(),
	}
	if err := repo.SaveIntentScore(ctx, &score); err != nil {
		return models.CartIntentScore{}, err
	}
	return score, nil
}

func validateBehavior(input BehaviorInput) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if !input.Action.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid action").
			WithDetails(map[string]any{"field": "action", "value": input.Action})
	}
	if input.Action.RequiresProduct() && input.ProductID == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product_id is required").
			WithDetails(map[string]any{"field": "product_id"})
	}
	if input.TimeOnPage < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "time_on_page must not be negative").
			WithDetails(map[string]any{"field": "time_on_page"})
	}
	if len([]rune(input.Query)) > maxQueryLength {
		return pkgerrors.New(pkgerrors.CodeValidation, "query too long").
			WithDetails(map[string]any{"field": "query", "max": maxQueryLength})
	}
	return nil
}

// Recommendations builds a product list for a shopper. Anonymous shoppers get
// the most popular products. Known shoppers get products similar to what they
// bought, then products others carted or bought with the current product,
// then any in-stock product until the limit is reached.
func (s *service) Recommendations(ctx context.Context, userID, currentProductID *uuid.UUID, limit int) ([]RecommendationDTO, error) {
	limit = clampLimit(limit, DefaultRecommendationLimit, MaxRecommendationLimit)

	var picked []models.Product
	if userID == nil {
		popular, err := s.repo.PopularProducts(ctx, limit)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load popular products")
		}
		picked = popular
	} else {
		var err error
		picked, err = s.personalized(ctx, *userID, currentProductID, limit)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build recommendations")
		}
	}

	out := make([]RecommendationDTO, 0, len(picked))
	for _, product := range picked {
		rec := RecommendationDTO{Product: products.FromModel(product)}
		if cmp, err := s.refresh(ctx, &product); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "product_id", product.ID.String()), "recommendations.price_refresh_failed", err)
		} else {
			dto := comparisonFromModel(*cmp)
			rec.Price = &dto
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *service) personalized(ctx context.Context, userID uuid.UUID, currentProductID *uuid.UUID, limit int) ([]models.Product, error) {
	purchased, err := s.repo.PurchasedProductIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]struct{}, limit)
	for _, id := range purchased {
		seen[id] = struct{}{}
	}
	if currentProductID != nil {
		seen[*currentProductID] = struct{}{}
	}
	picked := make([]models.Product, 0, limit)
	add := func(p models.Product) {
		if len(picked) >= limit || !p.InStock(1) {
			return
		}
		if _, dup := seen[p.ID]; dup {
			return
		}
		seen[p.ID] = struct{}{}
		picked = append(picked, p)
	}

	similar, err := s.repo.SimilarProducts(ctx, purchased, similarProductsLimit)
	if err != nil {
		return nil, err
	}
	for _, p := range similar {
		add(p)
	}

	if currentProductID != nil {
		hits, err := s.repo.CoInterestProducts(ctx, *currentProductID, coInterestLimit)
		if err != nil {
			return nil, err
		}
		ids := make([]uuid.UUID, 0, len(hits))
		for _, h := range hits {
			ids = append(ids, h.ProductID)
		}
		byID, err := s.products.FindActiveByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if p, ok := byID[id]; ok {
				add(p)
			}
		}
	}

	if len(picked) < limit {
		filler, err := s.products.ListAllActive(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range filler {
			add(p)
		}
	}
	return picked, nil
}

// Trending ranks products by recent view, cart and buy activity. Inactive
// products are dropped from the ranking.
func (s *service) Trending(ctx context.Context, since time.Time, limit int) ([]TrendingDTO, error) {
	limit = clampLimit(limit, DefaultTrendingLimit, MaxRecommendationLimit)
	if since.IsZero() {
		since = s.now().Add(-DefaultTrendingWindow)
	}

	hits, err := s.repo.Trending(ctx, since, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load trending")
	}
	ids := make([]uuid.UUID, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ProductID)
	}
	byID, err := s.products.FindActiveByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load trending products")
	}

	out := make([]TrendingDTO, 0, len(hits))
	for _, h := range hits {
		product, ok := byID[h.ProductID]
		if !ok {
			continue
		}
		out = append(out, TrendingDTO{Product: products.FromModel(product), Hits: h.Hits})
	}
	return out, nil
}

// RefreshPriceComparison recomputes and stores the product's snapshot.
func (s *service) RefreshPriceComparison(ctx context.Context, productID uuid.UUID) (*PriceComparisonDTO, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	row, err := s.refresh(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh price comparison")
	}
	dto := comparisonFromModel(*row)
	return &dto, nil
}

// RefreshAll refreshes every active product and reports how many snapshots
// were written. It stops at the first storage error.
func (s *service) RefreshAll(ctx context.Context) (int, error) {
	all, err := s.products.ListAllActive(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	refreshed := 0
	for i := range all {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}
		if _, err := s.refresh(ctx, &all[i]); err != nil {
			return refreshed, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh price comparison")
		}
		refreshed++
	}
	return refreshed, nil
}

func (s *service) refresh(ctx context.Context, product *models.Product) (*models.PriceComparison, error) {
	peers, err := s.products.FindPeers(ctx, product.Brand, product.ID)
	if err != nil {
		return nil, err
	}
	prices := make([]decimal.Decimal, 0, len(peers))
	for _, p := range peers {
		prices = append(prices, p.Price)
	}
	cmp := Compare(product.Price, prices)

	row := &models.PriceComparison{
		ProductID:   product.ID,
		PeerCount:   cmp.PeerCount,
		AvgPrice:    cmp.AvgPrice,
		MinPrice:    cmp.MinPrice,
		MaxPrice:    cmp.MaxPrice,
		IsDeal:      cmp.IsDeal,
		SavingsPct:  cmp.SavingsPct,
		RefreshedAt: s.now(),
	}
	if err := s.repo.SaveComparison(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

// ListDeals returns stored deal snapshots. Snapshots are as fresh as the last
// refresh of each product.
func (s *service) ListDeals(ctx context.Context, limit int) ([]DealDTO, error) {
	limit = clampLimit(limit, DefaultDealsLimit, 100)
	rows, err := s.repo.ListDeals(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list deals")
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ProductID)
	}
	byID, err := s.products.FindActiveByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load deal products")
	}

	out := make([]DealDTO, 0, len(rows))
	for _, row := range rows {
		product, ok := byID[row.ProductID]
		if !ok {
			continue
		}
		out = append(out, DealDTO{Product: products.FromModel(product), Comparison: comparisonFromModel(row)})
	}
	return out, nil
}

func clampLimit(limit, def, max int) int {
	switch {
	case limit <= 0:
		return def
	case limit > max:
		return max
	}
	return limit
}
