package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadito-pesca/mercadito-backend/internal/products"
	"github.com/mercadito-pesca/mercadito-backend/pkg/db/models"
	"github.com/mercadito-pesca/mercadito-backend/pkg/enums"
	pkgerrors "github.com/mercadito-pesca/mercadito-backend/pkg/errors"
	"github.com/mercadito-pesca/mercadito-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// behaviorTracker records cart activity for intent scoring. Failures are
// logged and never fail the cart mutation.
type behaviorTracker interface {
	Track(ctx context.Context, userID, productID uuid.UUID, action enums.BehaviorAction) error
}

// Service maintains the per-user cart aggregate.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartDTO, error)
	UpdateItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartDTO, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*CartDTO, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo     *Repository
	products *products.Repository
	tx       txRunner
	tracker  behaviorTracker
	logg     *logger.Logger
}

// NewService builds a cart service. tracker may be nil.
func NewService(repo *Repository, productRepo *products.Repository, tx txRunner, tracker behaviorTracker, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
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
	return &service{repo: repo, products: productRepo, tx: tx, tracker: tracker, logg: logg}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	cart, err := s.repo.Load(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	dto := FromModel(cart)
	return &dto, nil
}

// AddItem adds quantity units, summing with any existing line. The summed
// quantity must fit the current stock.
func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartDTO, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than 0").
			WithDetails(map[string]any{"field": "quantity"})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cart, err := s.repo.WithTx(tx).GetOrCreate(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		product, err := s.products.WithTx(tx).FindActive(ctx, productID)
		if err != nil {
			return productLookupError(err)
		}

		existing, err := s.repo.WithTx(tx).FindItem(ctx, cart.ID, productID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}
		total := quantity
		if existing != nil {
			total += existing.Quantity
		}
		if total > product.Stock {
			return insufficientStock(product)
		}

		if existing != nil {
			err = s.repo.WithTx(tx).SetQuantity(ctx, existing.ID, total)
		} else {
			err = s.repo.WithTx(tx).CreateItem(ctx, &models.CartItem{CartID: cart.ID, ProductID: productID, Quantity: total})
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart item")
		}
		return s.repo.WithTx(tx).Touch(ctx, cart.ID)
	})
	if err != nil {
		return nil, err
	}

	s.track(ctx, userID, productID, enums.BehaviorCart)
	return s.Get(ctx, userID)
}

// UpdateItem sets the line quantity. Zero or less removes the line, and is a
// no-op when there is no line. More than the current stock fails and leaves
// the line untouched.
func (s *service) UpdateItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartDTO, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cart, err := s.repo.WithTx(tx).GetOrCreate(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		item, err := s.repo.WithTx(tx).FindItem(ctx, cart.ID, productID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound) && quantity <= 0:
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			return pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
		case err != nil:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}

		if quantity <= 0 {
			if err := s.repo.WithTx(tx).DeleteItem(ctx, cart.ID, productID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
			}
			return s.repo.WithTx(tx).Touch(ctx, cart.ID)
		}

		product, err := s.products.WithTx(tx).FindActive(ctx, productID)
		if err != nil {
			return productLookupError(err)
		}
		if quantity > product.Stock {
			return insufficientStock(product)
		}
		if err := s.repo.WithTx(tx).SetQuantity(ctx, item.ID, quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		return s.repo.WithTx(tx).Touch(ctx, cart.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*CartDTO, error) {
	cart, err := s.repo.Load(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if cart.ID != uuid.Nil {
		if err := s.repo.DeleteItem(ctx, cart.ID, productID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
		}
	}
	return s.Get(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	cart, err := s.repo.Load(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if cart.ID == uuid.Nil {
		return nil
	}
	if err := s.repo.Clear(ctx, cart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *service) track(ctx context.Context, userID, productID uuid.UUID, action enums.BehaviorAction) {
	if s.tracker == nil {
		return
	}
	if err := s.tracker.Track(ctx, userID, productID, action); err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"product_id": productID.String(),
			"action":     string(action),
			"error":      err.Error(),
		}), "cart.track_behavior_failed")
	}
}

func insufficientStock(product *models.Product) error {
	return pkgerrors.Newf(pkgerrors.CodeValidation, "only %d units of %s available", product.Stock, product.Title).
		WithDetails(map[string]any{
			"product_id": product.ID,
			"product":    product.Title,
			"available":  product.Stock,
		})
}

func productLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
}
