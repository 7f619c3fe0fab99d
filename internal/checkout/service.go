package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadito-pesca/mercadito-backend/internal/cart"
	"github.com/mercadito-pesca/mercadito-backend/internal/notifications"
	"github.com/mercadito-pesca/mercadito-backend/internal/orders"
	"github.com/mercadito-pesca/mercadito-backend/internal/products"
	"github.com/mercadito-pesca/mercadito-backend/pkg/db/models"
	"github.com/mercadito-pesca/mercadito-backend/pkg/enums"
	pkgerrors "github.com/mercadito-pesca/mercadito-backend/pkg/errors"
	"github.com/mercadito-pesca/mercadito-backend/pkg/logger"
	"github.com/mercadito-pesca/mercadito-backend/pkg/outbox"
	"github.com/mercadito-pesca/mercadito-backend/pkg/outbox/payloads"
)

const defaultNotifyWait = 10 * time.Second

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (uuid.UUID, error)
}

type userLoader interface {
	LoadUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type behaviorTracker interface {
	Track(ctx context.Context, userID, productID uuid.UUID, action enums.BehaviorAction) error
}

// Input carries the buyer-provided checkout fields.
type Input struct {
	ShippingAddress string
	Phone           string
	Notes           string
}

// Result carries the order and which channels confirmed it.
type Result struct {
	Order         orders.OrderDTO       `json:"order"`
	Notifications notifications.Summary `json:"notifications"`
}

// Service converts a cart into an order.
type Service interface {
	Checkout(ctx context.Context, userID uuid.UUID, input Input) (*Result, error)
}

type Params struct {
	Tx         txRunner
	Carts      *cart.Repository
	Products   *products.Repository
	Orders     orders.Repository
	Outbox     outboxPublisher
	Users      userLoader
	Dispatcher notifications.Submitter
	// Tracker is optional.
	Tracker    behaviorTracker
	NotifyWait time.Duration
	Logger     *logger.Logger
}

type service struct {
	tx         txRunner
	carts      *cart.Repository
	products   *products.Repository
	orders     orders.Repository
	outbox     outboxPublisher
	users      userLoader
	dispatcher notifications.Submitter
	tracker    behaviorTracker
	notifyWait time.Duration
	logg       *logger.Logger
}

func NewService(p Params) (Service, error) {
	if p.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if p.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if p.Products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if p.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if p.Users == nil {
		return nil, fmt.Errorf("user loader required")
	}
	if p.Dispatcher == nil {
		return nil, fmt.Errorf("notification dispatcher required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.NotifyWait <= 0 {
		p.NotifyWait = defaultNotifyWait
	}
	return &service{
		tx:         p.Tx,
		carts:      p.Carts,
		products:   p.Products,
		orders:     p.Orders,
		outbox:     p.Outbox,
		users:      p.Users,
		dispatcher: p.Dispatcher,
		tracker:    p.Tracker,
		notifyWait: p.NotifyWait,
		logg:       p.Logger,
	}, nil
}

func (s *service) Checkout(ctx context.Context, userID uuid.UUID, input Input) (*Result, error) {
	input.ShippingAddress = strings.TrimSpace(input.ShippingAddress)
	input.Phone = strings.TrimSpace(input.Phone)
	input.Notes = strings.TrimSpace(input.Notes)

	current, err := s.carts.Load(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if err := validate(current, input); err != nil {
		return nil, err
	}

	var (
		orderID uuid.UUID
		eventID uuid.UUID
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		record, err := s.carts.WithTx(tx).Load(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(record.Items) == 0 {
			return emptyCart()
		}

		order := &models.Order{
			UserID:          userID,
			Status:          enums.OrderStatusPending,
			ShippingAddress: input.ShippingAddress,
			Phone:           input.Phone,
			Notes:           input.Notes,
			Items:           make([]models.OrderItem, 0, len(record.Items)),
		}
		for _, item := range record.Items {
			if item.Product == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product in cart no longer exists")
			}
			ok, err := s.products.WithTx(tx).DecrementStock(ctx, item.ProductID, item.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
			}
			if !ok {
				return pkgerrors.Newf(pkgerrors.CodeConflict, "insufficient stock for %s", item.Product.Title).
					WithDetails(map[string]any{
						"product_id": item.ProductID,
						"product":    item.Product.Title,
						"requested":  item.Quantity,
					})
			}
			order.Items = append(order.Items, models.OrderItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: item.Product.Price,
			})
		}
		order.Total = record.TotalPrice()

		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if err := s.carts.WithTx(tx).Clear(ctx, record.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}

		eventID, err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.OrderCreatedEvent{
				OrderID: order.ID,
				UserID:  userID,
				Total:   order.Total.StringFixed(2),
				Items:   len(order.Items),
			},
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order created event")
		}
		orderID = order.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"order_id": orderID.String(), "user_id": userID.String()})
	s.logg.Info(ctx, "checkout.order_created")

	for _, item := range order.Items {
		s.track(ctx, userID, item.ProductID)
	}

	return &Result{
		Order:         orders.FromModel(order),
		Notifications: s.notify(ctx, eventID, userID, order),
	}, nil
}

// notify dispatches the confirmation and waits up to notifyWait. Failures are
// logged; the outbox poller retries whatever did not go out.
func (s *service) notify(ctx context.Context, eventID, userID uuid.UUID, order *models.Order) notifications.Summary {
	user, err := s.users.LoadUser(ctx, userID)
	if err != nil {
		s.logg.Error(ctx, "checkout.load_user_failed", err)
		return notifications.Summary{Channels: map[enums.NotificationChannel]notifications.Outcome{}, Pending: true}
	}
	_, summary, err := notifications.SubmitAndWait(ctx, s.dispatcher, notifications.Job{
		EventID: eventID,
		Kind:    notifications.JobOrder,
		User:    user,
		Order:   order,
		Action:  notifications.ActionCreated,
	}, s.notifyWait)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "checkout.notification_not_queued")
	}
	return summary
}

func (s *service) track(ctx context.Context, userID, productID uuid.UUID) {
	if s.tracker == nil {
		return
	}
	if err := s.tracker.Track(ctx, userID, productID, enums.BehaviorBuy); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "checkout.track_behavior_failed")
	}
}

func validate(current *models.Cart, input Input) error {
	if current == nil || len(current.Items) == 0 {
		return emptyCart()
	}
	if input.ShippingAddress == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required").
			WithDetails(map[string]any{"field": "shipping_address"})
	}
	return nil
}

func emptyCart() error {
	return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty").
		WithDetails(map[string]any{"field": "cart"})
}
