package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadito-pesca/mercadito-backend/pkg/db/models"
	"github.com/mercadito-pesca/mercadito-backend/pkg/enums"
	pkgerrors "github.com/mercadito-pesca/mercadito-backend/pkg/errors"
	"github.com/mercadito-pesca/mercadito-backend/pkg/logger"
	"github.com/mercadito-pesca/mercadito-backend/pkg/outbox"
	"github.com/mercadito-pesca/mercadito-backend/pkg/outbox/payloads"
	"github.com/mercadito-pesca/mercadito-backend/pkg/pagination"
	"github.com/mercadito-pesca/mercadito-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (uuid.UUID, error)
}

// Service exposes order reads and the status workflow.
type Service interface {
	List(ctx context.Context, actor types.Actor, filter ListFilter, params pagination.Params) (types.Page[OrderDTO], error)
	Get(ctx context.Context, actor types.Actor, orderID uuid.UUID) (*OrderDTO, error)
	UpdateStatus(ctx context.Context, actor types.Actor, input UpdateStatusInput) (*OrderDTO, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
}

func NewService(repo Repository, tx txRunner, publisher outboxPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, outbox: publisher, logg: logg}, nil
}

func (s *service) List(ctx context.Context, actor types.Actor, filter ListFilter, params pagination.Params) (types.Page[OrderDTO], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return types.Page[OrderDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	var rows []models.Order
	if filter.All && actor.IsStaff() {
		rows, err = s.repo.ListAll(ctx, filter.Status, cursor, params.Limit)
	} else {
		rows, err = s.repo.ListByUser(ctx, actor.UserID, cursor, params.Limit)
	}
	if err != nil {
		return types.Page[OrderDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	rows, next := pagination.Trim(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	items := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		items = append(items, FromModel(&rows[i]))
	}
	return types.Page[OrderDTO]{Items: items, NextCursor: next}, nil
}

func (s *service) Get(ctx context.Context, actor types.Actor, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.load(ctx, s.repo, actor, orderID)
	if err != nil {
		return nil, err
	}
	dto := FromModel(order)
	return &dto, nil
}

func (s *service) UpdateStatus(ctx context.Context, actor types.Actor, input UpdateStatusInput) (*OrderDTO, error) {
	if !input.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", input.Status).
			WithDetails(map[string]any{"field": "status"})
	}
	if input.Force && !actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only staff can force a status change")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, actor, input.OrderID)
		if err != nil {
			return err
		}
		from := order.Status
		if from == input.Status {
			updated = order
			return nil
		}
		if !actor.IsStaff() && !customerTransition(from, input.Status) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only staff can change this order status")
		}
		if !input.Force && !CanTransition(from, input.Status) {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot move order from %s to %s", from, input.Status).
				WithDetails(map[string]any{"from": from, "to": input.Status})
		}

		ok, err := repo.UpdateStatus(ctx, order.ID, from, input.Status)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)},
			Data: payloads.OrderStatusChangedEvent{
				OrderID: order.ID,
				UserID:  order.UserID,
				From:    from,
				To:      input.Status,
				Forced:  input.Force && !CanTransition(from, input.Status),
				ActorID: actor.UserID,
			},
		}
		if _, err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order status event")
		}

		if input.Force {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"order_id": order.ID.String(),
				"from":     string(from),
				"to":       string(input.Status),
				"actor_id": actor.UserID.String(),
			}), "order.status_forced")
		}

		updated, err = repo.FindByID(ctx, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	dto := FromModel(updated)
	return &dto, nil
}

// load hides orders the actor cannot see behind NOT_FOUND.
func (s *service) load(ctx context.Context, repo Repository, actor types.Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !actor.CanManage(order.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}
