package quotes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadito-pesca/mercadito-backend/internal/cart"
	"github.com/mercadito-pesca/mercadito-backend/internal/notifications"
	"github.com/mercadito-pesca/mercadito-backend/pkg/db/models"
	"github.com/mercadito-pesca/mercadito-backend/pkg/enums"
	pkgerrors "github.com/mercadito-pesca/mercadito-backend/pkg/errors"
	"github.com/mercadito-pesca/mercadito-backend/pkg/logger"
	"github.com/mercadito-pesca/mercadito-backend/pkg/outbox"
	"github.com/mercadito-pesca/mercadito-backend/pkg/outbox/payloads"
	"github.com/mercadito-pesca/mercadito-backend/pkg/pagination"
	"github.com/mercadito-pesca/mercadito-backend/pkg/types"
)

const (
	defaultNotifyWait = 10 * time.Second
	maxNotesLength    = 1000
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (uuid.UUID, error)
}

type userLoader interface {
	LoadUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type pdfRenderer interface {
	RenderQuote(quote *models.Quote, user *models.User) ([]byte, error)
}

// Service builds priced quotes from carts. Quotes never reserve stock.
type Service interface {
	Generate(ctx context.Context, userID uuid.UUID, notes string) (*GenerateResult, error)
	Get(ctx context.Context, actor types.Actor, quoteID uuid.UUID) (*QuoteDTO, error)
	List(ctx context.Context, actor types.Actor, params pagination.Params) (types.Page[QuoteDTO], error)
	PDF(ctx context.Context, actor types.Actor, quoteID uuid.UUID) (*Document, error)
	UpdateStatus(ctx context.Context, actor types.Actor, quoteID uuid.UUID, status enums.QuoteStatus) (*QuoteDTO, error)
}

type Params struct {
	Tx         txRunner
	Repo       *Repository
	Carts      *cart.Repository
	Outbox     outboxPublisher
	Users      userLoader
	Renderer   pdfRenderer
	Dispatcher notifications.Submitter
	NotifyWait time.Duration
	Logger     *logger.Logger
}

type service struct {
	tx         txRunner
	repo       *Repository
	carts      *cart.Repository
	outbox     outboxPublisher
	users      userLoader
	renderer   pdfRenderer
	dispatcher notifications.Submitter
	notifyWait time.Duration
	logg       *logger.Logger
}

func NewService(p Params) (Service, error) {
	switch {
	case p.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case p.Repo == nil:
		return nil, fmt.Errorf("quotes repository required")
	case p.Carts == nil:
		return nil, fmt.Errorf("cart repository required")
	case p.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case p.Users == nil:
		return nil, fmt.Errorf("user loader required")
	case p.Renderer == nil:
		return nil, fmt.Errorf("pdf renderer required")
	case p.Dispatcher == nil:
		return nil, fmt.Errorf("notification dispatcher required")
	case p.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	if p.NotifyWait <= 0 {
		p.NotifyWait = defaultNotifyWait
	}
	return &service{
		tx:         p.Tx,
		repo:       p.Repo,
		carts:      p.Carts,
		outbox:     p.Outbox,
		users:      p.Users,
		renderer:   p.Renderer,
		dispatcher: p.Dispatcher,
		notifyWait: p.NotifyWait,
		logg:       p.Logger,
	}, nil
}

// Generate snapshots the cart at current prices. The cart and stock are left
// untouched, so repeated calls yield independent quotes.
func (s *service) Generate(ctx context.Context, userID uuid.UUID, notes string) (*GenerateResult, error) {
	notes = strings.TrimSpace(notes)
	if len([]rune(notes)) > maxNotesLength {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "notes must be at most %d characters", maxNotesLength).
			WithDetails(map[string]any{"field": "notes"})
	}

	var (
		quote   *models.Quote
		eventID uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := s.carts.WithTx(tx).Load(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(current.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty").
				WithDetails(map[string]any{"field": "cart"})
		}

		quote = &models.Quote{
			UserID: userID,
			Status: enums.QuoteStatusPending,
			Notes:  notes,
			Items:  make([]models.QuoteItem, 0, len(current.Items)),
		}
		for _, item := range current.Items {
			if item.Product == nil {
				continue
			}
			quote.Items = append(quote.Items, models.QuoteItem{
				ProductID:    item.ProductID,
				ProductTitle: item.Product.Title,
				Quantity:     item.Quantity,
				UnitPrice:    item.Product.Price,
			})
		}
		quote.Total = quote.ComputeTotal()

		if err := s.repo.WithTx(tx).Create(ctx, quote); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create quote")
		}
		eventID, err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventQuoteGenerated,
			AggregateType: enums.AggregateQuote,
			AggregateID:   quote.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.QuoteGeneratedEvent{
				QuoteID: quote.ID,
				UserID:  userID,
				Total:   quote.Total.StringFixed(2),
			},
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit quote generated event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.FindByID(ctx, quote.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quote")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"quote_id": stored.ID.String(), "user_id": userID.String()})
	s.logg.Info(ctx, "quote.generated")

	summary := s.deliver(ctx, eventID, userID, stored)
	return &GenerateResult{Quote: FromModel(stored), Notifications: summary}, nil
}

// deliver renders and sends the quote after commit. Nothing here can fail
// Generate.
func (s *service) deliver(ctx context.Context, eventID, userID uuid.UUID, quote *models.Quote) notifications.Summary {
	pending := notifications.Summary{Channels: map[enums.NotificationChannel]notifications.Outcome{}, Pending: true}

	user, err := s.users.LoadUser(ctx, userID)
	if err != nil {
		s.logg.Error(ctx, "quote.load_user_failed", err)
		return pending
	}
	pdf, err := s.renderer.RenderQuote(quote, user)
	if err != nil {
		s.logg.Error(ctx, "quote.render_failed", err)
		pdf = nil
	}

	report, summary, err := notifications.SubmitAndWait(ctx, s.dispatcher, notifications.Job{
		EventID: eventID,
		Kind:    notifications.JobQuote,
		User:    user,
		Quote:   quote,
		PDF:     pdf,
	}, s.notifyWait)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "quote.notification_not_queued")
		return summary
	}
	if report.AnyDelivered() {
		if _, err := s.repo.UpdateStatus(ctx, quote.ID, enums.QuoteStatusPending, enums.QuoteStatusSent); err != nil {
			s.logg.Error(ctx, "quote.mark_sent_failed", err)
		} else {
			quote.Status = enums.QuoteStatusSent
		}
	}
	return summary
}

func (s *service) Get(ctx context.Context, actor types.Actor, quoteID uuid.UUID) (*QuoteDTO, error) {
	quote, err := s.load(ctx, actor, quoteID)
	if err != nil {
		return nil, err
	}
	dto := FromModel(quote)
	return &dto, nil
}

func (s *service) List(ctx context.Context, actor types.Actor, params pagination.Params) (types.Page[QuoteDTO], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return types.Page[QuoteDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListByUser(ctx, actor.UserID, cursor, params.Limit)
	if err != nil {
		return types.Page[QuoteDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list quotes")
	}
	rows, next := pagination.Trim(rows, params.Limit, func(q models.Quote) pagination.Cursor {
		return pagination.Cursor{CreatedAt: q.CreatedAt, ID: q.ID}
	})
	items := make([]QuoteDTO, 0, len(rows))
	for i := range rows {
		items = append(items, FromModel(&rows[i]))
	}
	return types.Page[QuoteDTO]{Items: items, NextCursor: next}, nil
}

// PDF re-renders the quote for download.
func (s *service) PDF(ctx context.Context, actor types.Actor, quoteID uuid.UUID) (*Document, error) {
	quote, err := s.load(ctx, actor, quoteID)
	if err != nil {
		return nil, err
	}
	user, err := s.users.LoadUser(ctx, quote.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quote owner")
	}
	content, err := s.renderer.RenderQuote(quote, user)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render quote")
	}
	return &Document{Filename: notifications.QuoteFilename(quote.ID), Content: content}, nil
}

// UpdateStatus records the customer's answer. Sent is set by delivery and
// only staff may set it by hand.
func (s *service) UpdateStatus(ctx context.Context, actor types.Actor, quoteID uuid.UUID, status enums.QuoteStatus) (*QuoteDTO, error) {
	if !status.IsValid() || status == enums.QuoteStatusPending {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid quote status %q", status).
			WithDetails(map[string]any{"field": "status"})
	}
	if status == enums.QuoteStatusSent && !actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only staff can mark a quote as sent")
	}

	quote, err := s.load(ctx, actor, quoteID)
	if err != nil {
		return nil, err
	}
	if quote.Status == status {
		dto := FromModel(quote)
		return &dto, nil
	}
	if !canTransition(quote.Status, status) {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot move quote from %s to %s", quote.Status, status).
			WithDetails(map[string]any{"from": quote.Status, "to": status})
	}
	ok, err := s.repo.UpdateStatus(ctx, quote.ID, quote.Status, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update quote status")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "quote status changed concurrently")
	}
	quote.Status = status
	dto := FromModel(quote)
	return &dto, nil
}

func (s *service) load(ctx context.Context, actor types.Actor, quoteID uuid.UUID) (*models.Quote, error) {
	quote, err := s.repo.FindByID(ctx, quoteID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "quote not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quote")
	}
	if !actor.CanManage(quote.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "quote not found")
	}
	return quote, nil
}

func canTransition(from, to enums.QuoteStatus) bool {
	switch from {
	case enums.QuoteStatusPending:
		return to == enums.QuoteStatusSent || to == enums.QuoteStatusAccepted || to == enums.QuoteStatusRejected
	case enums.QuoteStatusSent:
		return to == enums.QuoteStatusAccepted || to == enums.QuoteStatusRejected
	default:
		return false
	}
}
