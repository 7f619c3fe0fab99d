package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/mercadito-pesca/mercadito-backend/pkg/db/models"
	"github.com/mercadito-pesca/mercadito-backend/pkg/enums"
	"github.com/mercadito-pesca/mercadito-backend/pkg/logger"
	"github.com/mercadito-pesca/mercadito-backend/pkg/outbox"
	"github.com/mercadito-pesca/mercadito-backend/pkg/outbox/payloads"
)

type loader interface {
	LoadUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	LoadOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LoadQuote(ctx context.Context, id uuid.UUID) (*models.Quote, error)
	MarkQuoteSent(ctx context.Context, id uuid.UUID) error
}

type jobDispatcher interface {
	Dispatch(ctx context.Context, job Job) (Report, error)
}

// QuoteRenderer produces the PDF attached to quote notifications.
type QuoteRenderer interface {
	RenderQuote(quote *models.Quote, user *models.User) ([]byte, error)
}

// NewDecoderRegistry registers every event the handler understands.
func NewDecoderRegistry() *outbox.DecoderRegistry {
	reg := outbox.NewDecoderRegistry()
	outbox.RegisterJSON[payloads.OrderCreatedEvent](reg, enums.EventOrderCreated, 1)
	outbox.RegisterJSON[payloads.OrderStatusChangedEvent](reg, enums.EventOrderStatusChanged, 1)
	outbox.RegisterJSON[payloads.QuoteGeneratedEvent](reg, enums.EventQuoteGenerated, 1)
	return reg
}

// OutboxHandler turns stored outbox events into notification jobs. It is the
// retry path for dispatches the API process missed or failed.
type OutboxHandler struct {
	registry   *outbox.DecoderRegistry
	loader     loader
	dispatcher jobDispatcher
	renderer   QuoteRenderer
	logg       *logger.Logger
}

func NewOutboxHandler(loader loader, dispatcher jobDispatcher, renderer QuoteRenderer, logg *logger.Logger) (*OutboxHandler, error) {
	if loader == nil {
		return nil, fmt.Errorf("loader required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("quote renderer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &OutboxHandler{
		registry:   NewDecoderRegistry(),
		loader:     loader,
		dispatcher: dispatcher,
		renderer:   renderer,
		logg:       logg,
	}, nil
}

// Handle delivers event on every channel that has not delivered it yet. A
// non-nil error means at least one channel failed and the event should be
// retried.
func (h *OutboxHandler) Handle(ctx context.Context, event models.OutboxEvent) error {
	envelope, data, err := h.registry.Decode(event.EventType, event.Payload)
	if err != nil {
		return err
	}
	ctx = h.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID.String(),
		"event_type": event.EventType.String(),
	})

	var job Job
	switch payload := data.(type) {
	case payloads.OrderCreatedEvent:
		job, err = h.orderJob(ctx, envelope.EventID, payload.OrderID, payload.UserID, ActionCreated)
	case payloads.OrderStatusChangedEvent:
		job, err = h.orderJob(ctx, envelope.EventID, payload.OrderID, payload.UserID, ActionStatusChanged)
	case payloads.QuoteGeneratedEvent:
		job, err = h.quoteJob(ctx, envelope.EventID, payload.QuoteID, payload.UserID)
	default:
		return fmt.Errorf("unhandled payload %T", data)
	}
	if err != nil {
		return err
	}

	report, err := h.dispatcher.Dispatch(ctx, job)
	if err != nil {
		return err
	}
	if job.Kind == JobQuote && report.AnyDelivered() {
		if err := h.loader.MarkQuoteSent(ctx, job.Quote.ID); err != nil {
			h.logg.Error(ctx, "notification.mark_quote_sent_failed", err)
		}
	}

	var failures error
	for _, channel := range report.Failed() {
		failures = multierr.Append(failures, fmt.Errorf("%s delivery failed", channel))
	}
	if failures == nil {
		h.logg.Info(ctx, "notification.event_delivered")
	}
	return failures
}

func (h *OutboxHandler) orderJob(ctx context.Context, eventID, orderID, userID uuid.UUID, action string) (Job, error) {
	user, err := h.loader.LoadUser(ctx, userID)
	if err != nil {
		return Job{}, fmt.Errorf("load user: %w", err)
	}
	order, err := h.loader.LoadOrder(ctx, orderID)
	if err != nil {
		return Job{}, fmt.Errorf("load order: %w", err)
	}
	return Job{EventID: eventID, Kind: JobOrder, User: user, Order: order, Action: action}, nil
}

func (h *OutboxHandler) quoteJob(ctx context.Context, eventID, quoteID, userID uuid.UUID) (Job, error) {
	user, err := h.loader.LoadUser(ctx, userID)
	if err != nil {
		return Job{}, fmt.Errorf("load user: %w", err)
	}
	quote, err := h.loader.LoadQuote(ctx, quoteID)
	if err != nil {
		return Job{}, fmt.Errorf("load quote: %w", err)
	}
	pdf, err := h.renderer.RenderQuote(quote, user)
	if err != nil {
		// deliver the text without the attachment
		h.logg.Error(ctx, "notification.render_quote_failed", err)
		pdf = nil
	}
	return Job{EventID: eventID, Kind: JobQuote, User: user, Quote: quote, PDF: pdf}, nil
}
