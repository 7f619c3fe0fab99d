package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mercadito-pesca/mercadito-backend/pkg/db"
	"github.com/mercadito-pesca/mercadito-backend/pkg/db/dbtest"
	"github.com/mercadito-pesca/mercadito-backend/pkg/db/models"
	"github.com/mercadito-pesca/mercadito-backend/pkg/enums"
	"github.com/mercadito-pesca/mercadito-backend/pkg/logger"
	"github.com/mercadito-pesca/mercadito-backend/pkg/outbox"
	"github.com/mercadito-pesca/mercadito-backend/pkg/outbox/payloads"
)

type stubRenderer struct {
	err error
}

func (s stubRenderer) RenderQuote(*models.Quote, *models.User) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte("%PDF"), nil
}

func emitEvent(t *testing.T, client *db.Client, event outbox.DomainEvent) models.OutboxEvent {
	t.Helper()
	svc := outbox.NewService(outbox.NewRepository(client.DB()), logger.Nop())
	var id uuid.UUID
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		id, err = svc.Emit(context.Background(), tx, event)
		return err
	})
	require.NoError(t, err)
	row, err := outbox.NewRepository(client.DB()).FindByID(nil, id)
	require.NoError(t, err)
	return *row
}

func newHandlerFixture(t *testing.T, renderer QuoteRenderer, notifiers ...Notifier) (*OutboxHandler, *db.Client) {
	t.Helper()
	client := dbtest.New(t)
	d := newTestDispatcher(t, DispatcherOptions{Workers: 1, QueueSize: 4}, newMemoryClaims(), notifiers...)
	h, err := NewOutboxHandler(NewRepository(client.DB()), d, renderer, logger.Nop())
	require.NoError(t, err)
	return h, client
}

func TestHandleOrderCreated(t *testing.T) {
	email := &stubNotifier{channel: enums.ChannelEmail, reaches: true, ok: true}
	h, client := newHandlerFixture(t, stubRenderer{}, email)
	conn := client.DB()

	user := dbtest.MustCreateUser(t, conn)
	product := dbtest.MustCreateProduct(t, conn, dbtest.ProductSpec{Stock: 3})
	order := &models.Order{
		UserID:          user.ID,
		Status:          enums.OrderStatusPending,
		Total:           decimal.NewFromInt(20),
		ShippingAddress: "Calle 1",
		Items:           []models.OrderItem{{ProductID: product.ID, Quantity: 2, UnitPrice: decimal.NewFromInt(10)}},
	}
	require.NoError(t, conn.Create(order).Error)

	row := emitEvent(t, client, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data:          payloads.OrderCreatedEvent{OrderID: order.ID, UserID: user.ID, Total: "20.00", Items: 1},
	})

	require.NoError(t, h.Handle(context.Background(), row))
	require.Equal(t, []string{ActionCreated}, email.orders)

	// a redelivery of the same event is a no-op for delivered channels
	require.NoError(t, h.Handle(context.Background(), row))
	require.Equal(t, 1, email.sent())
}

func TestHandleQuoteGeneratedMarksSent(t *testing.T) {
	email := &stubNotifier{channel: enums.ChannelEmail, reaches: true, ok: true}
	h, client := newHandlerFixture(t, stubRenderer{}, email)
	conn := client.DB()

	user := dbtest.MustCreateUser(t, conn)
	quote := &models.Quote{UserID: user.ID, Status: enums.QuoteStatusPending, Total: decimal.NewFromInt(30)}
	require.NoError(t, conn.Omit(clause.Associations).Create(quote).Error)

	row := emitEvent(t, client, outbox.DomainEvent{
		EventType:     enums.EventQuoteGenerated,
		AggregateType: enums.AggregateQuote,
		AggregateID:   quote.ID,
		Data:          payloads.QuoteGeneratedEvent{QuoteID: quote.ID, UserID: user.ID, Total: "30.00"},
	})
	require.NoError(t, h.Handle(context.Background(), row))
	require.Equal(t, []byte("%PDF"), email.pdfSeen)

	var stored models.Quote
	require.NoError(t, conn.First(&stored, "id = ?", quote.ID).Error)
	require.Equal(t, enums.QuoteStatusSent, stored.Status)
}

func TestHandleReportsFailedChannels(t *testing.T) {
	email := &stubNotifier{channel: enums.ChannelEmail, reaches: true, ok: false}
	h, client := newHandlerFixture(t, stubRenderer{err: errors.New("font missing")}, email)
	conn := client.DB()

	user := dbtest.MustCreateUser(t, conn)
	quote := &models.Quote{UserID: user.ID, Status: enums.QuoteStatusPending, Total: decimal.NewFromInt(30)}
	require.NoError(t, conn.Omit(clause.Associations).Create(quote).Error)
	row := emitEvent(t, client, outbox.DomainEvent{
		EventType:     enums.EventQuoteGenerated,
		AggregateType: enums.AggregateQuote,
		AggregateID:   quote.ID,
		Data:          payloads.QuoteGeneratedEvent{QuoteID: quote.ID, UserID: user.ID},
	})

	err := h.Handle(context.Background(), row)
	require.Error(t, err)
	require.Contains(t, err.Error(), "email delivery failed")
	require.Nil(t, email.pdfSeen)

	var stored models.Quote
	require.NoError(t, conn.First(&stored, "id = ?", quote.ID).Error)
	require.Equal(t, enums.QuoteStatusPending, stored.Status)
}

func TestHandleMissingAggregate(t *testing.T) {
	email := &stubNotifier{channel: enums.ChannelEmail, reaches: true, ok: true}
	h, client := newHandlerFixture(t, stubRenderer{}, email)
	user := dbtest.MustCreateUser(t, client.DB())

	row := emitEvent(t, client, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   user.ID,
		Data:          payloads.OrderStatusChangedEvent{OrderID: user.ID, UserID: user.ID},
	})
	require.Error(t, h.Handle(context.Background(), row))
	require.Equal(t, 0, email.sent())
}
