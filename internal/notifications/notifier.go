// Package notifications delivers order and quote updates over email and
// Telegram through a bounded worker pool.
package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mercadito-pesca/mercadito-backend/pkg/db/models"
	"github.com/mercadito-pesca/mercadito-backend/pkg/enums"
)

// Order actions carried into the message text.
const (
	ActionCreated       = "created"
	ActionStatusChanged = "status_changed"
)

// Notifier is one delivery channel. Send methods never panic and report
// failure as false.
type Notifier interface {
	Channel() enums.NotificationChannel
	// Reaches reports whether the channel has an address for user.
	Reaches(user *models.User) bool
	SendOrderUpdate(ctx context.Context, user *models.User, order *models.Order, action string) bool
	SendQuote(ctx context.Context, user *models.User, quote *models.Quote, pdf []byte) bool
}

// Outcome is the per-channel result of a job.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeFailed    Outcome = "failed"
	// OutcomeSkipped means the channel cannot reach the user.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeDuplicate means an earlier attempt already delivered the event.
	OutcomeDuplicate Outcome = "duplicate"
)

// Report collects the outcome of every channel for one job.
type Report struct {
	EventID  uuid.UUID                             `json:"event_id"`
	Channels map[enums.NotificationChannel]Outcome `json:"channels"`
}

// Delivered reports whether the channel delivered, now or earlier.
func (r Report) Delivered(channel enums.NotificationChannel) bool {
	outcome := r.Channels[channel]
	return outcome == OutcomeDelivered || outcome == OutcomeDuplicate
}

// AnyDelivered reports whether at least one channel reached the user.
func (r Report) AnyDelivered() bool {
	for channel := range r.Channels {
		if r.Delivered(channel) {
			return true
		}
	}
	return false
}

// Failed lists channels whose attempt failed.
func (r Report) Failed() []enums.NotificationChannel {
	var failed []enums.NotificationChannel
	for channel, outcome := range r.Channels {
		if outcome == OutcomeFailed {
			failed = append(failed, channel)
		}
	}
	return failed
}

// JobKind selects which notifier method a job drives.
type JobKind string

const (
	JobOrder JobKind = "order"
	JobQuote JobKind = "quote"
)

// Job is one notification to fan out across channels. EventID is the outbox
// event id and keys idempotency.
type Job struct {
	EventID uuid.UUID
	Kind    JobKind
	User    *models.User
	Order   *models.Order
	Action  string
	Quote   *models.Quote
	PDF     []byte
}

func (j Job) validate() error {
	if j.EventID == uuid.Nil {
		return fmt.Errorf("event id required")
	}
	if j.User == nil {
		return fmt.Errorf("user required")
	}
	switch j.Kind {
	case JobOrder:
		if j.Order == nil {
			return fmt.Errorf("order required")
		}
	case JobQuote:
		if j.Quote == nil {
			return fmt.Errorf("quote required")
		}
	default:
		return fmt.Errorf("unknown job kind %q", j.Kind)
	}
	return nil
}

func orderSubject(order *models.Order, action string) string {
	if action == ActionCreated {
		return fmt.Sprintf("Pedido #%s confirmado", shortID(order.ID))
	}
	return fmt.Sprintf("Pedido #%s: %s", shortID(order.ID), statusLabel(order.Status))
}

func orderText(user *models.User, order *models.Order, action string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hola %s,\n\n", user.DisplayName)
	if action == ActionCreated {
		fmt.Fprintf(&b, "Recibimos tu pedido #%s.\n", shortID(order.ID))
	} else {
		fmt.Fprintf(&b, "Tu pedido #%s ahora está: %s.\n", shortID(order.ID), statusLabel(order.Status))
	}
	if len(order.Items) > 0 {
		b.WriteString("\nProductos:\n")
		for _, item := range order.Items {
			title := item.ProductID.String()
			if item.Product != nil {
				title = item.Product.Title
			}
			fmt.Fprintf(&b, "- %s x%d: $%s\n", title, item.Quantity, item.Subtotal().StringFixed(2))
		}
	}
	fmt.Fprintf(&b, "\nTotal: $%s\n", order.Total.StringFixed(2))
	if order.ShippingAddress != "" {
		fmt.Fprintf(&b, "Envío a: %s\n", order.ShippingAddress)
	}
	return b.String()
}

func quoteSubject(quote *models.Quote) string {
	return fmt.Sprintf("Presupuesto #%s", shortID(quote.ID))
}

func quoteText(user *models.User, quote *models.Quote) string {
	return fmt.Sprintf("Hola %s,\n\nTe enviamos el presupuesto #%s por un total de $%s. Es válido por 30 días.\n",
		user.DisplayName, shortID(quote.ID), quote.Total.StringFixed(2))
}

// QuoteFilename is the attachment name used for quote PDFs.
func QuoteFilename(quoteID uuid.UUID) string {
	return fmt.Sprintf("presupuesto_%s.pdf", quoteID)
}

func shortID(id uuid.UUID) string {
	return strings.ToUpper(id.String()[:8])
}

func statusLabel(status enums.OrderStatus) string {
	switch status {
	case enums.OrderStatusPending:
		return "pendiente"
	case enums.OrderStatusProcessing:
		return "en preparación"
	case enums.OrderStatusShipped:
		return "enviado"
	case enums.OrderStatusDelivered:
		return "entregado"
	case enums.OrderStatusCancelled:
		return "cancelado"
	default:
		return string(status)
	}
}
