package payloads

import (
	"github.com/google/uuid"

	"github.com/mercadito-pesca/mercadito-backend/pkg/enums"
)

// OrderCreatedEvent is emitted in the checkout transaction.
type OrderCreatedEvent struct {
	OrderID uuid.UUID `json:"order_id"`
	UserID  uuid.UUID `json:"user_id"`
	Total   string    `json:"total"`
	Items   int       `json:"items"`
}

// OrderStatusChangedEvent is emitted on every status update.
type OrderStatusChangedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	UserID  uuid.UUID         `json:"user_id"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
	Forced  bool              `json:"forced,omitempty"`
	ActorID uuid.UUID         `json:"actor_id"`
}

// QuoteGeneratedEvent is emitted when a quote is created from a cart.
type QuoteGeneratedEvent struct {
	QuoteID uuid.UUID `json:"quote_id"`
	UserID  uuid.UUID `json:"user_id"`
	Total   string    `json:"total"`
}
