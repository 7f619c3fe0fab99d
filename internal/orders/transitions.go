package orders

import "github.com/mercadito-pesca/mercadito-backend/pkg/enums"

var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing: {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered},
}

// CanTransition reports whether the policy allows from -> to. Delivered and
// cancelled orders never move.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// customerTransition is the only change an owner may make without staff.
func customerTransition(from, to enums.OrderStatus) bool {
	return from == enums.OrderStatusPending && to == enums.OrderStatusCancelled
}
