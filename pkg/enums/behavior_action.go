package enums

import "fmt"

// BehaviorAction is a tracked shopper interaction.
type BehaviorAction string

const (
	BehaviorView    BehaviorAction = "view"
	BehaviorCart    BehaviorAction = "cart"
	BehaviorBuy     BehaviorAction = "buy"
	BehaviorSearch  BehaviorAction = "search"
	BehaviorCompare BehaviorAction = "compare"
)

var validBehaviorActions = []BehaviorAction{
	BehaviorView,
	BehaviorCart,
	BehaviorBuy,
	BehaviorSearch,
	BehaviorCompare,
}

func (a BehaviorAction) String() string {
	return string(a)
}

func (a BehaviorAction) IsValid() bool {
	for _, candidate := range validBehaviorActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// Repeatable actions are deduplicated per (user, product) instead of appended.
func (a BehaviorAction) Repeatable() bool {
	return a == BehaviorView
}

// RequiresProduct reports whether the action must reference a product.
func (a BehaviorAction) RequiresProduct() bool {
	return a != BehaviorSearch
}

func ParseBehaviorAction(value string) (BehaviorAction, error) {
	for _, candidate := range validBehaviorActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid behavior action %q", value)
}
