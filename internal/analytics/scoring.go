package analytics

import (
	"github.com/mercadito-pesca/mercadito-backend/pkg/db/models"
	"github.com/mercadito-pesca/mercadito-backend/pkg/enums"
)

const (
	viewWeight    = 0.1
	viewCap       = 0.5
	cartWeight    = 0.25
	buyWeight     = 0.4
	compareWeight = 0.05
)

// ComputeIntentScore folds a full behavior history into a purchase-intent
// score in [0, 1]. It depends only on the action counts, so row order and
// repeated calls over the same rows give the same result. A view row counts
// as many views as it has recorded.
func ComputeIntentScore(behaviors []models.UserBehavior) float64 {
	var views, carts, buys, compares int
	for _, b := range behaviors {
		switch b.Action {
		case enums.BehaviorView:
			views += viewCount(b)
		case enums.BehaviorCart:
			carts++
		case enums.BehaviorBuy:
			buys++
		case enums.BehaviorCompare:
			compares++
		}
	}

	score := float64(views) * viewWeight
	if score > viewCap {
		score = viewCap
	}
	score += float64(carts) * cartWeight
	score += float64(buys) * buyWeight
	score += float64(compares) * compareWeight

	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	}
	return score
}

func viewCount(b models.UserBehavior) int {
	if b.Views < 1 {
		return 1
	}
	return b.Views
}
