package analytics

import (
	"github.com/shopspring/decimal"
)

// Price labels shown next to a comparison.
const (
	LabelInsufficientData = "insufficient data"
	LabelRegularPrice     = "regular price"
	LabelExcellentPrice   = "excellent price"
	LabelGoodPrice        = "good price"
	LabelSuperOffer       = "super offer"
)

var (
	dealThreshold   = decimal.RequireFromString("0.85")
	hundred         = decimal.NewFromInt(100)
	goodPriceAbove  = decimal.NewFromInt(15)
	superOfferAbove = decimal.NewFromInt(25)
)

// Comparison is the outcome of pricing one product against its same-brand
// peers. IsDeal is nil when there were no peers to compare with.
type Comparison struct {
	PeerCount  int
	AvgPrice   decimal.NullDecimal
	MinPrice   decimal.NullDecimal
	MaxPrice   decimal.NullDecimal
	IsDeal     *bool
	SavingsPct decimal.Decimal
}

// Compare prices a product against peer prices. A deal is a price under 85%
// of the peer mean.
func Compare(price decimal.Decimal, peers []decimal.Decimal) Comparison {
	out := Comparison{PeerCount: len(peers), SavingsPct: decimal.Zero}
	if len(peers) == 0 {
		return out
	}

	sum := decimal.Zero
	lo, hi := peers[0], peers[0]
	for _, p := range peers {
		sum = sum.Add(p)
		if p.LessThan(lo) {
			lo = p
		}
		if p.GreaterThan(hi) {
			hi = p
		}
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(peers))))

	out.AvgPrice = decimal.NewNullDecimal(mean.Round(2))
	out.MinPrice = decimal.NewNullDecimal(lo)
	out.MaxPrice = decimal.NewNullDecimal(hi)

	deal := price.LessThan(mean.Mul(dealThreshold))
	out.IsDeal = &deal
	if deal && mean.IsPositive() {
		out.SavingsPct = mean.Sub(price).Div(mean).Mul(hundred).Round(2)
	}
	return out
}

// Label maps a comparison to the short recommendation shown to shoppers.
func Label(isDeal *bool, savingsPct decimal.Decimal) string {
	switch {
	case isDeal == nil:
		return LabelInsufficientData
	case !*isDeal:
		return LabelRegularPrice
	case savingsPct.GreaterThan(superOfferAbove):
		return LabelSuperOffer
	case savingsPct.GreaterThan(goodPriceAbove):
		return LabelGoodPrice
	default:
		// A deal always saves more than 15%, so this is reached only when
		// the rounded savings land on exactly 15.
		return LabelExcellentPrice
	}
}
