package analytics

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func prices(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(values))
	for _, v := range values {
		out = append(out, decimal.RequireFromString(v))
	}
	return out
}

func TestCompareWithoutPeersIsUndetermined(t *testing.T) {
	cmp := Compare(decimal.NewFromInt(50), nil)
	require.Nil(t, cmp.IsDeal)
	require.False(t, cmp.AvgPrice.Valid)
	require.False(t, cmp.MinPrice.Valid)
	require.False(t, cmp.MaxPrice.Valid)
	require.True(t, cmp.SavingsPct.IsZero())
	require.Equal(t, LabelInsufficientData, Label(cmp.IsDeal, cmp.SavingsPct))
}

func TestCompareFlagsDealBelowThreshold(t *testing.T) {
	// mean 100, price at 80% of it
	cmp := Compare(decimal.NewFromInt(80), prices("90", "100", "110"))
	require.NotNil(t, cmp.IsDeal)
	require.True(t, *cmp.IsDeal)
	require.Equal(t, 3, cmp.PeerCount)
	require.True(t, cmp.AvgPrice.Decimal.Equal(decimal.NewFromInt(100)))
	require.True(t, cmp.MinPrice.Decimal.Equal(decimal.NewFromInt(90)))
	require.True(t, cmp.MaxPrice.Decimal.Equal(decimal.NewFromInt(110)))
	require.True(t, cmp.SavingsPct.Equal(decimal.NewFromInt(20)), cmp.SavingsPct.String())
	require.Equal(t, LabelGoodPrice, Label(cmp.IsDeal, cmp.SavingsPct))
}

func TestCompareAtThresholdIsNotDeal(t *testing.T) {
	cmp := Compare(decimal.NewFromInt(85), prices("100"))
	require.NotNil(t, cmp.IsDeal)
	require.False(t, *cmp.IsDeal)
	require.True(t, cmp.SavingsPct.IsZero())
	require.Equal(t, LabelRegularPrice, Label(cmp.IsDeal, cmp.SavingsPct))
}

func TestLabel(t *testing.T) {
	yes, no := true, false
	cases := []struct {
		isDeal  *bool
		savings string
		want    string
	}{
		{nil, "0", LabelInsufficientData},
		{&no, "0", LabelRegularPrice},
		{&yes, "15.01", LabelGoodPrice},
		{&yes, "15", LabelExcellentPrice},
		{&yes, "15.5", LabelGoodPrice},
		{&yes, "25", LabelGoodPrice},
		{&yes, "30", LabelSuperOffer},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Label(tc.isDeal, decimal.RequireFromString(tc.savings)), tc.savings)
	}
}
