package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestArithmetic(t *testing.T) {
	a := MustParse("10.50")
	b := MustParse("4.25")

	require.Equal(t, "14.75", a.Add(b).String())
	require.Equal(t, "6.25", a.Sub(b).String())
	require.Equal(t, "4.25", Min(a, b).String())
}

func TestSubBelowZero(t *testing.T) {
	a := MustParse("1.00")
	b := MustParse("2.50")

	got := a.Sub(b)
	require.True(t, got.IsNegative())
	require.False(t, got.IsPositive())
	require.Equal(t, "-1.50", got.String())
}

func TestPredicates(t *testing.T) {
	require.True(t, Zero().IsZero())
	require.False(t, Zero().IsPositive())
	require.True(t, MustParse("0.01").IsPositive())
	require.True(t, MustParse("100.00").Equal(FromInt(100)))
}

func TestBankersRounding(t *testing.T) {
	// Round-half-even at two decimals.
	require.Equal(t, "0.12", New(decimal.RequireFromString("0.125")).String())
	require.Equal(t, "0.14", New(decimal.RequireFromString("0.135")).String())
	require.Equal(t, "0.13", New(decimal.RequireFromString("0.1251")).String())
}

func TestPercent(t *testing.T) {
	bill := MustParse("300.00")
	require.Equal(t, "90.00", bill.Percent(decimal.NewFromInt(30)).String())
	require.Equal(t, "60.00", bill.Percent(decimal.NewFromInt(20)).String())
}

func TestMulDivProportionalSplit(t *testing.T) {
	// 150 surplus split 30/20 relative to a 150 remainder.
	surplus := MustParse("150.00")
	credit := surplus.MulDiv(decimal.NewFromInt(90), decimal.NewFromInt(150))
	require.Equal(t, "90.00", credit.String())
}

func TestJSONRoundTrip(t *testing.T) {
	m := MustParse("12.30")
	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.Equal(t, `"12.30"`, string(data))

	var back Money
	require.NoError(t, json.Unmarshal(data, &back))
	require.True(t, m.Equal(back))

	require.NoError(t, json.Unmarshal([]byte(`7.5`), &back))
	require.Equal(t, "7.50", back.String())
}

func TestScanValue(t *testing.T) {
	var m Money
	require.NoError(t, m.Scan("55.10"))
	require.Equal(t, "55.10", m.String())

	v, err := m.Value()
	require.NoError(t, err)
	require.Equal(t, "55.10", v)
}
