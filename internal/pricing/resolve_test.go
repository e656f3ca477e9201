package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 11, 11, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nd(s string) decimal.NullDecimal { return decimal.NewNullDecimal(d(s)) }

func rule(kind DiscountType, value string) *Rule {
	return &Rule{FlashSaleID: "fs-1", DiscountType: kind, DiscountValue: d(value), EndDate: now.Add(time.Hour)}
}

func TestResolve(t *testing.T) {
	withCap := func(r *Rule, limit string) *Rule { r.MaxDiscount = nd(limit); return r }
	withCustom := func(r *Rule, value string) *Rule { r.CustomDiscountValue = nd(value); return r }

	cases := []struct {
		name string
		base string
		size string
		rule *Rule
		want string
	}{
		{"no rule", "100", "0", nil, "100"},
		{"size discount only", "100", "15", nil, "85"},
		{"percentage", "100", "0", rule(Percentage, "20"), "80"},
		{"percentage after size", "200", "10", rule(Percentage, "50"), "90"},
		{"percentage capped", "100", "0", withCap(rule(Percentage, "50"), "30"), "70"},
		{"percentage cap above value", "100", "0", withCap(rule(Percentage, "20"), "30"), "80"},
		{"percentage over hundred clamps", "100", "0", rule(Percentage, "150"), "0"},
		{"fixed", "100", "0", rule(FixedAmount, "15"), "85"},
		{"fixed exceeds price", "5", "0", rule(FixedAmount, "20"), "0"},
		{"fixed capped", "100", "0", withCap(rule(FixedAmount, "40"), "25"), "75"},
		{"custom override", "100", "0", withCustom(rule(Percentage, "50"), "10"), "90"},
		{"custom cap override", "100", "0", func() *Rule {
			r := withCap(rule(Percentage, "60"), "50")
			r.CustomMaxDiscount = nd("10")
			return r
		}(), "90"},
		{"fractional", "19.99", "0", rule(Percentage, "15"), "16.9915"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Resolve(d(tc.base), d(tc.size), tc.rule, now)
			require.NoError(t, err)
			require.True(t, d(tc.want).Equal(got), "want %s got %s", tc.want, got)
		})
	}
}

func TestResolveExpiredRuleIsIgnored(t *testing.T) {
	r := rule(Percentage, "50")
	r.EndDate = now
	got, err := Resolve(d("100"), decimal.Zero, r, now)
	require.NoError(t, err)
	require.True(t, d("100").Equal(got))

	// Bad data on an expired rule is not looked at.
	r.DiscountValue = d("-1")
	r.EndDate = now.Add(-time.Minute)
	_, err = Resolve(d("100"), decimal.Zero, r, now)
	require.NoError(t, err)
}

func TestResolveRejectsInvalidInput(t *testing.T) {
	cases := map[string]func() (decimal.Decimal, decimal.Decimal, *Rule){
		"negative base":     func() (decimal.Decimal, decimal.Decimal, *Rule) { return d("-1"), decimal.Zero, nil },
		"negative size":     func() (decimal.Decimal, decimal.Decimal, *Rule) { return d("10"), d("-5"), nil },
		"size over hundred": func() (decimal.Decimal, decimal.Decimal, *Rule) { return d("10"), d("101"), nil },
		"negative value": func() (decimal.Decimal, decimal.Decimal, *Rule) {
			return d("10"), decimal.Zero, rule(FixedAmount, "-2")
		},
		"negative custom": func() (decimal.Decimal, decimal.Decimal, *Rule) {
			r := rule(FixedAmount, "2")
			r.CustomDiscountValue = nd("-1")
			return d("10"), decimal.Zero, r
		},
		"negative cap": func() (decimal.Decimal, decimal.Decimal, *Rule) {
			r := rule(Percentage, "2")
			r.MaxDiscount = nd("-1")
			return d("10"), decimal.Zero, r
		},
		"negative custom cap": func() (decimal.Decimal, decimal.Decimal, *Rule) {
			r := rule(Percentage, "2")
			r.CustomMaxDiscount = nd("-1")
			return d("10"), decimal.Zero, r
		},
		"unknown type": func() (decimal.Decimal, decimal.Decimal, *Rule) { return d("10"), decimal.Zero, rule("BOGO", "1") },
	}
	for name, build := range cases {
		t.Run(name, func(t *testing.T) {
			base, size, r := build()
			_, err := Resolve(base, size, r, now)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestResolveOverridePrecedence(t *testing.T) {
	r := rule(Percentage, "50")
	r.CustomDiscountValue = nd("10")
	got, err := Resolve(d("100"), decimal.Zero, r, now)
	require.NoError(t, err)
	require.Equal(t, "90", got.String())
}

func TestComputeTotals(t *testing.T) {
	tot := ComputeTotals(d("100"), d("120"), d("10"))
	require.Equal(t, "100", tot.Discount.String())
	require.Equal(t, "10", tot.Total.String())

	tot = ComputeTotals(d("100"), d("-5"), d("-1"))
	require.Equal(t, "100", tot.Total.String())
}
