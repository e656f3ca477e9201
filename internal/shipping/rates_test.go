package shipping_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/shipping"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func table() []shipping.Rate {
	return []shipping.Rate{
		{Country: "*", Method: "standard", BaseRate: dec("20"), PerItemRate: dec("5"), MinDays: 5, MaxDays: 9},
		{Country: "ID", Method: "express", BaseRate: dec("15"), PerItemRate: dec("3"), MinDays: 1, MaxDays: 2},
		{Country: "ID", Method: "regular", BaseRate: dec("8"), PerItemRate: dec("2"),
			FreeThreshold: decimal.NullDecimal{Decimal: dec("300"), Valid: true}, MinDays: 2, MaxDays: 4},
	}
}

func TestQuotePrefersCountryRates(t *testing.T) {
	options := shipping.Quote(table(), "id", 3, dec("100"))
	require.Len(t, options, 2)
	require.Equal(t, "regular", options[0].Method)
	require.True(t, options[0].Cost.Equal(dec("12")), options[0].Cost.String())
	require.Equal(t, "express", options[1].Method)
	require.True(t, options[1].Cost.Equal(dec("21")))
}

func TestQuoteFallsBackToDefault(t *testing.T) {
	options := shipping.Quote(table(), "SG", 1, dec("100"))
	require.Len(t, options, 1)
	require.Equal(t, "standard", options[0].Method)
	require.True(t, options[0].Cost.Equal(dec("20")))

	require.Empty(t, shipping.Quote(table()[1:], "SG", 1, dec("100")))
}

func TestQuoteFreeThreshold(t *testing.T) {
	options := shipping.Quote(table(), "ID", 4, dec("300"))
	require.Equal(t, "regular", options[0].Method)
	require.True(t, options[0].Free)
	require.True(t, options[0].Cost.IsZero())
}

func TestSelect(t *testing.T) {
	options := shipping.Quote(table(), "ID", 1, dec("10"))

	opt, ok := shipping.Select(options, "")
	require.True(t, ok)
	require.Equal(t, "regular", opt.Method)

	opt, ok = shipping.Select(options, "EXPRESS")
	require.True(t, ok)
	require.Equal(t, "express", opt.Method)

	_, ok = shipping.Select(options, "drone")
	require.False(t, ok)
	_, ok = shipping.Select(nil, "")
	require.False(t, ok)
}
