package shipping

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCountry marks a rate that applies when no country-specific rate exists.
const DefaultCountry = "*"

// Rate is one row of a store's shipping table.
type Rate struct {
	ID            string              `json:"id"`
	Country       string              `json:"country"`
	Method        string              `json:"method"`
	BaseRate      decimal.Decimal     `json:"base_rate"`
	PerItemRate   decimal.Decimal     `json:"per_item_rate"`
	FreeThreshold decimal.NullDecimal `json:"free_threshold"`
	MinDays       int32               `json:"min_days"`
	MaxDays       int32               `json:"max_days"`
}

// Option is a priced shipping choice for a cart.
type Option struct {
	Method  string          `json:"method"`
	Country string          `json:"country"`
	Cost    decimal.Decimal `json:"cost"`
	Free    bool            `json:"free"`
	MinDays int32           `json:"min_days"`
	MaxDays int32           `json:"max_days"`
}

// Quote prices every method available for country. Country-specific rates
// replace the default table entirely. The first item pays the base rate and
// each further item adds the per-item rate; orders at or above the free
// threshold ship free. Options are sorted by cost, then method.
func Quote(rates []Rate, country string, itemCount int, subtotal decimal.Decimal) []Option {
	country = strings.ToUpper(strings.TrimSpace(country))
	selected := matching(rates, country)
	if len(selected) == 0 {
		selected = matching(rates, DefaultCountry)
	}
	out := make([]Option, 0, len(selected))
	for _, r := range selected {
		out = append(out, price(r, itemCount, subtotal))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Cost.Cmp(out[j].Cost); c != 0 {
			return c < 0
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// Select returns the option for method, or the cheapest when method is blank.
func Select(options []Option, method string) (Option, bool) {
	if len(options) == 0 {
		return Option{}, false
	}
	method = strings.TrimSpace(method)
	if method == "" {
		return options[0], true
	}
	for _, o := range options {
		if strings.EqualFold(o.Method, method) {
			return o, true
		}
	}
	return Option{}, false
}

func matching(rates []Rate, country string) []Rate {
	if country == "" {
		return nil
	}
	var out []Rate
	for _, r := range rates {
		if strings.EqualFold(r.Country, country) {
			out = append(out, r)
		}
	}
	return out
}

func price(r Rate, itemCount int, subtotal decimal.Decimal) Option {
	opt := Option{Method: r.Method, Country: strings.ToUpper(r.Country), MinDays: r.MinDays, MaxDays: r.MaxDays}
	if r.FreeThreshold.Valid && subtotal.GreaterThanOrEqual(r.FreeThreshold.Decimal) {
		opt.Cost = decimal.Zero
		opt.Free = true
		return opt
	}
	cost := r.BaseRate
	if itemCount > 1 {
		cost = cost.Add(r.PerItemRate.Mul(decimal.NewFromInt(int64(itemCount - 1))))
	}
	if cost.IsNegative() {
		cost = decimal.Zero
	}
	opt.Cost = cost
	opt.Free = cost.IsZero()
	return opt
}
