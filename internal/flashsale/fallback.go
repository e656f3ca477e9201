package flashsale

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-api/internal/obs"
	"github.com/noah-isme/storefront-api/internal/pricing"
	"github.com/noah-isme/storefront-api/internal/resilience"
)

// FallbackLookup never fails: when the wrapped lookup errors or its breaker
// is open it reports "no rule" so callers price at base.
type FallbackLookup struct {
	Next    Lookup
	Breaker *resilience.Breaker
	Log     zerolog.Logger
}

// NewFallbackLookup guards next with breaker. A nil breaker disables tripping.
func NewFallbackLookup(next Lookup, breaker *resilience.Breaker, log zerolog.Logger) *FallbackLookup {
	return &FallbackLookup{Next: next, Breaker: breaker, Log: log}
}

func (f *FallbackLookup) ActiveRule(ctx context.Context, productID uuid.UUID, now time.Time) (*pricing.Rule, error) {
	var rule *pricing.Rule
	err := f.guard(ctx, func(ctx context.Context) error {
		var err error
		rule, err = f.Next.ActiveRule(ctx, productID, now)
		return err
	})
	if err != nil {
		f.degrade(ctx, err, 1)
		return nil, nil
	}
	return rule, nil
}

func (f *FallbackLookup) ActiveRules(ctx context.Context, productIDs []uuid.UUID, now time.Time) (map[uuid.UUID]*pricing.Rule, error) {
	var rules map[uuid.UUID]*pricing.Rule
	err := f.guard(ctx, func(ctx context.Context) error {
		var err error
		rules, err = f.Next.ActiveRules(ctx, productIDs, now)
		return err
	})
	if err != nil {
		f.degrade(ctx, err, len(productIDs))
		return map[uuid.UUID]*pricing.Rule{}, nil
	}
	if rules == nil {
		rules = map[uuid.UUID]*pricing.Rule{}
	}
	return rules, nil
}

func (f *FallbackLookup) guard(ctx context.Context, fn func(context.Context) error) error {
	if f.Breaker == nil {
		return fn(ctx)
	}
	return f.Breaker.Do(ctx, fn)
}

func (f *FallbackLookup) degrade(ctx context.Context, err error, products int) {
	result := "error"
	if errors.Is(err, resilience.ErrOpenCircuit) {
		result = "open"
	}
	obs.Inc(obs.FlashSaleLookups, "fallback", result)
	logger := f.Log
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		logger = *l
	}
	logger.Warn().Err(err).Int("products", products).Str("result", result).
		Msg("flash sale lookup failed, pricing at base")
}
