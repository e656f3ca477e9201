package shipping

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/repo"
)

var (
	// ErrNotFound is returned when a rate does not belong to the current store.
	ErrNotFound = errors.New("shipping rate not found")
	// ErrInvalidRate is returned for rate payloads that fail validation.
	ErrInvalidRate = errors.New("invalid shipping rate")
	// ErrNoOption is returned when nothing ships to the requested country or method.
	ErrNoOption = errors.New("no shipping option available")
)

type queryProvider interface {
	ListShippingRates(ctx context.Context, storeID pgtype.UUID) ([]db.ShippingRate, error)
	UpsertShippingRate(ctx context.Context, arg db.UpsertShippingRateParams) (db.ShippingRate, error)
	DeleteShippingRate(ctx context.Context, arg db.DeleteShippingRateParams) (int64, error)
}

// Service manages the per-store rate table and quotes carts against it.
type Service struct {
	Q queryProvider
}

// RateInput is the seller payload for a rate row.
type RateInput struct {
	Country       string              `json:"country" validate:"required,max=3"`
	Method        string              `json:"method" validate:"required,max=50"`
	BaseRate      decimal.Decimal     `json:"base_rate"`
	PerItemRate   decimal.Decimal     `json:"per_item_rate"`
	FreeThreshold decimal.NullDecimal `json:"free_threshold"`
	MinDays       int32               `json:"min_days" validate:"gte=0"`
	MaxDays       int32               `json:"max_days" validate:"gtefield=MinDays"`
}

// Rates lists the current store's table.
func (s *Service) Rates(ctx context.Context) ([]Rate, error) {
	storeID, err := repo.StoreUUID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.Q.ListShippingRates(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("list shipping rates: %w", err)
	}
	out := make([]Rate, 0, len(rows))
	for _, row := range rows {
		out = append(out, toRate(row))
	}
	return out, nil
}

// Quote prices the current store's options for a cart shipped to country.
func (s *Service) Quote(ctx context.Context, country string, itemCount int, subtotal decimal.Decimal) ([]Option, error) {
	rates, err := s.Rates(ctx)
	if err != nil {
		return nil, err
	}
	return Quote(rates, country, itemCount, subtotal), nil
}

// Upsert creates or replaces the rate for (country, method).
func (s *Service) Upsert(ctx context.Context, in RateInput) (Rate, error) {
	storeID, err := repo.StoreUUID(ctx)
	if err != nil {
		return Rate{}, err
	}
	if in.BaseRate.IsNegative() || in.PerItemRate.IsNegative() {
		return Rate{}, fmt.Errorf("rates must not be negative: %w", ErrInvalidRate)
	}
	if in.FreeThreshold.Valid && in.FreeThreshold.Decimal.IsNegative() {
		return Rate{}, fmt.Errorf("free threshold must not be negative: %w", ErrInvalidRate)
	}
	row, err := s.Q.UpsertShippingRate(ctx, db.UpsertShippingRateParams{
		StoreID:       storeID,
		Country:       strings.TrimSpace(in.Country),
		Method:        strings.TrimSpace(in.Method),
		BaseRate:      in.BaseRate,
		PerItemRate:   in.PerItemRate,
		FreeThreshold: in.FreeThreshold,
		MinDays:       in.MinDays,
		MaxDays:       in.MaxDays,
	})
	if err != nil {
		return Rate{}, fmt.Errorf("upsert shipping rate: %w", err)
	}
	return toRate(row), nil
}

// Delete removes a rate of the current store.
func (s *Service) Delete(ctx context.Context, id string) error {
	storeID, err := repo.StoreUUID(ctx)
	if err != nil {
		return err
	}
	rid, err := repo.UUID(id)
	if err != nil {
		return ErrNotFound
	}
	n, err := s.Q.DeleteShippingRate(ctx, db.DeleteShippingRateParams{StoreID: storeID, ID: rid})
	if err != nil {
		return fmt.Errorf("delete shipping rate: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func toRate(row db.ShippingRate) Rate {
	return Rate{
		ID:            repo.String(row.ID),
		Country:       row.Country,
		Method:        row.Method,
		BaseRate:      row.BaseRate,
		PerItemRate:   row.PerItemRate,
		FreeThreshold: row.FreeThreshold,
		MinDays:       row.MinDays,
		MaxDays:       row.MaxDays,
	}
}
