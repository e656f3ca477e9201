package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/events"
	"github.com/noah-isme/storefront-api/internal/obs"
	"github.com/noah-isme/storefront-api/internal/repo"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidStatus     = errors.New("unknown order status")
	ErrInvalidTransition = errors.New("order status transition not allowed")
	ErrForbidden         = errors.New("not allowed to change this order")
	// ErrConflict means the order changed status between read and update.
	ErrConflict = errors.New("order was modified concurrently")
)

// Querier is the persistence surface of the order service.
type Querier interface {
	GetOrder(ctx context.Context, arg db.GetOrderParams) (db.Order, error)
	ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]db.OrderItem, error)
	ListOrdersByUser(ctx context.Context, arg db.ListOrdersByUserParams) ([]db.Order, error)
	CountOrdersByUser(ctx context.Context, arg db.CountOrdersByUserParams) (int64, error)
	ListOrdersByStore(ctx context.Context, arg db.ListOrdersByStoreParams) ([]db.Order, error)
	CountOrdersByStore(ctx context.Context, arg db.CountOrdersByStoreParams) (int64, error)
	UpdateOrderStatus(ctx context.Context, arg db.UpdateOrderStatusParams) (db.Order, error)
}

// Emitter records domain events.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID pgtype.UUID, payload any) (db.DomainEvent, error)
}

// Service reads orders and drives their lifecycle.
type Service struct {
	Q      Querier
	Events Emitter
	Log    zerolog.Logger
}

// Address is the shipping destination captured at checkout.
type Address struct {
	Name       string `json:"name" validate:"required,max=120"`
	Phone      string `json:"phone" validate:"required,max=32"`
	Line1      string `json:"line1" validate:"required,max=200"`
	Line2      string `json:"line2,omitempty" validate:"max=200"`
	City       string `json:"city" validate:"required,max=120"`
	PostalCode string `json:"postal_code" validate:"required,max=16"`
}

// ItemView is one purchased line.
type ItemView struct {
	ProductID         string          `json:"product_id"`
	SizeID            string          `json:"size_id"`
	Name              string          `json:"name"`
	Size              string          `json:"size"`
	Quantity          int32           `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	FinalUnitPrice    decimal.Decimal `json:"final_unit_price"`
	LineTotal         decimal.Decimal `json:"line_total"`
	OriginalLineTotal decimal.Decimal `json:"original_line_total"`
	FlashSaleID       string          `json:"flash_sale_id,omitempty"`
}

// View is the API representation of an order.
type View struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	Status           Status          `json:"status"`
	Currency         string          `json:"currency"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	OriginalSubtotal decimal.Decimal `json:"original_subtotal"`
	Savings          decimal.Decimal `json:"savings"`
	Discount         decimal.Decimal `json:"discount"`
	ShippingCost     decimal.Decimal `json:"shipping_cost"`
	Total            decimal.Decimal `json:"total"`
	CouponCode       string          `json:"coupon_code,omitempty"`
	ShippingCountry  string          `json:"shipping_country"`
	ShippingMethod   string          `json:"shipping_method"`
	ShippingAddress  *Address        `json:"shipping_address,omitempty"`
	Items            []ItemView      `json:"items,omitempty"`
	CreatedAt        *time.Time      `json:"created_at,omitempty"`
	UpdatedAt        *time.Time      `json:"updated_at,omitempty"`
}

// ToView converts persisted rows. Items may be nil for list responses.
func ToView(o db.Order, items []db.OrderItem) View {
	v := View{
		ID:               repo.String(o.ID),
		UserID:           repo.String(o.UserID),
		Status:           Status(o.Status),
		Currency:         o.Currency,
		Subtotal:         o.Subtotal,
		OriginalSubtotal: o.OriginalSubtotal,
		Savings:          o.Savings,
		Discount:         o.Discount,
		ShippingCost:     o.ShippingCost,
		Total:            o.Total,
		CouponCode:       o.CouponCode.String,
		ShippingCountry:  o.ShippingCountry,
		ShippingMethod:   o.ShippingMethod,
		CreatedAt:        repo.TimePtr(o.CreatedAt),
		UpdatedAt:        repo.TimePtr(o.UpdatedAt),
	}
	if len(o.ShippingAddress) > 0 {
		var addr Address
		if err := json.Unmarshal(o.ShippingAddress, &addr); err == nil {
			v.ShippingAddress = &addr
		}
	}
	for _, it := range items {
		v.Items = append(v.Items, ItemView{
			ProductID:         repo.String(it.ProductID),
			SizeID:            repo.String(it.SizeID),
			Name:              it.Name,
			Size:              it.SizeLabel,
			Quantity:          it.Quantity,
			UnitPrice:         it.UnitPrice,
			FinalUnitPrice:    it.FinalUnitPrice,
			LineTotal:         it.LineTotal,
			OriginalLineTotal: it.OriginalLineTotal,
			FlashSaleID:       repo.String(it.FlashSaleID),
		})
	}
	return v
}

// ListMine pages through the caller's orders in the current store.
func (s *Service) ListMine(ctx context.Context, userID string, limit, offset int) ([]View, int64, error) {
	storeID, err := repo.StoreUUID(ctx)
	if err != nil {
		return nil, 0, err
	}
	uid, err := repo.UUID(userID)
	if err != nil {
		return nil, 0, ErrForbidden
	}
	total, err := s.Q.CountOrdersByUser(ctx, db.CountOrdersByUserParams{StoreID: storeID, UserID: uid})
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	rows, err := s.Q.ListOrdersByUser(ctx, db.ListOrdersByUserParams{
		StoreID: storeID,
		UserID:  uid,
		Limit:   int32(limit),
		Offset:  int32(offset),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return views(rows), total, nil
}

// ListStore pages through the store's orders, optionally filtered by status.
func (s *Service) ListStore(ctx context.Context, status string, limit, offset int) ([]View, int64, error) {
	storeID, err := repo.StoreUUID(ctx)
	if err != nil {
		return nil, 0, err
	}
	var filter pgtype.Text
	if status != "" {
		st, ok := ParseStatus(status)
		if !ok {
			return nil, 0, ErrInvalidStatus
		}
		filter = repo.Text(string(st))
	}
	total, err := s.Q.CountOrdersByStore(ctx, db.CountOrdersByStoreParams{StoreID: storeID, Status: filter})
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	rows, err := s.Q.ListOrdersByStore(ctx, db.ListOrdersByStoreParams{
		StoreID: storeID,
		Status:  filter,
		Limit:   int32(limit),
		Offset:  int32(offset),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return views(rows), total, nil
}

// Get returns one order with its items. When userID is set the order must
// belong to that user.
func (s *Service) Get(ctx context.Context, id, userID string) (View, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return View{}, err
	}
	if userID != "" && repo.String(o.UserID) != userID {
		return View{}, ErrNotFound
	}
	items, err := s.Q.ListOrderItems(ctx, o.ID)
	if err != nil {
		return View{}, fmt.Errorf("list order items: %w", err)
	}
	return ToView(o, items), nil
}

// Cancel lets a buyer withdraw an order that has not started processing.
func (s *Service) Cancel(ctx context.Context, actor common.Principal, id string) (View, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return View{}, err
	}
	if repo.String(o.UserID) != actor.UserID {
		return View{}, ErrNotFound
	}
	if !BuyerCanCancel(Status(o.Status)) {
		return View{}, ErrInvalidTransition
	}
	return s.transition(ctx, o, StatusCancelled, actor.UserID)
}

// Advance moves an order on behalf of the store staff.
func (s *Service) Advance(ctx context.Context, actor common.Principal, id, to string) (View, error) {
	next, ok := ParseStatus(to)
	if !ok {
		return View{}, ErrInvalidStatus
	}
	o, err := s.load(ctx, id)
	if err != nil {
		return View{}, err
	}
	if !actor.ManagesStore(repo.String(o.StoreID)) {
		return View{}, ErrForbidden
	}
	if !CanTransition(Status(o.Status), next) {
		return View{}, ErrInvalidTransition
	}
	return s.transition(ctx, o, next, actor.UserID)
}

func (s *Service) transition(ctx context.Context, o db.Order, to Status, actorID string) (View, error) {
	from := o.Status
	updated, err := s.Q.UpdateOrderStatus(ctx, db.UpdateOrderStatusParams{
		StoreID: o.StoreID,
		ID:      o.ID,
		From:    from,
		To:      string(to),
	})
	if err != nil {
		if repo.IsNotFound(err) {
			return View{}, ErrConflict
		}
		return View{}, fmt.Errorf("update order status: %w", err)
	}
	obs.Inc(obs.OrderTransitions, from, string(to))

	if s.Events != nil {
		_, emitErr := s.Events.Emit(ctx, events.TopicOrderStatusChanged, updated.ID, events.OrderStatusChanged{
			OrderID: repo.String(updated.ID),
			StoreID: repo.String(updated.StoreID),
			UserID:  repo.String(updated.UserID),
			From:    from,
			To:      string(to),
			ActorID: actorID,
		})
		if emitErr != nil {
			s.Log.Warn().Err(emitErr).Str("order_id", repo.String(updated.ID)).Msg("order status event degraded")
		}
	}
	return ToView(updated, nil), nil
}

func (s *Service) load(ctx context.Context, id string) (db.Order, error) {
	storeID, err := repo.StoreUUID(ctx)
	if err != nil {
		return db.Order{}, err
	}
	oid, err := repo.UUID(id)
	if err != nil {
		return db.Order{}, ErrNotFound
	}
	o, err := s.Q.GetOrder(ctx, db.GetOrderParams{StoreID: storeID, ID: oid})
	if err != nil {
		if repo.IsNotFound(err) {
			return db.Order{}, ErrNotFound
		}
		return db.Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func views(rows []db.Order) []View {
	out := make([]View, 0, len(rows))
	for _, o := range rows {
		out = append(out, ToView(o, nil))
	}
	return out
}
