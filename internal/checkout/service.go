package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-api/internal/cart"
	"github.com/noah-isme/storefront-api/internal/coupon"
	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/events"
	"github.com/noah-isme/storefront-api/internal/lock"
	"github.com/noah-isme/storefront-api/internal/obs"
	"github.com/noah-isme/storefront-api/internal/order"
	"github.com/noah-isme/storefront-api/internal/pricing"
	"github.com/noah-isme/storefront-api/internal/repo"
	"github.com/noah-isme/storefront-api/internal/shipping"
	"github.com/noah-isme/storefront-api/internal/tenant"
)

var (
	ErrEmptyCart = errors.New("cart is empty")
	// ErrCartChanged means items vanished from the catalog since the buyer
	// last looked; the pruned cart must be reviewed again.
	ErrCartChanged = errors.New("cart changed, please review it again")
	ErrOutOfStock  = errors.New("not enough stock")
	ErrBusy        = errors.New("checkout already in progress for this cart")
)

// TxQuerier is the query set used inside the checkout transaction.
type TxQuerier interface {
	coupon.Querier
	CreateOrder(ctx context.Context, arg db.CreateOrderParams) (db.Order, error)
	CreateOrderItem(ctx context.Context, arg db.CreateOrderItemParams) (db.OrderItem, error)
	DecrementSizeStock(ctx context.Context, arg db.DecrementSizeStockParams) (int64, error)
}

// Transactor runs fn inside a single database transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(q TxQuerier) error) error
}

// PoolTransactor binds queries to a pgx transaction.
type PoolTransactor struct {
	Pool *pgxpool.Pool
	Q    *db.Queries
}

func (p PoolTransactor) InTx(ctx context.Context, fn func(q TxQuerier) error) error {
	tx, err := p.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(p.Q.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Carts is the part of the cart service checkout consumes.
type Carts interface {
	Load(ctx context.Context, owner cart.Owner) (cart.State, string, error)
	Clear(ctx context.Context, owner cart.Owner) error
}

// Redeemer reserves coupons inside the checkout transaction.
type Redeemer interface {
	Redeem(ctx context.Context, q coupon.Querier, code, userID string, subtotal decimal.Decimal) (*coupon.Redemption, error)
}

// Locker serialises checkouts of the same cart.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Emitter records domain events.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID pgtype.UUID, payload any) (db.DomainEvent, error)
}

// Service turns a cart into an order.
type Service struct {
	Carts    Carts
	Pricer   cart.Pricer
	Shipping cart.Quoter
	Coupons  Redeemer
	Tx       Transactor
	Locker   Locker
	Events   Emitter
	LockTTL  time.Duration
	Now      func() time.Time
	Log      zerolog.Logger
}

// Input is the checkout request.
type Input struct {
	Country        string        `json:"country" validate:"required,len=2,alpha"`
	ShippingMethod string        `json:"shipping_method" validate:"omitempty,max=40"`
	CouponCode     string        `json:"coupon_code" validate:"omitempty,max=40"`
	Address        order.Address `json:"address" validate:"required"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Place prices the user's cart afresh and persists it as a PENDING order.
func (s *Service) Place(ctx context.Context, userID string, in Input) (order.View, error) {
	storeID, err := repo.StoreUUID(ctx)
	if err != nil {
		return order.View{}, err
	}
	uid, err := repo.UUID(userID)
	if err != nil {
		return order.View{}, cart.ErrOwnerRequired
	}
	owner := cart.Owner{UserID: userID}
	key, err := cart.Key(repo.String(storeID), owner)
	if err != nil {
		return order.View{}, err
	}
	ttl := s.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	var placed order.View
	err = s.Locker.WithLock(ctx, lock.Key(key+":checkout"), ttl, func(ctx context.Context) error {
		var placeErr error
		placed, placeErr = s.place(ctx, storeID, uid, owner, in)
		return placeErr
	})
	if errors.Is(err, lock.ErrBusy) {
		err = ErrBusy
	}
	if err != nil {
		result := "error"
		if errors.Is(err, ErrOutOfStock) || errors.Is(err, ErrCartChanged) || errors.Is(err, ErrEmptyCart) || coupon.IsRejection(err) {
			result = "rejected"
		}
		obs.Inc(obs.CheckoutTotal, result)
		return order.View{}, err
	}
	obs.Inc(obs.CheckoutTotal, "ok")
	return placed, nil
}

func (s *Service) place(ctx context.Context, storeID, uid pgtype.UUID, owner cart.Owner, in Input) (order.View, error) {
	state, _, err := s.Carts.Load(ctx, owner)
	if err != nil {
		return order.View{}, err
	}
	if state.Empty() {
		return order.View{}, ErrEmptyCart
	}
	priced, err := s.Pricer.Price(ctx, storeID, state.Lines(), s.now())
	if err != nil {
		return order.View{}, err
	}
	if len(priced.Missing) > 0 {
		return order.View{}, ErrCartChanged
	}
	summary := priced.Summary
	for _, line := range summary.Items {
		if int(priced.Stock[line.SizeID]) < line.Quantity {
			return order.View{}, fmt.Errorf("%s (%s): %w", line.Name, line.Size, ErrOutOfStock)
		}
	}

	address, err := json.Marshal(in.Address)
	if err != nil {
		return order.View{}, fmt.Errorf("encode address: %w", err)
	}
	code := strings.TrimSpace(in.CouponCode)
	if code == "" {
		code = state.CouponCode
	}
	country := strings.ToUpper(strings.TrimSpace(in.Country))
	currency := ""
	if store, ok := tenant.StoreFrom(ctx); ok {
		currency = store.Currency
	}

	var (
		created db.Order
		items   []db.OrderItem
	)
	err = s.Tx.InTx(ctx, func(q TxQuerier) error {
		discount := decimal.Zero
		var redemption *coupon.Redemption
		if code != "" {
			var redeemErr error
			redemption, redeemErr = s.Coupons.Redeem(ctx, q, code, owner.UserID, summary.Subtotal)
			if redeemErr != nil {
				return redeemErr
			}
			discount = redemption.Discount
		}

		options, err := s.Shipping.Quote(ctx, country, summary.ItemCount, summary.Subtotal.Sub(discount))
		if err != nil {
			return err
		}
		option, ok := shipping.Select(options, in.ShippingMethod)
		if !ok {
			return shipping.ErrNoOption
		}
		totals := pricing.ComputeTotals(summary.Subtotal, discount, option.Cost)

		params := db.CreateOrderParams{
			StoreID:          storeID,
			UserID:           uid,
			Status:           string(order.StatusPending),
			Currency:         currency,
			Subtotal:         totals.Subtotal,
			OriginalSubtotal: summary.OriginalSubtotal,
			Savings:          summary.Savings,
			Discount:         totals.Discount,
			ShippingCost:     totals.Shipping,
			Total:            totals.Total,
			ShippingCountry:  country,
			ShippingMethod:   option.Method,
			ShippingAddress:  address,
		}
		if redemption != nil {
			params.CouponCode = repo.Text(redemption.Code)
		}
		created, err = q.CreateOrder(ctx, params)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, line := range summary.Items {
			item, err := createItem(ctx, q, created.ID, line)
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		if redemption != nil {
			if err := redemption.Commit(ctx, created.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return order.View{}, err
	}

	if err := s.Carts.Clear(ctx, owner); err != nil {
		s.Log.Warn().Err(err).Str("order_id", repo.String(created.ID)).Msg("cart clear after checkout failed")
	}
	if obs.CheckoutSavings != nil {
		obs.CheckoutSavings.Observe(created.Savings.Add(created.Discount).InexactFloat64())
	}
	if s.Events != nil {
		_, emitErr := s.Events.Emit(ctx, events.TopicOrderPlaced, created.ID, events.OrderPlaced{
			OrderID:  repo.String(created.ID),
			StoreID:  repo.String(created.StoreID),
			UserID:   repo.String(created.UserID),
			Total:    created.Total,
			Savings:  created.Savings.Add(created.Discount),
			Currency: created.Currency,
			Items:    summary.ItemCount,
		})
		if emitErr != nil {
			s.Log.Warn().Err(emitErr).Str("order_id", repo.String(created.ID)).Msg("order placed event degraded")
		}
	}
	return order.ToView(created, items), nil
}

func createItem(ctx context.Context, q TxQuerier, orderID pgtype.UUID, line pricing.Breakdown) (db.OrderItem, error) {
	sizeID, err := repo.UUID(line.SizeID)
	if err != nil {
		return db.OrderItem{}, err
	}
	productID, err := repo.UUID(line.ProductID)
	if err != nil {
		return db.OrderItem{}, err
	}
	n, err := q.DecrementSizeStock(ctx, db.DecrementSizeStockParams{ID: sizeID, Quantity: int32(line.Quantity)})
	if err != nil {
		return db.OrderItem{}, fmt.Errorf("decrement stock: %w", err)
	}
	if n == 0 {
		return db.OrderItem{}, fmt.Errorf("%s (%s): %w", line.Name, line.Size, ErrOutOfStock)
	}
	var flashSaleID pgtype.UUID
	if line.FlashSaleID != "" {
		flashSaleID, _ = repo.UUID(line.FlashSaleID)
	}
	item, err := q.CreateOrderItem(ctx, db.CreateOrderItemParams{
		OrderID:           orderID,
		ProductID:         productID,
		SizeID:            sizeID,
		Name:              line.Name,
		SizeLabel:         line.Size,
		Quantity:          int32(line.Quantity),
		UnitPrice:         line.OriginalUnitPrice,
		FinalUnitPrice:    line.FinalUnitPrice,
		LineTotal:         line.LineTotal,
		OriginalLineTotal: line.OriginalLineTotal,
		FlashSaleID:       flashSaleID,
	})
	if err != nil {
		return db.OrderItem{}, fmt.Errorf("create order item: %w", err)
	}
	return item, nil
}
