package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-api/internal/catalog"
	"github.com/noah-isme/storefront-api/internal/coupon"
	"github.com/noah-isme/storefront-api/internal/pricing"
	"github.com/noah-isme/storefront-api/internal/repo"
	"github.com/noah-isme/storefront-api/internal/shipping"
	"github.com/noah-isme/storefront-api/internal/tenant"
)

var (
	// ErrOwnerRequired is returned when neither a user nor a guest id is known.
	ErrOwnerRequired = errors.New("cart owner required")
	// ErrUnknownSize is returned when adding a size that is not for sale.
	ErrUnknownSize = errors.New("product size not available")
	// ErrOutOfStock is returned when the requested quantity exceeds stock.
	ErrOutOfStock = errors.New("not enough stock")
)

// Owner identifies whose cart is addressed. UserID wins over AnonID.
type Owner struct {
	UserID string
	AnonID string
}

// Key returns the storage key of owner's cart in storeID.
func Key(storeID string, o Owner) (string, error) {
	switch {
	case strings.TrimSpace(o.UserID) != "":
		return tenant.PrefixKey(storeID, "cart:user:"+strings.TrimSpace(o.UserID)), nil
	case strings.TrimSpace(o.AnonID) != "":
		return tenant.PrefixKey(storeID, "cart:anon:"+strings.TrimSpace(o.AnonID)), nil
	default:
		return "", ErrOwnerRequired
	}
}

// Pricer reconciles stored lines against current prices.
type Pricer interface {
	Price(ctx context.Context, storeID pgtype.UUID, lines []catalog.Line, now time.Time) (catalog.Priced, error)
}

// Quoter prices shipping options for the current store.
type Quoter interface {
	Quote(ctx context.Context, country string, itemCount int, subtotal decimal.Decimal) ([]shipping.Option, error)
}

// CouponPreviewer evaluates a coupon without redeeming it.
type CouponPreviewer interface {
	Preview(ctx context.Context, code, userID string, subtotal decimal.Decimal) (coupon.Applied, error)
}

// Service applies cart reducers to stored state and renders priced views.
type Service struct {
	Store    Storage
	Pricer   Pricer
	Shipping Quoter
	Coupons  CouponPreviewer
	Now      func() time.Time
	Log      zerolog.Logger
}

// View is the priced cart returned to clients.
type View struct {
	pricing.Summary
	Currency        string            `json:"currency,omitempty"`
	RemovedItems    []string          `json:"removed_items,omitempty"`
	Coupon          *coupon.Applied   `json:"coupon,omitempty"`
	CouponError     string            `json:"coupon_error,omitempty"`
	Country         string            `json:"country,omitempty"`
	ShippingOptions []shipping.Option `json:"shipping_options,omitempty"`
	Totals          pricing.Totals    `json:"totals"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Load returns the stored state of owner's cart and its key.
func (s *Service) Load(ctx context.Context, owner Owner) (State, string, error) {
	storeID, ok := tenant.From(ctx)
	if !ok {
		return State{}, "", repo.ErrTenantMissing
	}
	key, err := Key(storeID, owner)
	if err != nil {
		return State{}, "", err
	}
	state, err := s.Store.Load(ctx, key)
	if err != nil {
		return State{}, "", err
	}
	return state, key, nil
}

// View prices owner's cart. Lines whose size is gone are dropped from the
// stored cart. country selects shipping options when set.
func (s *Service) View(ctx context.Context, owner Owner, country string) (View, error) {
	state, key, err := s.Load(ctx, owner)
	if err != nil {
		return View{}, err
	}
	return s.render(ctx, owner, key, state, country)
}

// Add puts quantity units of sizeID into the cart.
func (s *Service) Add(ctx context.Context, owner Owner, sizeID string, quantity int) (View, error) {
	state, key, err := s.Load(ctx, owner)
	if err != nil {
		return View{}, err
	}
	existing := 0
	if i := state.index(sizeID); i >= 0 {
		existing = state.Items[i].Quantity
	}
	line, err := s.checkStock(ctx, sizeID, existing+quantity)
	if err != nil {
		return View{}, err
	}
	next, err := AddItem(state, Item{ProductID: line.ProductID, SizeID: line.SizeID, Quantity: quantity}, s.now())
	if err != nil {
		return View{}, err
	}
	return s.save(ctx, owner, key, next)
}

// Update sets the quantity of a line; zero removes it.
func (s *Service) Update(ctx context.Context, owner Owner, sizeID string, quantity int) (View, error) {
	state, key, err := s.Load(ctx, owner)
	if err != nil {
		return View{}, err
	}
	if quantity > 0 {
		if _, err := s.checkStock(ctx, sizeID, quantity); err != nil {
			return View{}, err
		}
	}
	next, err := UpdateQuantity(state, sizeID, quantity, s.now())
	if err != nil {
		return View{}, err
	}
	return s.save(ctx, owner, key, next)
}

// Remove drops a line.
func (s *Service) Remove(ctx context.Context, owner Owner, sizeID string) (View, error) {
	state, key, err := s.Load(ctx, owner)
	if err != nil {
		return View{}, err
	}
	next, err := RemoveItem(state, sizeID, s.now())
	if err != nil {
		return View{}, err
	}
	return s.save(ctx, owner, key, next)
}

// Clear deletes owner's cart.
func (s *Service) Clear(ctx context.Context, owner Owner) error {
	_, key, err := s.Load(ctx, owner)
	if err != nil {
		return err
	}
	return s.Store.Delete(ctx, key)
}

// ApplyCoupon attaches code after checking it against the current subtotal.
func (s *Service) ApplyCoupon(ctx context.Context, owner Owner, code string) (View, error) {
	if s.Coupons == nil {
		return View{}, coupon.ErrNotFound
	}
	state, key, err := s.Load(ctx, owner)
	if err != nil {
		return View{}, err
	}
	storeID, err := repo.StoreUUID(ctx)
	if err != nil {
		return View{}, err
	}
	priced, err := s.Pricer.Price(ctx, storeID, state.Lines(), s.now())
	if err != nil {
		return View{}, err
	}
	if _, err := s.Coupons.Preview(ctx, code, owner.UserID, priced.Summary.Subtotal); err != nil {
		return View{}, err
	}
	return s.save(ctx, owner, key, SetCoupon(state, code, s.now()))
}

// RemoveCoupon detaches the coupon.
func (s *Service) RemoveCoupon(ctx context.Context, owner Owner) (View, error) {
	state, key, err := s.Load(ctx, owner)
	if err != nil {
		return View{}, err
	}
	return s.save(ctx, owner, key, SetCoupon(state, "", s.now()))
}

// Merge folds the guest cart anonID into userID's cart and deletes it.
func (s *Service) Merge(ctx context.Context, userID, anonID string) (View, error) {
	user := Owner{UserID: userID}
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(anonID) == "" {
		return View{}, ErrOwnerRequired
	}
	userState, userKey, err := s.Load(ctx, user)
	if err != nil {
		return View{}, err
	}
	guestState, guestKey, err := s.Load(ctx, Owner{AnonID: anonID})
	if err != nil {
		return View{}, err
	}
	if guestState.Empty() && guestState.CouponCode == "" {
		return s.render(ctx, user, userKey, userState, "")
	}
	merged := Merge(userState, guestState, s.now())
	if err := s.Store.Save(ctx, userKey, merged); err != nil {
		return View{}, err
	}
	if err := s.Store.Delete(ctx, guestKey); err != nil {
		s.Log.Warn().Err(err).Str("key", guestKey).Msg("guest cart delete failed")
	}
	return s.render(ctx, user, userKey, merged, "")
}

func (s *Service) save(ctx context.Context, owner Owner, key string, state State) (View, error) {
	if err := s.Store.Save(ctx, key, state); err != nil {
		return View{}, err
	}
	return s.render(ctx, owner, key, state, "")
}

func (s *Service) checkStock(ctx context.Context, sizeID string, quantity int) (pricing.Breakdown, error) {
	storeID, err := repo.StoreUUID(ctx)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	if quantity < 1 || quantity > MaxQuantity {
		return pricing.Breakdown{}, fmt.Errorf("quantity %d: %w", quantity, ErrInvalidQuantity)
	}
	priced, err := s.Pricer.Price(ctx, storeID, []catalog.Line{{SizeID: sizeID, Quantity: quantity}}, s.now())
	if err != nil {
		return pricing.Breakdown{}, err
	}
	if len(priced.Summary.Items) == 0 {
		return pricing.Breakdown{}, ErrUnknownSize
	}
	line := priced.Summary.Items[0]
	if int(priced.Stock[line.SizeID]) < quantity {
		return pricing.Breakdown{}, ErrOutOfStock
	}
	return line, nil
}

func (s *Service) render(ctx context.Context, owner Owner, key string, state State, country string) (View, error) {
	storeID, err := repo.StoreUUID(ctx)
	if err != nil {
		return View{}, err
	}
	now := s.now()
	priced, err := s.Pricer.Price(ctx, storeID, state.Lines(), now)
	if err != nil {
		return View{}, err
	}
	if len(priced.Missing) > 0 {
		state = Prune(state, priced.Missing, now)
		if err := s.Store.Save(ctx, key, state); err != nil {
			s.Log.Warn().Err(err).Str("key", key).Msg("cart prune failed")
		}
	}
	view := View{Summary: priced.Summary, RemovedItems: priced.Missing}
	if store, ok := tenant.StoreFrom(ctx); ok {
		view.Currency = store.Currency
	}

	discount := decimal.Zero
	if state.CouponCode != "" && s.Coupons != nil {
		applied, err := s.Coupons.Preview(ctx, state.CouponCode, owner.UserID, priced.Summary.Subtotal)
		switch {
		case err == nil:
			view.Coupon = &applied
			discount = applied.Discount
		case coupon.IsRejection(err):
			view.CouponError = err.Error()
		default:
			s.Log.Warn().Err(err).Str("code", state.CouponCode).Msg("coupon preview failed")
		}
	}

	shippingCost := decimal.Zero
	if country = strings.ToUpper(strings.TrimSpace(country)); country != "" && s.Shipping != nil && !state.Empty() {
		view.Country = country
		options, err := s.Shipping.Quote(ctx, country, priced.Summary.ItemCount, priced.Summary.Subtotal.Sub(discount))
		if err != nil {
			return View{}, err
		}
		view.ShippingOptions = options
		if cheapest, ok := shipping.Select(options, ""); ok {
			shippingCost = cheapest.Cost
		}
	}
	view.Totals = pricing.ComputeTotals(priced.Summary.Subtotal, discount, shippingCost)
	return view, nil
}
