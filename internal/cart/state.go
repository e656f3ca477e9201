package cart

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/storefront-api/internal/catalog"
)

// MaxQuantity bounds a single line.
const MaxQuantity = 99

var (
	// ErrInvalidQuantity is returned for quantities outside 1..MaxQuantity.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrItemNotFound is returned when a size is not in the cart.
	ErrItemNotFound = errors.New("cart item not found")
)

// Item is one stored cart line. Prices are never stored; they are resolved
// each time the cart is viewed.
type Item struct {
	ProductID string `json:"product_id"`
	SizeID    string `json:"size_id"`
	Quantity  int    `json:"quantity"`
}

// State is an immutable snapshot of a cart. Reducers return a new State and
// never modify their input.
type State struct {
	Items      []Item    `json:"items"`
	CouponCode string    `json:"coupon_code,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Empty reports whether the cart has no lines.
func (s State) Empty() bool { return len(s.Items) == 0 }

// Lines converts the state into pricing input.
func (s State) Lines() []catalog.Line {
	out := make([]catalog.Line, 0, len(s.Items))
	for _, it := range s.Items {
		out = append(out, catalog.Line{SizeID: it.SizeID, Quantity: it.Quantity})
	}
	return out
}

func (s State) index(sizeID string) int {
	for i, it := range s.Items {
		if strings.EqualFold(it.SizeID, sizeID) {
			return i
		}
	}
	return -1
}

func (s State) clone() State {
	out := s
	out.Items = append([]Item(nil), s.Items...)
	return out
}

// AddItem adds item, increasing the quantity when the size is already present.
func AddItem(s State, item Item, now time.Time) (State, error) {
	if item.Quantity < 1 {
		return s, fmt.Errorf("quantity %d: %w", item.Quantity, ErrInvalidQuantity)
	}
	next := s.clone()
	if i := next.index(item.SizeID); i >= 0 {
		qty := next.Items[i].Quantity + item.Quantity
		if qty > MaxQuantity {
			return s, fmt.Errorf("quantity %d exceeds %d: %w", qty, MaxQuantity, ErrInvalidQuantity)
		}
		next.Items[i].Quantity = qty
	} else {
		if item.Quantity > MaxQuantity {
			return s, fmt.Errorf("quantity %d exceeds %d: %w", item.Quantity, MaxQuantity, ErrInvalidQuantity)
		}
		next.Items = append(next.Items, item)
	}
	next.UpdatedAt = now
	return next, nil
}

// UpdateQuantity sets the quantity of a line. A quantity of zero or less
// removes it.
func UpdateQuantity(s State, sizeID string, qty int, now time.Time) (State, error) {
	i := s.index(sizeID)
	if i < 0 {
		return s, ErrItemNotFound
	}
	if qty <= 0 {
		return RemoveItem(s, sizeID, now)
	}
	if qty > MaxQuantity {
		return s, fmt.Errorf("quantity %d exceeds %d: %w", qty, MaxQuantity, ErrInvalidQuantity)
	}
	next := s.clone()
	next.Items[i].Quantity = qty
	next.UpdatedAt = now
	return next, nil
}

// RemoveItem drops a line.
func RemoveItem(s State, sizeID string, now time.Time) (State, error) {
	i := s.index(sizeID)
	if i < 0 {
		return s, ErrItemNotFound
	}
	next := s.clone()
	next.Items = append(next.Items[:i], next.Items[i+1:]...)
	next.UpdatedAt = now
	return next, nil
}

// Clear empties the cart.
func Clear(now time.Time) State {
	return State{Items: []Item{}, UpdatedAt: now}
}

// SetCoupon attaches a coupon code; an empty code detaches it.
func SetCoupon(s State, code string, now time.Time) State {
	next := s.clone()
	next.CouponCode = strings.ToUpper(strings.TrimSpace(code))
	next.UpdatedAt = now
	return next
}

// Prune removes the given sizes, ignoring ones that are absent.
func Prune(s State, sizeIDs []string, now time.Time) State {
	next := s
	for _, id := range sizeIDs {
		if pruned, err := RemoveItem(next, id, now); err == nil {
			next = pruned
		}
	}
	return next
}

// Merge folds guest into user. Quantities of shared sizes are added and
// capped at MaxQuantity; the user's coupon wins over the guest's.
func Merge(user, guest State, now time.Time) State {
	next := user.clone()
	for _, it := range guest.Items {
		if i := next.index(it.SizeID); i >= 0 {
			next.Items[i].Quantity = min(next.Items[i].Quantity+it.Quantity, MaxQuantity)
			continue
		}
		it.Quantity = min(it.Quantity, MaxQuantity)
		next.Items = append(next.Items, it)
	}
	if next.CouponCode == "" {
		next.CouponCode = guest.CouponCode
	}
	next.UpdatedAt = now
	return next
}
