package common

import "context"

type ctxKey string

const (
	userIDKey ctxKey = "auth/user-id"
	roleKey   ctxKey = "auth/role"
	storeKey  ctxKey = "auth/store-id"
)

// Roles carried by access tokens.
const (
	RoleCustomer = "customer"
	RoleSeller   = "seller"
	RoleAdmin    = "admin"
)

// Principal is the authenticated caller attached to a request context.
type Principal struct {
	UserID  string
	Role    string
	StoreID string
}

// WithUserID stores the authenticated user identifier on the provided context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// WithPrincipal stores user id, role and (for sellers) the managed store id.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	ctx = WithUserID(ctx, p.UserID)
	ctx = context.WithValue(ctx, roleKey, p.Role)
	return context.WithValue(ctx, storeKey, p.StoreID)
}

// UserID extracts the authenticated user identifier from the context if present.
func UserID(ctx context.Context) (string, bool) {
	v := ctx.Value(userIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// PrincipalFrom returns the authenticated principal if one is present.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	id, ok := UserID(ctx)
	if !ok {
		return Principal{}, false
	}
	p := Principal{UserID: id}
	p.Role, _ = ctx.Value(roleKey).(string)
	p.StoreID, _ = ctx.Value(storeKey).(string)
	return p, true
}

// ManagesStore reports whether the principal can administer the given store.
func (p Principal) ManagesStore(storeID string) bool {
	if p.Role == RoleAdmin {
		return true
	}
	return p.Role == RoleSeller && p.StoreID != "" && p.StoreID == storeID
}
