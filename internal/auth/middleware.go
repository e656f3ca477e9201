package auth

import (
	"net/http"
	"strings"

	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/tenant"
)

// Middleware verifies access tokens from the Authorization header or, for
// browser sessions, from AccessCookie.
type Middleware struct {
	Tokens       *Tokens
	AccessCookie string
}

// Authenticate attaches the principal of a valid token. Requests without a
// valid token continue anonymously; RequireAuth decides later.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := m.verify(m.credential(r)); ok {
			r = r.WithContext(common.WithPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth answers 401 unless a principal is attached or the request
// carries a valid token.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := common.PrincipalFrom(r.Context()); !ok {
			p, ok := m.verify(m.credential(r))
			if !ok {
				common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
				return
			}
			r = r.WithContext(common.WithPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

// PrincipalFromRequest authenticates a websocket handshake, which may carry
// the token as ?token= since browsers cannot set headers on it.
func (m Middleware) PrincipalFromRequest(r *http.Request) (common.Principal, bool) {
	if p, ok := m.verify(m.credential(r)); ok {
		return p, true
	}
	return m.verify(r.URL.Query().Get("token"))
}

func (m Middleware) verify(raw string) (common.Principal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || m.Tokens == nil {
		return common.Principal{}, false
	}
	p, err := m.Tokens.Parse(raw)
	return p, err == nil
}

// credential prefers a bearer header over the cookie.
func (m Middleware) credential(r *http.Request) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if found && strings.EqualFold(scheme, "bearer") {
		return token
	}
	if m.AccessCookie == "" {
		return ""
	}
	if c, err := r.Cookie(m.AccessCookie); err == nil {
		return c.Value
	}
	return ""
}

// RequireStoreManager admits admins and the sellers of the request's store.
// Mount it after RequireAuth and the tenant loader.
func RequireStoreManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := common.PrincipalFrom(r.Context())
		if !ok {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
			return
		}
		storeID, ok := tenant.From(r.Context())
		switch {
		case !ok:
			common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "store context required", nil)
		case !p.ManagesStore(storeID):
			common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "you do not manage this store", nil)
		default:
			next.ServeHTTP(w, r)
		}
	})
}
