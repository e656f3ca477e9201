package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/noah-isme/storefront-api/internal/common"
)

// CSRF applies double-submit protection to requests authenticated by the
// access cookie. Bearer-token and anonymous requests are not at risk and pass.
type CSRF struct {
	Header     string
	Cookie     string
	AuthCookie string
}

// Middleware enforces that unsafe cookie-authenticated requests echo the
// CSRF cookie in a header.
func (c CSRF) Middleware(next http.Handler) http.Handler {
	header := strings.TrimSpace(c.Header)
	if header == "" {
		header = "X-CSRF-Token"
	}
	cookieName := strings.TrimSpace(c.Cookie)
	if cookieName == "" {
		cookieName = "csrf_token"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			next.ServeHTTP(w, r)
			return
		}
		if !c.cookieAuthenticated(r) {
			next.ServeHTTP(w, r)
			return
		}
		token := strings.TrimSpace(r.Header.Get(header))
		cookie, err := r.Cookie(cookieName)
		if token == "" || err != nil || cookie.Value == "" {
			common.JSONError(w, http.StatusForbidden, "CSRF_REQUIRED", "missing csrf token", nil)
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(cookie.Value)) != 1 {
			common.JSONError(w, http.StatusForbidden, "CSRF_INVALID", "invalid csrf token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (c CSRF) cookieAuthenticated(r *http.Request) bool {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(r.Header.Get("Authorization"))), "bearer ") {
		return false
	}
	if c.AuthCookie == "" {
		return false
	}
	cookie, err := r.Cookie(c.AuthCookie)
	return err == nil && cookie.Value != ""
}
