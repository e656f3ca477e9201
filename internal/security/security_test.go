package security

import (
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/noah-isme/storefront-api/internal/common"
)

func ok(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func TestBodyLimitAllowsWithinLimit(t *testing.T) {
	var captured string
	handler := BodyLimit{Max: 10}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("unexpected read error: %v", err)
		}
		captured = string(data)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/payload", strings.NewReader("hello")))
	if rr.Code != http.StatusOK || captured != "hello" {
		t.Fatalf("expected body to pass through, got %d %q", rr.Code, captured)
	}
}

func TestBodyLimitRejectsDeclaredLength(t *testing.T) {
	handler := BodyLimit{Max: 5}.Middleware(http.HandlerFunc(ok))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/payload", strings.NewReader("excessive")))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}
}

func TestBodyLimitCapsStreamedBody(t *testing.T) {
	handler := BodyLimit{Max: 8}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var dst map[string]string
		if !common.DecodeAndValidate(w, r, &dst) {
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/payload", strings.NewReader(`{"name":"far too long"}`))
	req.ContentLength = -1
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 for streamed body, got %d", rr.Code)
	}
}

func TestHeadersMiddleware(t *testing.T) {
	handler := Headers{HSTSMaxAge: 600}.Middleware(http.HandlerFunc(ok))

	req := httptest.NewRequest(http.MethodGet, "https://example.com", nil)
	req.TLS = &tls.ConnectionState{}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected nosniff header, got %q", got)
	}
	if got := rr.Header().Get("Strict-Transport-Security"); got != "max-age=600; includeSubDomains" {
		t.Fatalf("unexpected hsts header %q", got)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "http://example.com", nil))
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("hsts must not be sent over plain http")
	}
}

func TestCSRF(t *testing.T) {
	handler := CSRF{AuthCookie: "access_token"}.Middleware(http.HandlerFunc(ok))
	serve := func(mutate func(*http.Request)) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/cart/items", nil)
		mutate(req)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	if rr := serve(func(*http.Request) {}); rr.Code != http.StatusOK {
		t.Fatalf("anonymous request should pass, got %d", rr.Code)
	}
	if rr := serve(func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") }); rr.Code != http.StatusOK {
		t.Fatalf("bearer request should pass, got %d", rr.Code)
	}

	rr := serve(func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "access_token", Value: "jwt"})
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body.Error.Code != "CSRF_REQUIRED" {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}

	rr = serve(func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "access_token", Value: "jwt"})
		r.AddCookie(&http.Cookie{Name: "csrf_token", Value: "abc"})
		r.Header.Set("X-CSRF-Token", "abd")
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected mismatch to fail, got %d", rr.Code)
	}

	rr = serve(func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "access_token", Value: "jwt"})
		r.AddCookie(&http.Cookie{Name: "csrf_token", Value: "abc"})
		r.Header.Set("X-CSRF-Token", "abc")
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected matching token to pass, got %d", rr.Code)
	}
}
