package common

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestIdemReplaysFirstResponse(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	calls := 0
	h := Idem{R: rdb, TTL: time.Minute}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		Data(w, http.StatusCreated, map[string]int{"n": calls})
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
		req.Header.Set("Idempotency-Key", "abc")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	first := do()
	second := do()
	require.Equal(t, 1, calls)
	require.Equal(t, http.StatusCreated, second.Code)
	require.JSONEq(t, first.Body.String(), second.Body.String())
	require.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
}

func TestIdemForgetsServerErrors(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	calls := 0
	h := Idem{R: rdb}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		JSONError(w, http.StatusInternalServerError, "INTERNAL", "boom", nil)
	}))
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
		req.Header.Set("Idempotency-Key", "k")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	require.Equal(t, 2, calls)
}

func TestIdemInProgressConflict(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
	req.Header.Set("Idempotency-Key", "busy")
	require.NoError(t, mr.Set(Idem{}.key(req, "busy"), idemPending))

	rr := httptest.NewRecorder()
	Idem{R: rdb}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rr, req)
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestIdemKeysAreScoped(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	calls := map[string]int{}
	idem := Idem{R: rdb, Scope: func(r *http.Request) string { return r.Header.Get("X-Tenant-ID") }}
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store := r.Header.Get("X-Tenant-ID")
		calls[store]++
		Data(w, http.StatusCreated, map[string]string{"store": store})
	}))

	do := func(store string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
		req = req.WithContext(WithUserID(req.Context(), "user-1"))
		req.Header.Set("Idempotency-Key", "k1")
		req.Header.Set("X-Tenant-ID", store)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	require.Equal(t, http.StatusCreated, do("store-a").Code)
	second := do("store-b")
	require.Equal(t, http.StatusCreated, second.Code)
	require.Empty(t, second.Header().Get("Idempotent-Replayed"))
	require.JSONEq(t, `{"data":{"store":"store-b"}}`, second.Body.String())
	require.Equal(t, map[string]int{"store-a": 1, "store-b": 1}, calls)

	replay := do("store-a")
	require.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	require.Equal(t, 1, calls["store-a"])
}
