package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/storefront-api/internal/common"
)

func testTokens(now time.Time) *Tokens {
	return &Tokens{
		Secret:   []byte("test-secret"),
		Issuer:   "storefront",
		Audience: "storefront-api",
		TTL:      time.Minute,
		Now:      func() time.Time { return now },
	}
}

func TestTokensRoundTrip(t *testing.T) {
	now := time.Now()
	tokens := testTokens(now)
	want := common.Principal{UserID: uuid.NewString(), Role: common.RoleSeller, StoreID: uuid.NewString()}

	raw, err := tokens.Issue(want)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	got, err := tokens.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestTokensRejectExpired(t *testing.T) {
	issued := time.Now().Add(-time.Hour)
	raw, err := testTokens(issued).Issue(common.Principal{UserID: uuid.NewString()})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := testTokens(time.Now()).Parse(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokensRejectAudienceAndSecretMismatch(t *testing.T) {
	now := time.Now()
	raw, err := testTokens(now).Issue(common.Principal{UserID: uuid.NewString()})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other := testTokens(now)
	other.Audience = "someone-else"
	if _, err := other.Parse(raw); err == nil {
		t.Fatal("expected audience mismatch")
	}

	other = testTokens(now)
	other.Secret = []byte("different")
	if _, err := other.Parse(raw); err == nil {
		t.Fatal("expected signature mismatch")
	}
}

func TestTokensDefaultsRoleAndRejectsUnknown(t *testing.T) {
	now := time.Now()
	tokens := testTokens(now)

	sign := func(role string) string {
		b := jwt.NewBuilder().
			Subject(uuid.NewString()).
			Issuer(tokens.Issuer).
			Audience([]string{tokens.Audience}).
			IssuedAt(now).
			Expiration(now.Add(time.Minute))
		if role != "" {
			b = b.Claim("role", role)
		}
		tok, err := b.Build()
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, tokens.Secret))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return string(signed)
	}

	p, err := tokens.Parse(sign(""))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Role != common.RoleCustomer {
		t.Fatalf("expected customer role, got %q", p.Role)
	}
	if _, err := tokens.Parse(sign("superuser")); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected unknown role to fail, got %v", err)
	}
}

func TestTokensRejectOtherAlgorithms(t *testing.T) {
	now := time.Now()
	tokens := testTokens(now)
	tok, err := jwt.NewBuilder().Subject(uuid.NewString()).Expiration(now.Add(time.Minute)).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS512, tokens.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := tokens.Parse(string(signed)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected algorithm rejection, got %v", err)
	}
	if _, err := tokens.Parse("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected garbage rejection, got %v", err)
	}
}
