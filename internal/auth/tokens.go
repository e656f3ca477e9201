package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/storefront-api/internal/common"
)

const (
	claimRole  = "role"
	claimStore = "store_id"
)

var (
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrNoSecret     = errors.New("auth: signing secret not configured")
)

// Tokens verifies access tokens issued by the identity service. Issue exists
// for tooling and tests; the API itself never mints tokens.
type Tokens struct {
	Secret    []byte
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	TTL       time.Duration
	Now       func() time.Time
}

func (t *Tokens) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// Issue signs an HS256 token carrying p.
func (t *Tokens) Issue(p common.Principal) (string, error) {
	if len(t.Secret) == 0 {
		return "", ErrNoSecret
	}
	ttl := t.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	now := t.now()
	b := jwt.NewBuilder().
		JwtID(uuid.NewString()).
		Subject(p.UserID).
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(ttl)).
		Claim(claimRole, p.Role)
	if t.Issuer != "" {
		b = b.Issuer(t.Issuer)
	}
	if t.Audience != "" {
		b = b.Audience([]string{t.Audience})
	}
	if p.StoreID != "" {
		b = b.Claim(claimStore, p.StoreID)
	}
	tok, err := b.Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, t.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return string(signed), nil
}

// Parse verifies signature, issuer, audience and lifetime and returns the
// principal the token carries. Tokens without a role are treated as customers.
func (t *Tokens) Parse(raw string) (common.Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(t.Secret) == 0 {
		return common.Principal{}, ErrInvalidToken
	}
	alg, err := tokenAlgorithm(raw)
	if err != nil {
		return common.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if alg != jwa.HS256 {
		return common.Principal{}, fmt.Errorf("%w: unexpected algorithm %s", ErrInvalidToken, alg)
	}
	opts := []jwt.ParseOption{
		jwt.WithKey(alg, t.Secret),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(t.now)),
	}
	if t.ClockSkew > 0 {
		opts = append(opts, jwt.WithAcceptableSkew(t.ClockSkew))
	}
	if t.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.Issuer))
	}
	if t.Audience != "" {
		opts = append(opts, jwt.WithAudience(t.Audience))
	}
	tok, err := jwt.ParseString(raw, opts...)
	if err != nil {
		return common.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if _, err := uuid.Parse(tok.Subject()); err != nil {
		return common.Principal{}, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}
	p := common.Principal{UserID: tok.Subject(), Role: common.RoleCustomer}
	if v, ok := tok.Get(claimRole); ok {
		if role, _ := v.(string); role != "" {
			p.Role = role
		}
	}
	if v, ok := tok.Get(claimStore); ok {
		p.StoreID, _ = v.(string)
	}
	switch p.Role {
	case common.RoleCustomer, common.RoleSeller, common.RoleAdmin:
	default:
		return common.Principal{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, p.Role)
	}
	return p, nil
}

func tokenAlgorithm(raw string) (jwa.SignatureAlgorithm, error) {
	msg, err := jws.ParseString(raw)
	if err != nil {
		return "", err
	}
	sigs := msg.Signatures()
	if len(sigs) != 1 {
		return "", errors.New("expected exactly one signature")
	}
	headers := sigs[0].ProtectedHeaders()
	if headers == nil {
		return "", errors.New("missing protected headers")
	}
	alg := headers.Algorithm()
	if alg == "" || alg == jwa.NoSignature {
		return "", errors.New("unsigned token")
	}
	return alg, nil
}
