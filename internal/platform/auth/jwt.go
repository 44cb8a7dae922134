package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v4"
)

// Claims is the verifier-neutral view of an accepted bearer token.
type Claims struct {
	Subject string
	Email   string
	Locale  string
	Role    string
}

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// JWTVerifier accepts HS256 tokens issued by the storefront login service. The user id
// travels in the "id" claim, with "sub" accepted as a fallback.
type JWTVerifier struct {
	secret []byte
	leeway time.Duration
	now    func() time.Time
}

// JWTOption customises JWTVerifier instances.
type JWTOption func(*JWTVerifier)

// WithJWTClock injects the clock used for expiry checks.
func WithJWTClock(now func() time.Time) JWTOption {
	return func(v *JWTVerifier) {
		if now != nil {
			v.now = now
		}
	}
}

// WithJWTLeeway tolerates small clock drift between issuer and API.
func WithJWTLeeway(d time.Duration) JWTOption {
	return func(v *JWTVerifier) {
		if d >= 0 {
			v.leeway = d
		}
	}
}

// NewJWTVerifier constructs a verifier for the shared HMAC secret.
func NewJWTVerifier(secret string, opts ...JWTOption) (*JWTVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	v := &JWTVerifier{secret: []byte(secret), now: time.Now, leeway: 30 * time.Second}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v, nil
}

// Verify parses and validates the token.
func (v *JWTVerifier) Verify(_ context.Context, token string) (Claims, error) {
	if v == nil {
		return Claims{}, errors.New("auth: jwt verifier not initialised")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	now := v.now()
	if !claims.VerifyExpiresAt(now.Add(-v.leeway).Unix(), false) {
		return Claims{}, ErrTokenExpired
	}
	if !claims.VerifyNotBefore(now.Add(v.leeway).Unix(), false) {
		return Claims{}, fmt.Errorf("%w: token not yet valid", ErrTokenInvalid)
	}

	subject := claimAsString(claims, "id")
	if subject == "" {
		subject = claimAsString(claims, "sub")
	}
	if subject == "" {
		return Claims{}, fmt.Errorf("%w: token has no subject", ErrTokenInvalid)
	}
	return Claims{
		Subject: subject,
		Email:   claimAsString(claims, defaultEmailClaim),
		Locale:  claimAsString(claims, defaultLocaleClaim),
		Role:    claimAsString(claims, defaultRoleClaim),
	}, nil
}

func claimAsString(claims map[string]any, key string) string {
	if raw, ok := claims[key].(string); ok {
		return strings.TrimSpace(raw)
	}
	return ""
}
