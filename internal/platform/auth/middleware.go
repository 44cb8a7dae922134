package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shoestore/api/internal/platform/httpx"
	"github.com/shoestore/api/internal/platform/requestctx"
)

const (
	defaultRoleClaim     = "role"
	defaultLocaleClaim   = "locale"
	defaultEmailClaim    = "email"
	defaultVerifyTimeout = 5 * time.Second
)

var (
	// ErrTokenExpired signals that the bearer token has expired.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid signals that the bearer token failed verification.
	ErrTokenInvalid = errors.New("auth: token invalid")
	// ErrAccountNotFound is returned by an AccountLoader when the token subject has no account.
	ErrAccountNotFound = errors.New("auth: account not found")
)

// Account is the stored profile of a token subject. Its role is authoritative over token claims.
type Account struct {
	ID    string
	Name  string
	Email string
	Role  string
}

// AccountLoader resolves the account for a verified token subject.
type AccountLoader func(ctx context.Context, userID string) (Account, error)

// Authenticator wires bearer token verification into HTTP middleware.
type Authenticator struct {
	verifier     TokenVerifier
	accounts     AccountLoader
	source       string
	fallbackRole string
	timeout      time.Duration
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithAccountLoader resolves the caller's stored account after the token is accepted.
func WithAccountLoader(loader AccountLoader) Option {
	return func(a *Authenticator) {
		a.accounts = loader
	}
}

// WithSource labels identities produced by this authenticator.
func WithSource(source string) Option {
	return func(a *Authenticator) {
		if source = strings.TrimSpace(source); source != "" {
			a.source = source
		}
	}
}

// WithVerificationTimeout bounds token verification and account lookup.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator constructs an Authenticator for middleware composition.
func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier:     verifier,
		source:       "jwt",
		fallbackRole: RoleUser,
		timeout:      defaultVerifyTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// RequireAuth verifies the Authorization bearer token and stores the caller identity in context.
func (a *Authenticator) RequireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			tokenStr, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				respondAuthError(ctx, w, http.StatusUnauthorized, "unauthenticated", "Not authorized, no token")
				return
			}
			if a == nil || a.verifier == nil {
				respondAuthError(ctx, w, http.StatusServiceUnavailable, "auth_unavailable", "Authorization service unavailable")
				return
			}

			identity, status, code, message := a.authenticate(ctx, tokenStr)
			if identity == nil {
				respondAuthError(ctx, w, status, code, message)
				return
			}

			requestctx.Logger(ctx).Debug("request authenticated",
				zap.String("userId", identity.UserID),
				zap.String("role", identity.Role),
				zap.String("source", identity.Source),
			)
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
		})
	}
}

func (a *Authenticator) authenticate(ctx context.Context, tokenStr string) (*Identity, int, string, string) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	claims, err := a.verifier.Verify(ctx, tokenStr)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, http.StatusUnauthorized, "token_expired", "Not authorized, token expired"
		}
		requestctx.Logger(ctx).Info("token verification failed", zap.Error(err))
		return nil, http.StatusUnauthorized, "invalid_token", "Not authorized, token failed"
	}

	identity := &Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Locale: claims.Locale,
		Role:   normaliseRole(claims.Role),
		Source: a.source,
	}
	if a.accounts != nil {
		account, err := a.accounts(ctx, claims.Subject)
		switch {
		case errors.Is(err, ErrAccountNotFound):
			return nil, http.StatusUnauthorized, "user_not_found", "User not found"
		case err != nil:
			requestctx.Logger(ctx).Warn("account lookup failed", zap.String("userId", claims.Subject), zap.Error(err))
			return nil, http.StatusServiceUnavailable, "auth_unavailable", "Authorization service unavailable"
		}
		identity.Name = account.Name
		if account.Email != "" {
			identity.Email = account.Email
		}
		identity.Role = normaliseRole(account.Role)
	}
	if identity.Role == "" {
		identity.Role = a.fallbackRole
	}
	return identity, 0, "", ""
}

// RequireRole rejects authenticated callers that lack every listed role. It must run after RequireAuth.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				respondAuthError(r.Context(), w, http.StatusUnauthorized, "unauthenticated", "Not authorized, no token")
				return
			}
			for _, role := range roles {
				if identity.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			respondAuthError(r.Context(), w, http.StatusForbidden, "insufficient_role", "Not authorized as an admin")
		})
	}
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func respondAuthError(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	httpx.WriteError(ctx, w, httpx.NewError(code, message, status))
}
