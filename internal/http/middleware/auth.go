package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/tendant/sitehost/internal/httputil"
	"github.com/tendant/sitehost/pkg/auth"
	"github.com/tendant/sitehost/pkg/domain"
)

type contextKey string

const (
	// SubjectKey is the context key for the authenticated subject.
	SubjectKey contextKey = "subject"
	// ClaimsKey is the context key for the token claims.
	ClaimsKey contextKey = "claims"
	// TenantKey is the context key for the resolved tenant.
	TenantKey contextKey = "tenant"
)

// Auth creates middleware that validates bearer access tokens. It must run
// after Tenant: a token issued for another tenant is rejected with 403.
func Auth(verifier *auth.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := httputil.BearerToken(r)
			if !ok {
				httputil.Error(w, http.StatusUnauthorized, "missing authorization")
				return
			}

			tenant, ok := GetTenant(r.Context())
			if !ok {
				httputil.Error(w, http.StatusInternalServerError, "tenant not resolved")
				return
			}

			claims, err := verifier.VerifyForTenant(tokenString, tenant.ID)
			if err != nil {
				if errors.Is(err, domain.ErrTenantMismatch) {
					httputil.Error(w, http.StatusForbidden, "token does not belong to this tenant")
					return
				}
				httputil.Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), SubjectKey, claims.Subject)
			ctx = context.WithValue(ctx, ClaimsKey, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSubject extracts the authenticated subject from the request context.
func GetSubject(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(SubjectKey).(string)
	return subject, ok
}

// GetClaims extracts the token claims from the request context.
func GetClaims(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*auth.Claims)
	return claims, ok
}
