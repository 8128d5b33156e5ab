package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/tendant/sitehost/internal/httputil"
	"github.com/tendant/sitehost/pkg/domain"
	"github.com/tendant/sitehost/pkg/repository"
)

// TenantHeader carries an explicit tenant identifier. It takes precedence
// over the hostname label.
const TenantHeader = "X-Tenant-Id"

// TenantResolver resolves identifier candidates to a tenant.
type TenantResolver interface {
	Resolve(ctx context.Context, candidates ...string) (*domain.Tenant, error)
}

// Tenant creates middleware that resolves the request's tenant and binds it,
// together with its storage partition, to the request context.
func Tenant(resolver TenantResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			candidates, err := tenantCandidates(r)
			if err != nil {
				httputil.Error(w, http.StatusBadRequest, err.Error())
				return
			}

			tenant, err := resolver.Resolve(r.Context(), candidates...)
			if err != nil {
				if errors.Is(err, domain.ErrTenantNotFound) {
					httputil.Error(w, http.StatusNotFound, "tenant not found")
					return
				}
				logger.Error("failed to resolve tenant", "candidates", candidates, "error", err)
				httputil.Error(w, http.StatusInternalServerError, "failed to resolve tenant")
				return
			}

			ctx := context.WithValue(r.Context(), TenantKey, tenant)
			ctx = repository.WithPartition(ctx, tenant.SchemaName)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetTenant extracts the resolved tenant from the request context.
func GetTenant(ctx context.Context) (*domain.Tenant, bool) {
	tenant, ok := ctx.Value(TenantKey).(*domain.Tenant)
	return tenant, ok && tenant != nil
}

// tenantCandidates returns the header identifier followed by the hostname
// label, omitting whichever is absent.
func tenantCandidates(r *http.Request) ([]string, error) {
	var candidates []string

	if header := strings.TrimSpace(r.Header.Get(TenantHeader)); header != "" {
		if !domain.IsValidTenantID(header) {
			return nil, domain.ErrInvalidTenantIdentifier
		}
		candidates = append(candidates, header)
	}

	if label := hostLabel(r.Host); label != "" {
		candidates = append(candidates, label)
	}

	if len(candidates) == 0 {
		return nil, domain.ErrTenantIdentifierMissing
	}
	return candidates, nil
}

// hostLabel returns the first DNS label of host. IP literals, single-label
// hosts and labels that cannot be tenant identifiers yield "".
func hostLabel(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" || net.ParseIP(strings.Trim(host, "[]")) != nil {
		return ""
	}

	label, _, found := strings.Cut(host, ".")
	if !found || !domain.IsValidTenantID(label) {
		return ""
	}
	return label
}
