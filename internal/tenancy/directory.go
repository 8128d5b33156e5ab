// Package tenancy resolves inbound requests to tenants.
package tenancy

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tendant/sitehost/pkg/domain"
)

// TenantStore is a point lookup by tenant identifier.
type TenantStore interface {
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
}

// Cache holds tenant records between requests. Get returns (nil, nil) on a
// miss.
type Cache interface {
	Get(ctx context.Context, id string) (*domain.Tenant, error)
	Set(ctx context.Context, tenant *domain.Tenant) error
}

// Directory resolves identifier candidates to a tenant.
type Directory struct {
	store  TenantStore
	cache  Cache
	logger *slog.Logger
}

// NewDirectory creates a directory. cache may be nil.
func NewDirectory(store TenantStore, cache Cache, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// Resolve tries candidates in order and returns the first stored tenant.
// Empty candidates are skipped. When none match it returns
// domain.ErrTenantNotFound.
func (d *Directory) Resolve(ctx context.Context, candidates ...string) (*domain.Tenant, error) {
	for _, id := range candidates {
		if id == "" {
			continue
		}

		tenant, err := d.lookup(ctx, id)
		if errors.Is(err, domain.ErrTenantNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return tenant, nil
	}
	return nil, domain.ErrTenantNotFound
}

func (d *Directory) lookup(ctx context.Context, id string) (*domain.Tenant, error) {
	if d.cache != nil {
		tenant, err := d.cache.Get(ctx, id)
		if err != nil {
			d.logger.Warn("tenant cache read failed", "tenant_id", id, "error", err)
		} else if tenant != nil {
			return tenant, nil
		}
	}

	tenant, err := d.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if d.cache != nil {
		if err := d.cache.Set(ctx, tenant); err != nil {
			d.logger.Warn("tenant cache write failed", "tenant_id", id, "error", err)
		}
	}
	return tenant, nil
}
