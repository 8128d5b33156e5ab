package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/tendant/sitehost/pkg/domain"
)

// TenantsRepository reads tenant records. Tenants are created by the
// registration flow; this service never writes them.
type TenantsRepository struct {
	db *sql.DB
}

// NewTenantsRepository creates a new tenants repository.
func NewTenantsRepository(db *sql.DB) *TenantsRepository {
	return &TenantsRepository{db: db}
}

// GetByID retrieves a tenant by its identifier.
func (r *TenantsRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	query := `
		SELECT id, name, schema_name, created_at, updated_at, deleted_at
		FROM public.tenants
		WHERE id = $1 AND deleted_at IS NULL
	`

	var tenant domain.Tenant
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&tenant.ID,
		&tenant.Name,
		&tenant.SchemaName,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
		&tenant.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTenantNotFound
		}
		return nil, err
	}

	return &tenant, nil
}

// List returns all active tenants ordered by identifier.
func (r *TenantsRepository) List(ctx context.Context) ([]*domain.Tenant, error) {
	query := `
		SELECT id, name, schema_name, created_at, updated_at, deleted_at
		FROM public.tenants
		WHERE deleted_at IS NULL
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*domain.Tenant
	for rows.Next() {
		var tenant domain.Tenant
		if err := rows.Scan(
			&tenant.ID,
			&tenant.Name,
			&tenant.SchemaName,
			&tenant.CreatedAt,
			&tenant.UpdatedAt,
			&tenant.DeletedAt,
		); err != nil {
			return nil, err
		}
		tenants = append(tenants, &tenant)
	}
	return tenants, rows.Err()
}
