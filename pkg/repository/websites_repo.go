package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/tendant/sitehost/pkg/domain"
)

const uniqueViolation = "23505"

// WebsitesRepository stores websites in the tenant partition bound to the
// request context.
type WebsitesRepository struct {
	db *sql.DB
}

// NewWebsitesRepository creates a new websites repository.
func NewWebsitesRepository(db *sql.DB) *WebsitesRepository {
	return &WebsitesRepository{db: db}
}

// EnsurePartition creates the tenant schema and its websites table.
func EnsurePartition(ctx context.Context, db *sql.DB, schema string) error {
	quoted := pq.QuoteIdentifier(schema)
	stmts := []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, quoted),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s.websites (
				id UUID PRIMARY KEY,
				tenant_id TEXT NOT NULL,
				name TEXT NOT NULL,
				template TEXT NOT NULL,
				domain TEXT UNIQUE,
				published BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, quoted),
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure partition %s: %w", schema, err)
		}
	}
	return nil
}

// Create inserts a website.
func (r *WebsitesRepository) Create(ctx context.Context, website *domain.Website) error {
	return InPartition(ctx, r.db, func(tx *sql.Tx) error {
		return r.CreateTx(ctx, tx, website)
	})
}

// CreateTx inserts a website using q, which must already be scoped to the
// tenant partition.
func (r *WebsitesRepository) CreateTx(ctx context.Context, q Querier, website *domain.Website) error {
	query := `
		INSERT INTO websites (id, tenant_id, name, template, domain, published, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := q.ExecContext(ctx, query,
		website.ID, website.TenantID, website.Name, website.Template, website.Domain,
		website.Published, website.CreatedAt, website.UpdatedAt,
	)
	return mapWebsiteErr(err)
}

// GetByID retrieves a website owned by tenantID.
func (r *WebsitesRepository) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*domain.Website, error) {
	var website *domain.Website
	err := InPartition(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			SELECT id, tenant_id, name, template, domain, published, created_at, updated_at
			FROM websites
			WHERE id = $1 AND tenant_id = $2
		`
		w, err := scanWebsite(tx.QueryRowContext(ctx, query, id, tenantID))
		if err != nil {
			return err
		}
		website = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return website, nil
}

// ListByTenant returns the tenant's websites, newest first.
func (r *WebsitesRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Website, error) {
	var websites []*domain.Website
	err := InPartition(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			SELECT id, tenant_id, name, template, domain, published, created_at, updated_at
			FROM websites
			WHERE tenant_id = $1
			ORDER BY created_at DESC
		`
		rows, err := tx.QueryContext(ctx, query, tenantID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			w, err := scanWebsite(rows)
			if err != nil {
				return err
			}
			websites = append(websites, w)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return websites, nil
}

// Update writes name, template, domain and published.
func (r *WebsitesRepository) Update(ctx context.Context, website *domain.Website) error {
	return InPartition(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			UPDATE websites
			SET name = $3, template = $4, domain = $5, published = $6, updated_at = $7
			WHERE id = $1 AND tenant_id = $2
		`
		website.UpdatedAt = time.Now()
		result, err := tx.ExecContext(ctx, query,
			website.ID, website.TenantID, website.Name, website.Template, website.Domain,
			website.Published, website.UpdatedAt,
		)
		if err != nil {
			return mapWebsiteErr(err)
		}
		return expectOneRow(result)
	})
}

// Delete removes a website.
func (r *WebsitesRepository) Delete(ctx context.Context, tenantID string, id uuid.UUID) error {
	return InPartition(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM websites WHERE id = $1 AND tenant_id = $2`, id, tenantID)
		if err != nil {
			return err
		}
		return expectOneRow(result)
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWebsite(row rowScanner) (*domain.Website, error) {
	w := &domain.Website{}
	err := row.Scan(
		&w.ID, &w.TenantID, &w.Name, &w.Template, &w.Domain,
		&w.Published, &w.CreatedAt, &w.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrWebsiteNotFound
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func expectOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrWebsiteNotFound
	}
	return nil
}

func mapWebsiteErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return domain.ErrDomainInUse
	}
	return err
}
