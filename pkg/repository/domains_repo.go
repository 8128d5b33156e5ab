package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/sitehost/pkg/domain"
)

// bindAttempts bounds the insert/read-back loop when a competing binding is
// released between the two statements.
const bindAttempts = 3

// DomainsRepository is the global domain registry. Uniqueness is enforced by
// the primary key on public.domain_bindings.domain, so concurrent binds from
// any number of processes resolve in the database.
type DomainsRepository struct {
	db *sql.DB
}

// NewDomainsRepository creates a new domain registry backed by Postgres.
func NewDomainsRepository(db *sql.DB) *DomainsRepository {
	return &DomainsRepository{db: db}
}

// Lookup returns the website that owns domain.
func (r *DomainsRepository) Lookup(ctx context.Context, name string) (uuid.UUID, error) {
	var websiteID uuid.UUID
	err := r.db.QueryRowContext(ctx,
		`SELECT website_id FROM public.domain_bindings WHERE domain = $1`, name,
	).Scan(&websiteID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, domain.ErrDomainNotBound
	}
	if err != nil {
		return uuid.Nil, err
	}
	return websiteID, nil
}

// Get returns the full binding for domain.
func (r *DomainsRepository) Get(ctx context.Context, name string) (*domain.DomainBinding, error) {
	query := `
		SELECT domain, website_id, tenant_id, COALESCE(dns_record_id, ''), COALESCE(certificate_id, ''),
		       created_at, updated_at
		FROM public.domain_bindings
		WHERE domain = $1
	`
	b := &domain.DomainBinding{}
	err := r.db.QueryRowContext(ctx, query, name).Scan(
		&b.Domain, &b.WebsiteID, &b.TenantID, &b.DNSRecordID, &b.CertificateID,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrDomainNotBound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Bind claims the domain for binding.WebsiteID. Binding a domain the website
// already owns is a no-op; a domain owned by another website yields
// domain.ErrDomainInUse.
func (r *DomainsRepository) Bind(ctx context.Context, binding *domain.DomainBinding) error {
	query := `
		INSERT INTO public.domain_bindings (domain, website_id, tenant_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (domain) DO NOTHING
		RETURNING website_id
	`
	for attempt := 0; attempt < bindAttempts; attempt++ {
		var inserted uuid.UUID
		err := r.db.QueryRowContext(ctx, query,
			binding.Domain, binding.WebsiteID, binding.TenantID, time.Now(),
		).Scan(&inserted)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		owner, err := r.Lookup(ctx, binding.Domain)
		if errors.Is(err, domain.ErrDomainNotBound) {
			continue
		}
		if err != nil {
			return err
		}
		if owner == binding.WebsiteID {
			return nil
		}
		return domain.ErrDomainInUse
	}
	return domain.ErrDomainInUse
}

// Unbind releases the domain.
func (r *DomainsRepository) Unbind(ctx context.Context, name string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM public.domain_bindings WHERE domain = $1`, name)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrDomainNotBound
	}
	return nil
}

// SetDNSRecord stores the provider DNS record id for the domain.
func (r *DomainsRepository) SetDNSRecord(ctx context.Context, name, recordID string) error {
	return r.setRef(ctx, `UPDATE public.domain_bindings SET dns_record_id = NULLIF($2, ''), updated_at = NOW() WHERE domain = $1`, name, recordID)
}

// SetCertificate stores the provider certificate pack id for the domain.
func (r *DomainsRepository) SetCertificate(ctx context.Context, name, certificateID string) error {
	return r.setRef(ctx, `UPDATE public.domain_bindings SET certificate_id = NULLIF($2, ''), updated_at = NOW() WHERE domain = $1`, name, certificateID)
}

func (r *DomainsRepository) setRef(ctx context.Context, query, name, ref string) error {
	result, err := r.db.ExecContext(ctx, query, name, ref)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrDomainNotBound
	}
	return nil
}
