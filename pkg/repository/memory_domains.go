package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/sitehost/pkg/domain"
)

// MemoryDomainsRepository is an in-process domain registry with the same
// contract as DomainsRepository. It is only safe within a single process.
type MemoryDomainsRepository struct {
	mu       sync.Mutex
	bindings map[string]domain.DomainBinding
}

// NewMemoryDomainsRepository creates an empty in-memory registry.
func NewMemoryDomainsRepository() *MemoryDomainsRepository {
	return &MemoryDomainsRepository{
		bindings: map[string]domain.DomainBinding{},
	}
}

func (r *MemoryDomainsRepository) Lookup(_ context.Context, name string) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bindings[name]
	if !ok {
		return uuid.Nil, domain.ErrDomainNotBound
	}
	return b.WebsiteID, nil
}

func (r *MemoryDomainsRepository) Get(_ context.Context, name string) (*domain.DomainBinding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bindings[name]
	if !ok {
		return nil, domain.ErrDomainNotBound
	}
	return &b, nil
}

func (r *MemoryDomainsRepository) Bind(_ context.Context, binding *domain.DomainBinding) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.bindings[binding.Domain]; ok {
		if existing.WebsiteID == binding.WebsiteID {
			return nil
		}
		return domain.ErrDomainInUse
	}

	now := time.Now()
	r.bindings[binding.Domain] = domain.DomainBinding{
		Domain:    binding.Domain,
		WebsiteID: binding.WebsiteID,
		TenantID:  binding.TenantID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (r *MemoryDomainsRepository) Unbind(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bindings[name]; !ok {
		return domain.ErrDomainNotBound
	}
	delete(r.bindings, name)
	return nil
}

func (r *MemoryDomainsRepository) SetDNSRecord(_ context.Context, name, recordID string) error {
	return r.update(name, func(b *domain.DomainBinding) { b.DNSRecordID = recordID })
}

func (r *MemoryDomainsRepository) SetCertificate(_ context.Context, name, certificateID string) error {
	return r.update(name, func(b *domain.DomainBinding) { b.CertificateID = certificateID })
}

func (r *MemoryDomainsRepository) update(name string, fn func(b *domain.DomainBinding)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bindings[name]
	if !ok {
		return domain.ErrDomainNotBound
	}
	fn(&b)
	b.UpdatedAt = time.Now()
	r.bindings[name] = b
	return nil
}
