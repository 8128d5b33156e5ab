package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/tendant/sitehost/pkg/domain"
)

func TestMemoryDomainsRepository_Bind(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDomainsRepository()
	siteA := uuid.New()
	siteB := uuid.New()

	if err := repo.Bind(ctx, &domain.DomainBinding{Domain: "example.com", WebsiteID: siteA, TenantID: "acme"}); err != nil {
		t.Fatalf("first Bind failed: %v", err)
	}

	// Same website again is a no-op
	if err := repo.Bind(ctx, &domain.DomainBinding{Domain: "example.com", WebsiteID: siteA, TenantID: "acme"}); err != nil {
		t.Errorf("idempotent Bind returned %v, want nil", err)
	}

	err := repo.Bind(ctx, &domain.DomainBinding{Domain: "example.com", WebsiteID: siteB, TenantID: "other"})
	if !errors.Is(err, domain.ErrDomainInUse) {
		t.Errorf("Bind by other website = %v, want ErrDomainInUse", err)
	}

	owner, err := repo.Lookup(ctx, "example.com")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if owner != siteA {
		t.Errorf("Lookup = %v, want %v", owner, siteA)
	}
}

func TestMemoryDomainsRepository_Unbind(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDomainsRepository()
	site := uuid.New()

	if err := repo.Unbind(ctx, "missing.com"); !errors.Is(err, domain.ErrDomainNotBound) {
		t.Errorf("Unbind missing = %v, want ErrDomainNotBound", err)
	}

	_ = repo.Bind(ctx, &domain.DomainBinding{Domain: "example.com", WebsiteID: site})
	if err := repo.Unbind(ctx, "example.com"); err != nil {
		t.Fatalf("Unbind failed: %v", err)
	}
	if _, err := repo.Lookup(ctx, "example.com"); !errors.Is(err, domain.ErrDomainNotBound) {
		t.Errorf("Lookup after Unbind = %v, want ErrDomainNotBound", err)
	}

	// Released domains can be claimed by another website
	if err := repo.Bind(ctx, &domain.DomainBinding{Domain: "example.com", WebsiteID: uuid.New()}); err != nil {
		t.Errorf("Bind after Unbind failed: %v", err)
	}
}

func TestMemoryDomainsRepository_References(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDomainsRepository()

	if err := repo.SetDNSRecord(ctx, "example.com", "rec-1"); !errors.Is(err, domain.ErrDomainNotBound) {
		t.Errorf("SetDNSRecord on unbound = %v, want ErrDomainNotBound", err)
	}

	_ = repo.Bind(ctx, &domain.DomainBinding{Domain: "example.com", WebsiteID: uuid.New()})
	if err := repo.SetDNSRecord(ctx, "example.com", "rec-1"); err != nil {
		t.Fatalf("SetDNSRecord failed: %v", err)
	}
	if err := repo.SetCertificate(ctx, "example.com", "cert-1"); err != nil {
		t.Fatalf("SetCertificate failed: %v", err)
	}

	b, err := repo.Get(ctx, "example.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if b.DNSRecordID != "rec-1" || b.CertificateID != "cert-1" {
		t.Errorf("references = (%q, %q), want (rec-1, cert-1)", b.DNSRecordID, b.CertificateID)
	}

	// Rebinding by the owner keeps stored references
	_ = repo.Bind(ctx, &domain.DomainBinding{Domain: "example.com", WebsiteID: b.WebsiteID})
	b, _ = repo.Get(ctx, "example.com")
	if b.DNSRecordID != "rec-1" {
		t.Errorf("DNSRecordID after rebind = %q, want rec-1", b.DNSRecordID)
	}
}

func TestMemoryDomainsRepository_ConcurrentBind(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDomainsRepository()

	const contenders = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Bind(ctx, &domain.DomainBinding{Domain: "shared.com", WebsiteID: uuid.New()})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrDomainInUse):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("successes = %d, want 1", successes)
	}
	if conflicts != contenders-1 {
		t.Errorf("conflicts = %d, want %d", conflicts, contenders-1)
	}
}
