package domain

import (
	"time"

	"github.com/google/uuid"
)

// Website belongs to exactly one tenant and is stored in that tenant's
// partition. Domain is globally unique across tenants; the registry holds
// the authoritative claim.
type Website struct {
	ID        uuid.UUID
	TenantID  string
	Name      string
	Template  string
	Domain    *string
	Published bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasDomain returns true if a domain is set on the website.
func (w *Website) HasDomain() bool {
	return w.Domain != nil && *w.Domain != ""
}

// DomainName returns the bound domain or an empty string.
func (w *Website) DomainName() string {
	if w.Domain == nil {
		return ""
	}
	return *w.Domain
}
