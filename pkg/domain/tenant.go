package domain

import (
	"regexp"
	"time"
)

// tenantIDPattern matches identifiers accepted from headers and hostnames.
var tenantIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,62}$`)

// Tenant represents an isolated customer account. Tenants are created by the
// registration flow and are read-only here.
type Tenant struct {
	ID         string
	Name       string
	SchemaName string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
}

// IsValidTenantID reports whether id is a well-formed tenant identifier.
func IsValidTenantID(id string) bool {
	return tenantIDPattern.MatchString(id)
}
