package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// DomainBinding is the registry row claiming a domain for a website.
// DNSRecordID and CertificateID are references into the provider's
// namespace and may be empty when provisioning has not reached them.
type DomainBinding struct {
	Domain        string
	WebsiteID     uuid.UUID
	TenantID      string
	DNSRecordID   string
	CertificateID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DNSRecord is a record held by the provider.
type DNSRecord struct {
	ID      string
	Type    string
	Name    string
	Content string
	Proxied bool
}

// CertificateStatus is the normalised state of a certificate pack.
type CertificateStatus string

const (
	CertificateStatusPending CertificateStatus = "pending"
	CertificateStatusIssued  CertificateStatus = "issued"
	CertificateStatusFailed  CertificateStatus = "failed"
)

// Certificate is a certificate pack held by the provider.
type Certificate struct {
	ID       string
	Hostname string
	Status   CertificateStatus
}

// Stage is how far provisioning of a single binding has progressed.
type Stage string

const (
	StageUnbound     Stage = "unbound"
	StageBound       Stage = "bound"
	StageDNSCreated  Stage = "dns_created"
	StageCertPending Stage = "cert_pending"
	StageCertIssued  Stage = "cert_issued"
)

// ProvisioningResult is returned by the orchestrator. It is never persisted.
// Failures lists provider errors that were tolerated; the registry change
// that preceded them stays committed.
type ProvisioningResult struct {
	Domain      string
	WebsiteID   uuid.UUID
	Bound       bool
	DNSRecord   *DNSRecord
	Certificate *Certificate
	Failures    []error
}

// Degraded reports whether the primary effect committed but a provider
// call failed.
func (r *ProvisioningResult) Degraded() bool {
	return r != nil && len(r.Failures) > 0
}

// Err joins all tolerated failures, or returns nil.
func (r *ProvisioningResult) Err() error {
	if r == nil {
		return nil
	}
	return errors.Join(r.Failures...)
}

// Stage derives the state machine position from the result.
func (r *ProvisioningResult) Stage() Stage {
	switch {
	case r == nil || !r.Bound:
		return StageUnbound
	case r.DNSRecord == nil:
		return StageBound
	case r.Certificate == nil:
		return StageDNSCreated
	case r.Certificate.Status == CertificateStatusIssued:
		return StageCertIssued
	default:
		return StageCertPending
	}
}

// AddFailure records a tolerated provider failure.
func (r *ProvisioningResult) AddFailure(err error) {
	if err != nil {
		r.Failures = append(r.Failures, err)
	}
}
