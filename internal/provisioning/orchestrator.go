// Package provisioning coordinates the domain registry with the DNS/TLS
// provider. The registry write is the primary effect and is committed first;
// provider calls are best effort and their failures are returned in the
// result rather than as errors.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/sitehost/internal/cloudflare"
	"github.com/tendant/sitehost/pkg/domain"
)

// Registry is the global domain registry.
type Registry interface {
	Lookup(ctx context.Context, name string) (uuid.UUID, error)
	Get(ctx context.Context, name string) (*domain.DomainBinding, error)
	Bind(ctx context.Context, binding *domain.DomainBinding) error
	Unbind(ctx context.Context, name string) error
	SetDNSRecord(ctx context.Context, name, recordID string) error
	SetCertificate(ctx context.Context, name, certificateID string) error
}

// Provider is the DNS/TLS provider.
type Provider interface {
	CreateDNSRecord(ctx context.Context, params cloudflare.DNSRecordParams) (*domain.DNSRecord, error)
	DeleteDNSRecord(ctx context.Context, recordID string) error
	ListDNSRecords(ctx context.Context, name string) ([]domain.DNSRecord, error)
	CreateCertificate(ctx context.Context, hostname string) (*domain.Certificate, error)
	DeleteCertificate(ctx context.Context, certificateID string) error
	CertificateStatus(ctx context.Context, certificateID string) (*domain.Certificate, error)
}

// Options configures the orchestrator.
type Options struct {
	// RecordType is the DNS record type created for a domain (default "A").
	RecordType string
	// DisableProxy creates DNS-only records instead of proxied ones.
	DisableProxy bool
	// CallTimeout bounds every provider call (default 20s).
	CallTimeout time.Duration
	Logger      *slog.Logger
}

// Orchestrator attaches, replaces and detaches website domains.
type Orchestrator struct {
	registry    Registry
	provider    Provider
	recordType  string
	proxied     bool
	callTimeout time.Duration
	logger      *slog.Logger
}

// New creates an orchestrator.
func New(registry Registry, provider Provider, opts Options) *Orchestrator {
	if opts.RecordType == "" {
		opts.RecordType = "A"
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 20 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		registry:    registry,
		provider:    provider,
		recordType:  opts.RecordType,
		proxied:     !opts.DisableProxy,
		callTimeout: opts.CallTimeout,
		logger:      opts.Logger,
	}
}

// AttachRequest binds Domain to WebsiteID and provisions it.
type AttachRequest struct {
	TenantID  string
	WebsiteID uuid.UUID
	Domain    string
	TargetIP  string
}

// ReplaceRequest moves a website from OldDomain to NewDomain.
type ReplaceRequest struct {
	TenantID  string
	WebsiteID uuid.UUID
	OldDomain string
	NewDomain string
	TargetIP  string
}

// DetachRequest releases Domain from WebsiteID.
type DetachRequest struct {
	WebsiteID uuid.UUID
	Domain    string
}

// Attach claims the domain and provisions its DNS record and certificate.
// domain.ErrDomainInUse and domain.ErrInvalidDomain are returned before any
// provider call. Provider failures leave the binding in place and are
// reported through the result. Attach is safe to re-run.
//
// Attach, Replace and Detach ignore cancellation of ctx once called; each
// provider call is bounded by Options.CallTimeout instead.
func (o *Orchestrator) Attach(ctx context.Context, req AttachRequest) (*domain.ProvisioningResult, error) {
	ctx = context.WithoutCancel(ctx)
	name, err := domain.NormalizeDomain(req.Domain)
	if err != nil {
		return nil, err
	}

	if err := o.bind(ctx, name, req.WebsiteID, req.TenantID); err != nil {
		return nil, err
	}

	result := &domain.ProvisioningResult{Domain: name, WebsiteID: req.WebsiteID, Bound: true}
	o.provision(ctx, result, req.TargetIP)
	return result, nil
}

// Replace claims NewDomain first, so a conflict leaves everything untouched,
// then releases OldDomain (DNS record, certificate and registry row) and
// provisions NewDomain. OldDomain is only released if it is bound to the
// same website or not bound at all.
//
// If OldDomain cannot be read from the registry, the NewDomain claim is
// released again and the error returned.
func (o *Orchestrator) Replace(ctx context.Context, req ReplaceRequest) (*domain.ProvisioningResult, error) {
	ctx = context.WithoutCancel(ctx)
	newName, err := domain.NormalizeDomain(req.NewDomain)
	if err != nil {
		return nil, err
	}
	oldName := normalizeExisting(req.OldDomain)

	if oldName == "" || oldName == newName {
		return o.Attach(ctx, AttachRequest{
			TenantID:  req.TenantID,
			WebsiteID: req.WebsiteID,
			Domain:    newName,
			TargetIP:  req.TargetIP,
		})
	}

	if err := o.bind(ctx, newName, req.WebsiteID, req.TenantID); err != nil {
		return nil, err
	}

	result := &domain.ProvisioningResult{Domain: newName, WebsiteID: req.WebsiteID, Bound: true}

	err = o.release(ctx, result, req.WebsiteID, oldName)
	if errors.Is(err, domain.ErrDomainInUse) {
		o.logger.Warn("old domain belongs to another website, leaving it in place",
			"domain", oldName, "website_id", req.WebsiteID)
	} else if err != nil {
		o.logger.Error("failed to release old domain, dropping new claim",
			"domain", newName, "old_domain", oldName, "website_id", req.WebsiteID, "error", err)
		if unbindErr := o.registry.Unbind(ctx, newName); unbindErr != nil && !errors.Is(unbindErr, domain.ErrDomainNotBound) {
			o.logger.Error("failed to unbind domain", "domain", newName, "website_id", req.WebsiteID, "error", unbindErr)
		}
		return nil, err
	}

	o.provision(ctx, result, req.TargetIP)
	return result, nil
}

// Detach releases the domain's DNS record, certificate and registry row.
// An empty domain is a no-op. A domain bound to another website yields
// domain.ErrDomainInUse and is not touched.
func (o *Orchestrator) Detach(ctx context.Context, req DetachRequest) (*domain.ProvisioningResult, error) {
	ctx = context.WithoutCancel(ctx)
	name := normalizeExisting(req.Domain)
	result := &domain.ProvisioningResult{Domain: name, WebsiteID: req.WebsiteID}
	if name == "" {
		return result, nil
	}

	if err := o.release(ctx, result, req.WebsiteID, name); err != nil {
		return nil, err
	}
	return result, nil
}

// Available returns domain.ErrDomainInUse if the domain is bound to a
// website other than websiteID. It is a read-only pre-check; Attach and
// Replace remain the authoritative claim.
func (o *Orchestrator) Available(ctx context.Context, websiteID uuid.UUID, rawDomain string) error {
	name, err := domain.NormalizeDomain(rawDomain)
	if err != nil {
		return err
	}

	owner, err := o.registry.Lookup(ctx, name)
	switch {
	case errors.Is(err, domain.ErrDomainNotBound):
		return nil
	case err != nil:
		return err
	case owner != websiteID:
		return domain.ErrDomainInUse
	}
	return nil
}

// Status reports the binding for a domain with the live certificate state.
func (o *Orchestrator) Status(ctx context.Context, rawDomain string) (*domain.ProvisioningResult, error) {
	name, err := domain.NormalizeDomain(rawDomain)
	if err != nil {
		return nil, err
	}

	binding, err := o.registry.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	result := &domain.ProvisioningResult{Domain: name, WebsiteID: binding.WebsiteID, Bound: true}
	if binding.DNSRecordID != "" {
		result.DNSRecord = &domain.DNSRecord{ID: binding.DNSRecordID, Type: o.recordType, Name: name}
	}
	if binding.CertificateID == "" {
		return result, nil
	}

	callCtx, cancel := o.callContext(ctx)
	cert, err := o.provider.CertificateStatus(callCtx, binding.CertificateID)
	cancel()
	if err != nil {
		o.fail(result, err)
		result.Certificate = &domain.Certificate{ID: binding.CertificateID, Hostname: name, Status: domain.CertificateStatusPending}
		if errors.Is(err, domain.ErrUpstreamNotFound) {
			result.Certificate.Status = domain.CertificateStatusFailed
		}
		return result, nil
	}
	cert.Hostname = name
	result.Certificate = cert
	return result, nil
}

func (o *Orchestrator) bind(ctx context.Context, name string, websiteID uuid.UUID, tenantID string) error {
	err := o.registry.Bind(ctx, &domain.DomainBinding{
		Domain:    name,
		WebsiteID: websiteID,
		TenantID:  tenantID,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrDomainInUse) {
			o.logger.Error("failed to bind domain", "domain", name, "website_id", websiteID, "error", err)
		}
		return err
	}
	return nil
}

// provision creates or adopts the DNS record and the certificate for a bound
// domain, stopping at the first provider failure.
func (o *Orchestrator) provision(ctx context.Context, result *domain.ProvisioningResult, targetIP string) {
	binding, err := o.registry.Get(ctx, result.Domain)
	if err != nil {
		o.logger.Warn("failed to read binding references",
			"domain", result.Domain, "website_id", result.WebsiteID, "error", err)
		binding = &domain.DomainBinding{Domain: result.Domain, WebsiteID: result.WebsiteID}
	}

	record, err := o.ensureDNSRecord(ctx, result.Domain, targetIP, binding.DNSRecordID)
	if err != nil {
		o.fail(result, err)
		return
	}
	result.DNSRecord = record
	if record.ID != binding.DNSRecordID {
		if err := o.registry.SetDNSRecord(ctx, result.Domain, record.ID); err != nil {
			o.logger.Warn("failed to store DNS record reference",
				"domain", result.Domain, "record_id", record.ID, "error", err)
		}
	}

	cert, err := o.ensureCertificate(ctx, result.Domain, binding.CertificateID)
	if err != nil {
		o.fail(result, err)
		return
	}
	result.Certificate = cert
	if cert.ID != binding.CertificateID {
		if err := o.registry.SetCertificate(ctx, result.Domain, cert.ID); err != nil {
			o.logger.Warn("failed to store certificate reference",
				"domain", result.Domain, "certificate_id", cert.ID, "error", err)
		}
	}
}

// ensureDNSRecord adopts an existing record for name before creating one. A
// create that times out is followed by another list, since the provider may
// have created the record anyway.
func (o *Orchestrator) ensureDNSRecord(ctx context.Context, name, targetIP, storedID string) (*domain.DNSRecord, error) {
	existing, err := o.findRecord(ctx, name, storedID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Content != targetIP {
			o.logger.Warn("adopting DNS record with different target",
				"domain", name, "record_id", existing.ID, "content", existing.Content, "target", targetIP)
		}
		return existing, nil
	}

	callCtx, cancel := o.callContext(ctx)
	record, err := o.provider.CreateDNSRecord(callCtx, cloudflare.DNSRecordParams{
		Type:    o.recordType,
		Name:    name,
		Content: targetIP,
		Proxied: o.proxied,
	})
	cancel()
	if err == nil {
		return record, nil
	}
	if !domain.IsProviderTimeout(err) {
		return nil, err
	}

	o.logger.Warn("DNS record create timed out, reconciling", "domain", name)
	existing, listErr := o.findRecord(ctx, name, "")
	if listErr != nil || existing == nil {
		return nil, err
	}
	return existing, nil
}

func (o *Orchestrator) findRecord(ctx context.Context, name, storedID string) (*domain.DNSRecord, error) {
	records, err := o.listRecords(ctx, name)
	if err != nil {
		return nil, err
	}

	var match *domain.DNSRecord
	for i := range records {
		r := &records[i]
		if storedID != "" && r.ID == storedID {
			return r, nil
		}
		if match == nil && strings.EqualFold(r.Type, o.recordType) {
			match = r
		}
	}
	return match, nil
}

func (o *Orchestrator) listRecords(ctx context.Context, name string) ([]domain.DNSRecord, error) {
	callCtx, cancel := o.callContext(ctx)
	defer cancel()

	records, err := o.provider.ListDNSRecords(callCtx, name)
	if err != nil {
		return nil, err
	}

	matched := records[:0:0]
	for _, r := range records {
		if strings.EqualFold(strings.TrimSuffix(r.Name, "."), name) {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

// ensureCertificate keeps a stored certificate unless the provider reports it
// failed or gone, and orders a new one otherwise.
func (o *Orchestrator) ensureCertificate(ctx context.Context, name, storedID string) (*domain.Certificate, error) {
	if storedID != "" {
		callCtx, cancel := o.callContext(ctx)
		cert, err := o.provider.CertificateStatus(callCtx, storedID)
		cancel()
		switch {
		case err == nil && cert.Status != domain.CertificateStatusFailed:
			cert.Hostname = name
			return cert, nil
		case err != nil && !errors.Is(err, domain.ErrUpstreamNotFound):
			return nil, err
		}
		o.logger.Info("stored certificate unusable, ordering a new one",
			"domain", name, "certificate_id", storedID)
	}

	callCtx, cancel := o.callContext(ctx)
	defer cancel()
	return o.provider.CreateCertificate(callCtx, name)
}

// release removes provider artifacts and the registry row for name. It
// returns domain.ErrDomainInUse without side effects when another website
// owns the domain; other failures are recorded on result.
func (o *Orchestrator) release(ctx context.Context, result *domain.ProvisioningResult, websiteID uuid.UUID, name string) error {
	binding, err := o.registry.Get(ctx, name)
	switch {
	case errors.Is(err, domain.ErrDomainNotBound):
		binding = nil
	case err != nil:
		return err
	case binding.WebsiteID != websiteID:
		return domain.ErrDomainInUse
	}

	var recordID, certificateID string
	if binding != nil {
		recordID = binding.DNSRecordID
		certificateID = binding.CertificateID
	}

	o.removeDNSRecords(ctx, result, name, recordID)

	if certificateID != "" {
		callCtx, cancel := o.callContext(ctx)
		err := o.provider.DeleteCertificate(callCtx, certificateID)
		cancel()
		if err != nil {
			o.fail(result, err)
		}
	}

	if err := o.registry.Unbind(ctx, name); err != nil && !errors.Is(err, domain.ErrDomainNotBound) {
		o.logger.Error("failed to unbind domain", "domain", name, "website_id", websiteID, "error", err)
		result.AddFailure(fmt.Errorf("unbind %s: %w", name, err))
	}
	return nil
}

// removeDNSRecords deletes the stored record, or every record of the managed
// type found under name when no reference was stored.
func (o *Orchestrator) removeDNSRecords(ctx context.Context, result *domain.ProvisioningResult, name, recordID string) {
	ids := []string{recordID}
	if recordID == "" {
		records, err := o.listRecords(ctx, name)
		if err != nil {
			o.fail(result, err)
			return
		}
		ids = ids[:0]
		for _, r := range records {
			if strings.EqualFold(r.Type, o.recordType) {
				ids = append(ids, r.ID)
			}
		}
	}

	for _, id := range ids {
		callCtx, cancel := o.callContext(ctx)
		err := o.provider.DeleteDNSRecord(callCtx, id)
		cancel()
		if err != nil {
			o.fail(result, err)
		}
	}
}

func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.callTimeout)
}

func (o *Orchestrator) fail(result *domain.ProvisioningResult, err error) {
	stage := domain.ProviderStage("unknown")
	var pe *domain.ProviderError
	var te *domain.ProviderTimeoutError
	switch {
	case errors.As(err, &pe):
		stage = pe.Stage
	case errors.As(err, &te):
		stage = te.Stage
	}

	o.logger.Warn("domain provisioning step failed",
		"domain", result.Domain,
		"website_id", result.WebsiteID,
		"stage", stage,
		"error", err,
	)
	result.AddFailure(err)
}

// normalizeExisting canonicalises a stored domain. Values that fail
// validation are still released under their lowercased form.
func normalizeExisting(raw string) string {
	if name, err := domain.NormalizeDomain(raw); err == nil {
		return name
	}
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(raw), "."))
}
