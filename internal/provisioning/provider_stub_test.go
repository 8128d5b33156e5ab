package provisioning

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tendant/sitehost/internal/cloudflare"
	"github.com/tendant/sitehost/pkg/domain"
)

// stubProvider keeps records and certificates in memory and counts calls.
type stubProvider struct {
	mu      sync.Mutex
	nextID  int
	records map[string]domain.DNSRecord
	certs   map[string]domain.Certificate
	calls   map[string]int
	errs    map[string]error

	// createTimesOut makes CreateDNSRecord store the record but report a
	// timeout, as when the response is lost.
	createTimesOut bool
}

func newStubProvider() *stubProvider {
	return &stubProvider{
		records: map[string]domain.DNSRecord{},
		certs:   map[string]domain.Certificate{},
		calls:   map[string]int{},
		errs:    map[string]error{},
	}
}

func (p *stubProvider) enter(op string) error {
	p.calls[op]++
	return p.errs[op]
}

func (p *stubProvider) count(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

func (p *stubProvider) failWith(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[op] = err
}

func (p *stubProvider) id(prefix string) string {
	p.nextID++
	return fmt.Sprintf("%s-%d", prefix, p.nextID)
}

func (p *stubProvider) seedRecord(rec domain.DNSRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records[rec.ID] = rec
}

func (p *stubProvider) recordsNamed(name string) []domain.DNSRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.DNSRecord
	for _, r := range p.records {
		if r.Name == name {
			out = append(out, r)
		}
	}
	return out
}

func (p *stubProvider) hasCert(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.certs[id]
	return ok
}

func (p *stubProvider) CreateDNSRecord(_ context.Context, params cloudflare.DNSRecordParams) (*domain.DNSRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("CreateDNSRecord"); err != nil {
		return nil, err
	}
	rec := domain.DNSRecord{
		ID:      p.id("rec"),
		Type:    params.Type,
		Name:    params.Name,
		Content: params.Content,
		Proxied: params.Proxied,
	}
	p.records[rec.ID] = rec
	if p.createTimesOut {
		return nil, &domain.ProviderTimeoutError{Stage: domain.StageDNSCreate}
	}
	return &rec, nil
}

func (p *stubProvider) DeleteDNSRecord(_ context.Context, recordID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("DeleteDNSRecord"); err != nil {
		return err
	}
	delete(p.records, recordID)
	return nil
}

func (p *stubProvider) ListDNSRecords(_ context.Context, name string) ([]domain.DNSRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("ListDNSRecords"); err != nil {
		return nil, err
	}
	var out []domain.DNSRecord
	for _, r := range p.records {
		if name == "" || r.Name == name {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *stubProvider) CreateCertificate(_ context.Context, hostname string) (*domain.Certificate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("CreateCertificate"); err != nil {
		return nil, err
	}
	cert := domain.Certificate{ID: p.id("cert"), Hostname: hostname, Status: domain.CertificateStatusPending}
	p.certs[cert.ID] = cert
	return &cert, nil
}

func (p *stubProvider) DeleteCertificate(_ context.Context, certificateID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("DeleteCertificate"); err != nil {
		return err
	}
	delete(p.certs, certificateID)
	return nil
}

func (p *stubProvider) CertificateStatus(_ context.Context, certificateID string) (*domain.Certificate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("CertificateStatus"); err != nil {
		return nil, err
	}
	cert, ok := p.certs[certificateID]
	if !ok {
		return nil, &domain.ProviderError{Stage: domain.StageCertStatus, StatusCode: 404, Err: domain.ErrUpstreamNotFound}
	}
	return &cert, nil
}

func (p *stubProvider) setCertStatus(id string, status domain.CertificateStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cert := p.certs[id]
	cert.Status = status
	p.certs[id] = cert
}
