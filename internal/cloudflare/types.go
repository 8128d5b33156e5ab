package cloudflare

import (
	"encoding/json"

	"github.com/tendant/sitehost/pkg/domain"
)

// envelope is the v4 API response wrapper.
type envelope struct {
	Success    bool            `json:"success"`
	Errors     []apiMessage    `json:"errors"`
	Messages   []apiMessage    `json:"messages"`
	Result     json.RawMessage `json:"result"`
	ResultInfo *resultInfo     `json:"result_info,omitempty"`
}

type apiMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type resultInfo struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
	Count      int `json:"count"`
	TotalCount int `json:"total_count"`
}

// DNSRecordParams describes a record to create.
type DNSRecordParams struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Proxied bool   `json:"proxied"`
	TTL     int    `json:"ttl"`
}

type dnsRecord struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Proxied bool   `json:"proxied"`
}

func (r dnsRecord) toDomain() *domain.DNSRecord {
	return &domain.DNSRecord{
		ID:      r.ID,
		Type:    r.Type,
		Name:    r.Name,
		Content: r.Content,
		Proxied: r.Proxied,
	}
}

type certificatePackRequest struct {
	Hostnames      []string `json:"hostnames"`
	Type           string   `json:"type"`
	ValidationMode string   `json:"validation_method"`
	ValidityDays   int      `json:"validity_days"`
}

type certificatePack struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	Hosts     []string `json:"hosts"`
	Hostnames []string `json:"hostnames"`
	Status    string   `json:"status"`
}

func (p certificatePack) toDomain(hostname string) *domain.Certificate {
	if hostname == "" {
		switch {
		case len(p.Hosts) > 0:
			hostname = p.Hosts[0]
		case len(p.Hostnames) > 0:
			hostname = p.Hostnames[0]
		}
	}
	return &domain.Certificate{
		ID:       p.ID,
		Hostname: hostname,
		Status:   certificateStatus(p.Status),
	}
}

// certificateStatus maps provider pack states onto issued, pending or failed.
func certificateStatus(status string) domain.CertificateStatus {
	switch status {
	case "active":
		return domain.CertificateStatusIssued
	case "", "initializing", "pending_validation", "pending_issuance", "pending_deployment",
		"pending_cleanup", "backup_issued", "holding_deployment":
		return domain.CertificateStatusPending
	default:
		return domain.CertificateStatusFailed
	}
}
