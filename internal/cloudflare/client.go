// Package cloudflare is the DNS and TLS provisioning client. It wraps the
// Cloudflare v4 REST API for a single zone; credentials and zone are fixed
// at construction.
package cloudflare

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tendant/sitehost/pkg/domain"
)

const (
	// DefaultBaseURL is the public v4 API endpoint.
	DefaultBaseURL = "https://api.cloudflare.com/client/v4"

	// codeRecordNotFound is returned when deleting a DNS record that is gone.
	codeRecordNotFound = 81044

	listPageSize = 100
)

// Config holds client settings.
type Config struct {
	BaseURL      string
	APIToken     string
	ZoneID       string
	Timeout      time.Duration
	RetryCount   int
	RetryWait    time.Duration
	MaxRetryWait time.Duration
}

// Client talks to one zone. It is safe for concurrent use.
type Client struct {
	http   *resty.Client
	zoneID string
	logger *slog.Logger
}

// NewClient creates a client. Only GET and DELETE requests are retried;
// a create whose response is lost surfaces as a timeout instead.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIToken).
		SetRetryCount(cfg.RetryCount).
		AddRetryCondition(retryIdempotent).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.RetryWait > 0 {
		client.SetRetryWaitTime(cfg.RetryWait)
	}
	if cfg.MaxRetryWait > 0 {
		client.SetRetryMaxWaitTime(cfg.MaxRetryWait)
	}

	return &Client{
		http:   client,
		zoneID: cfg.ZoneID,
		logger: logger,
	}
}

func retryIdempotent(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil {
		return false
	}
	switch resp.Request.Method {
	case http.MethodGet, http.MethodDelete:
	default:
		return false
	}
	if err != nil {
		return true
	}
	return resp.StatusCode() >= http.StatusInternalServerError || resp.StatusCode() == http.StatusTooManyRequests
}

// CreateDNSRecord creates a record in the zone.
func (c *Client) CreateDNSRecord(ctx context.Context, params DNSRecordParams) (*domain.DNSRecord, error) {
	if params.TTL == 0 {
		params.TTL = 1 // automatic
	}

	env, _, err := c.do(ctx, domain.StageDNSCreate, c.http.R().SetBody(params), http.MethodPost, "/zones/{zone}/dns_records")
	if err != nil {
		c.logger.Error("failed to create DNS record",
			"type", params.Type, "name", params.Name, "error", err)
		return nil, err
	}

	var rec dnsRecord
	if err := json.Unmarshal(env.Result, &rec); err != nil {
		return nil, decodeError(domain.StageDNSCreate, err)
	}

	c.logger.Info("created DNS record", "id", rec.ID, "type", rec.Type, "name", rec.Name)
	return rec.toDomain(), nil
}

// DeleteDNSRecord deletes a record. A record that no longer exists counts
// as deleted.
func (c *Client) DeleteDNSRecord(ctx context.Context, recordID string) error {
	req := c.http.R().SetPathParam("id", recordID)
	_, status, err := c.do(ctx, domain.StageDNSDelete, req, http.MethodDelete, "/zones/{zone}/dns_records/{id}")
	if err != nil {
		if isGone(status, err, codeRecordNotFound) {
			c.logger.Info("DNS record already absent", "id", recordID)
			return nil
		}
		c.logger.Error("failed to delete DNS record", "id", recordID, "error", err)
		return err
	}

	c.logger.Info("deleted DNS record", "id", recordID)
	return nil
}

// ListDNSRecords returns every record in the zone, or only those named name
// when it is not empty. All pages are fetched.
func (c *Client) ListDNSRecords(ctx context.Context, name string) ([]domain.DNSRecord, error) {
	var records []domain.DNSRecord
	for page := 1; ; page++ {
		req := c.http.R().
			SetQueryParam("page", strconv.Itoa(page)).
			SetQueryParam("per_page", strconv.Itoa(listPageSize))
		if name != "" {
			req.SetQueryParam("name", name)
		}

		env, _, err := c.do(ctx, domain.StageDNSList, req, http.MethodGet, "/zones/{zone}/dns_records")
		if err != nil {
			c.logger.Error("failed to list DNS records", "name", name, "page", page, "error", err)
			return nil, err
		}

		var batch []dnsRecord
		if err := json.Unmarshal(env.Result, &batch); err != nil {
			return nil, decodeError(domain.StageDNSList, err)
		}
		for _, r := range batch {
			if name != "" && r.Name != name {
				continue
			}
			records = append(records, *r.toDomain())
		}

		if env.ResultInfo == nil || page >= env.ResultInfo.TotalPages || len(batch) == 0 {
			break
		}
	}
	return records, nil
}

// CreateCertificate orders an advanced certificate pack for hostname. The
// pack is usually still pending validation when this returns.
func (c *Client) CreateCertificate(ctx context.Context, hostname string) (*domain.Certificate, error) {
	body := certificatePackRequest{
		Hostnames:      []string{hostname},
		Type:           "advanced",
		ValidationMode: "txt",
		ValidityDays:   365,
	}

	env, _, err := c.do(ctx, domain.StageCertCreate, c.http.R().SetBody(body), http.MethodPost, "/zones/{zone}/ssl/certificate_packs")
	if err != nil {
		c.logger.Error("failed to create SSL certificate", "hostname", hostname, "error", err)
		return nil, err
	}

	var pack certificatePack
	if err := json.Unmarshal(env.Result, &pack); err != nil {
		return nil, decodeError(domain.StageCertCreate, err)
	}

	c.logger.Info("created SSL certificate", "id", pack.ID, "hostname", hostname, "status", pack.Status)
	return pack.toDomain(hostname), nil
}

// DeleteCertificate deletes a certificate pack. A missing pack counts as
// deleted.
func (c *Client) DeleteCertificate(ctx context.Context, certificateID string) error {
	req := c.http.R().SetPathParam("id", certificateID)
	_, status, err := c.do(ctx, domain.StageCertDelete, req, http.MethodDelete, "/zones/{zone}/ssl/certificate_packs/{id}")
	if err != nil {
		if isGone(status, err) {
			c.logger.Info("SSL certificate already absent", "id", certificateID)
			return nil
		}
		c.logger.Error("failed to delete SSL certificate", "id", certificateID, "error", err)
		return err
	}

	c.logger.Info("deleted SSL certificate", "id", certificateID)
	return nil
}

// CertificateStatus fetches the current state of a certificate pack. A pack
// the provider no longer has yields an error matching domain.ErrUpstreamNotFound.
func (c *Client) CertificateStatus(ctx context.Context, certificateID string) (*domain.Certificate, error) {
	req := c.http.R().SetPathParam("id", certificateID)
	env, status, err := c.do(ctx, domain.StageCertStatus, req, http.MethodGet, "/zones/{zone}/ssl/certificate_packs/{id}")
	if err != nil {
		if isGone(status, err) {
			return nil, &domain.ProviderError{
				Stage:      domain.StageCertStatus,
				Message:    "certificate pack not found",
				StatusCode: status,
				Err:        domain.ErrUpstreamNotFound,
			}
		}
		return nil, err
	}

	var pack certificatePack
	if err := json.Unmarshal(env.Result, &pack); err != nil {
		return nil, decodeError(domain.StageCertStatus, err)
	}
	return pack.toDomain(""), nil
}

// do executes req and decodes the envelope. The HTTP status is returned
// alongside provider errors so callers can recognise missing resources.
func (c *Client) do(ctx context.Context, stage domain.ProviderStage, req *resty.Request, method, path string) (*envelope, int, error) {
	resp, err := req.
		SetContext(ctx).
		SetPathParam("zone", c.zoneID).
		Execute(method, path)
	if err != nil {
		return nil, 0, transportError(stage, err)
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, resp.StatusCode(), &domain.ProviderError{
			Stage:      stage,
			Message:    fmt.Sprintf("unexpected response (HTTP %d)", resp.StatusCode()),
			StatusCode: resp.StatusCode(),
			Err:        err,
		}
	}

	if !env.Success {
		return &env, resp.StatusCode(), envelopeError(stage, resp.StatusCode(), env)
	}
	return &env, resp.StatusCode(), nil
}

func envelopeError(stage domain.ProviderStage, status int, env envelope) error {
	pe := &domain.ProviderError{
		Stage:      stage,
		Message:    "request was not successful",
		StatusCode: status,
	}
	if len(env.Errors) > 0 {
		pe.Code = env.Errors[0].Code
		pe.Message = env.Errors[0].Message
	}
	return pe
}

func transportError(stage domain.ProviderStage, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.ProviderTimeoutError{Stage: stage, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &domain.ProviderTimeoutError{Stage: stage, Err: err}
	}
	return &domain.ProviderError{Stage: stage, Message: err.Error(), Err: err}
}

func decodeError(stage domain.ProviderStage, err error) error {
	return &domain.ProviderError{Stage: stage, Message: "malformed result", Err: err}
}

// isGone reports whether a failed call means the resource does not exist.
func isGone(status int, err error, codes ...int) bool {
	if status == http.StatusNotFound {
		return true
	}
	var pe *domain.ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	for _, code := range codes {
		if pe.Code == code {
			return true
		}
	}
	return false
}
