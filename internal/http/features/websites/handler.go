package websites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tendant/sitehost/internal/http/middleware"
	"github.com/tendant/sitehost/internal/httputil"
	"github.com/tendant/sitehost/internal/provisioning"
	"github.com/tendant/sitehost/pkg/domain"
)

// Store persists websites in the tenant partition bound to the context.
type Store interface {
	Create(ctx context.Context, website *domain.Website) error
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*domain.Website, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*domain.Website, error)
	Update(ctx context.Context, website *domain.Website) error
	Delete(ctx context.Context, tenantID string, id uuid.UUID) error
}

// Provisioner claims and provisions custom domains. Attach and Detach must
// run to completion even if ctx is cancelled.
type Provisioner interface {
	Attach(ctx context.Context, req provisioning.AttachRequest) (*domain.ProvisioningResult, error)
	Detach(ctx context.Context, req provisioning.DetachRequest) (*domain.ProvisioningResult, error)
	Available(ctx context.Context, websiteID uuid.UUID, rawDomain string) error
	Status(ctx context.Context, rawDomain string) (*domain.ProvisioningResult, error)
}

// Handler handles website endpoints.
type Handler struct {
	logger   *slog.Logger
	websites Store
	domains  Provisioner
	targetIP string
}

// NewHandler creates a new websites handler. targetIP is the address custom
// domains are pointed at.
func NewHandler(logger *slog.Logger, websites Store, domains Provisioner, targetIP string) *Handler {
	return &Handler{
		logger:   logger,
		websites: websites,
		domains:  domains,
		targetIP: targetIP,
	}
}

// CreateRequest represents a website creation request.
type CreateRequest struct {
	Name     string `json:"name"`
	Template string `json:"template"`
	Domain   string `json:"domain,omitempty"`
}

// UpdateRequest represents a website update request. An empty Domain
// removes the custom domain.
type UpdateRequest struct {
	Name      *string `json:"name,omitempty"`
	Template  *string `json:"template,omitempty"`
	Domain    *string `json:"domain,omitempty"`
	Published *bool   `json:"published,omitempty"`
}

// WebsiteResponse represents a website.
type WebsiteResponse struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Template     string                `json:"template"`
	Domain       *string               `json:"domain"`
	Published    bool                  `json:"published"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
	Provisioning *ProvisioningResponse `json:"provisioning,omitempty"`
}

// ProvisioningResponse reports how far domain provisioning got. Warning is
// set when a provider step failed; the website change itself succeeded.
type ProvisioningResponse struct {
	Domain            string `json:"domain"`
	Stage             string `json:"stage"`
	DNSRecordID       string `json:"dns_record_id,omitempty"`
	CertificateID     string `json:"certificate_id,omitempty"`
	CertificateStatus string `json:"certificate_status,omitempty"`
	Warning           string `json:"warning,omitempty"`
}

// Create creates a website and, if a domain is given, claims and provisions it.
// POST /v1/websites
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	tenant, ok := middleware.GetTenant(r.Context())
	if !ok {
		httputil.Error(w, http.StatusBadRequest, "tenant not resolved")
		return
	}

	var req CreateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if len(req.Name) < 3 {
		httputil.Error(w, http.StatusBadRequest, "name must be at least 3 characters")
		return
	}
	if strings.TrimSpace(req.Template) == "" {
		httputil.Error(w, http.StatusBadRequest, "template is required")
		return
	}

	now := time.Now()
	website := &domain.Website{
		ID:        uuid.New(),
		TenantID:  tenant.ID,
		Name:      req.Name,
		Template:  req.Template,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var result *domain.ProvisioningResult
	if strings.TrimSpace(req.Domain) != "" {
		name, ok := h.checkAvailable(w, r, website.ID, req.Domain)
		if !ok {
			return
		}

		var err error
		result, err = h.domains.Attach(r.Context(), provisioning.AttachRequest{
			TenantID:  tenant.ID,
			WebsiteID: website.ID,
			Domain:    name,
			TargetIP:  h.targetIP,
		})
		if err != nil {
			h.writeDomainError(w, err, "failed to attach domain")
			return
		}
		website.Domain = &result.Domain
	}

	if err := h.websites.Create(r.Context(), website); err != nil {
		h.logger.Error("failed to create website", "tenant_id", tenant.ID, "error", err)
		if website.HasDomain() {
			h.rollbackClaim(r.Context(), website.ID, website.DomainName())
		}
		if errors.Is(err, domain.ErrDomainInUse) {
			httputil.Error(w, http.StatusConflict, "domain is already in use")
			return
		}
		httputil.Error(w, http.StatusInternalServerError, "failed to create website")
		return
	}

	h.logger.Info("website created", "tenant_id", tenant.ID, "website_id", website.ID, "domain", website.DomainName())
	httputil.JSON(w, http.StatusCreated, toResponse(website, result))
}

// List returns the tenant's websites.
// GET /v1/websites
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenant, ok := middleware.GetTenant(r.Context())
	if !ok {
		httputil.Error(w, http.StatusBadRequest, "tenant not resolved")
		return
	}

	websites, err := h.websites.ListByTenant(r.Context(), tenant.ID)
	if err != nil {
		h.logger.Error("failed to list websites", "tenant_id", tenant.ID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to list websites")
		return
	}

	resp := make([]WebsiteResponse, 0, len(websites))
	for _, website := range websites {
		resp = append(resp, toResponse(website, nil))
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// Get returns a single website.
// GET /v1/websites/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	website, ok := h.load(w, r)
	if !ok {
		return
	}
	httputil.JSON(w, http.StatusOK, toResponse(website, nil))
}

// Update updates a website. A new domain is claimed before the website is
// written and the previous one is released only after the write succeeds, so
// a failure at any step leaves the stored domain claimed.
// PATCH /v1/websites/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	website, ok := h.load(w, r)
	if !ok {
		return
	}

	var req UpdateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if len(name) < 3 {
			httputil.Error(w, http.StatusBadRequest, "name must be at least 3 characters")
			return
		}
		website.Name = name
	}
	if req.Template != nil {
		if strings.TrimSpace(*req.Template) == "" {
			httputil.Error(w, http.StatusBadRequest, "template is required")
			return
		}
		website.Template = *req.Template
	}
	if req.Published != nil {
		website.Published = *req.Published
	}

	previous := website.DomainName()
	var result *domain.ProvisioningResult
	if req.Domain != nil {
		var ok bool
		result, ok = h.claimDomain(w, r, website, *req.Domain)
		if !ok {
			return
		}
	}
	current := website.DomainName()

	if err := h.websites.Update(r.Context(), website); err != nil {
		h.logger.Error("failed to update website", "tenant_id", website.TenantID, "website_id", website.ID, "error", err)
		if current != "" && current != previous {
			h.rollbackClaim(r.Context(), website.ID, current)
		}
		switch {
		case errors.Is(err, domain.ErrWebsiteNotFound):
			httputil.Error(w, http.StatusNotFound, "website not found")
		case errors.Is(err, domain.ErrDomainInUse):
			httputil.Error(w, http.StatusConflict, "domain is already in use")
		default:
			httputil.Error(w, http.StatusInternalServerError, "failed to update website")
		}
		return
	}

	if previous != "" && previous != current {
		released := h.releaseDomain(r.Context(), website.ID, previous)
		if result == nil {
			result = released
		} else if released.Degraded() {
			result.AddFailure(fmt.Errorf("release %s: %w", previous, released.Err()))
		}
	}

	httputil.JSON(w, http.StatusOK, toResponse(website, result))
}

// Delete deletes a website and releases its domain.
// DELETE /v1/websites/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	website, ok := h.load(w, r)
	if !ok {
		return
	}

	if err := h.websites.Delete(r.Context(), website.TenantID, website.ID); err != nil {
		if errors.Is(err, domain.ErrWebsiteNotFound) {
			httputil.Error(w, http.StatusNotFound, "website not found")
			return
		}
		h.logger.Error("failed to delete website", "tenant_id", website.TenantID, "website_id", website.ID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to delete website")
		return
	}

	resp := map[string]interface{}{"message": "website deleted"}
	if website.HasDomain() {
		result, err := h.domains.Detach(r.Context(), provisioning.DetachRequest{
			WebsiteID: website.ID,
			Domain:    website.DomainName(),
		})
		if err != nil {
			h.logger.Warn("failed to release domain of deleted website",
				"website_id", website.ID, "domain", website.DomainName(), "error", err)
		} else if result.Degraded() {
			resp["provisioning"] = toProvisioning(result)
		}
	}

	httputil.JSON(w, http.StatusOK, resp)
}

// DomainStatus reports the website's domain binding and certificate state.
// GET /v1/websites/{id}/domain
func (h *Handler) DomainStatus(w http.ResponseWriter, r *http.Request) {
	website, ok := h.load(w, r)
	if !ok {
		return
	}
	if !website.HasDomain() {
		httputil.Error(w, http.StatusNotFound, "website has no domain")
		return
	}

	result, err := h.domains.Status(r.Context(), website.DomainName())
	switch {
	case errors.Is(err, domain.ErrDomainNotBound), errors.Is(err, domain.ErrInvalidDomain):
		result = &domain.ProvisioningResult{Domain: website.DomainName(), WebsiteID: website.ID}
	case err != nil:
		h.logger.Error("failed to read domain status", "website_id", website.ID, "domain", website.DomainName(), "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to read domain status")
		return
	case result.WebsiteID != website.ID:
		// Registry points elsewhere; this website does not hold the claim.
		result = &domain.ProvisioningResult{Domain: website.DomainName(), WebsiteID: website.ID}
	}

	httputil.JSON(w, http.StatusOK, toProvisioning(result))
}

// ReconcileDomain re-runs provisioning for the website's domain.
// POST /v1/websites/{id}/domain/reconcile
func (h *Handler) ReconcileDomain(w http.ResponseWriter, r *http.Request) {
	website, ok := h.load(w, r)
	if !ok {
		return
	}
	if !website.HasDomain() {
		httputil.Error(w, http.StatusBadRequest, "website has no domain")
		return
	}

	result, err := h.domains.Attach(r.Context(), provisioning.AttachRequest{
		TenantID:  website.TenantID,
		WebsiteID: website.ID,
		Domain:    website.DomainName(),
		TargetIP:  h.targetIP,
	})
	if err != nil {
		h.writeDomainError(w, err, "failed to reconcile domain")
		return
	}

	httputil.JSON(w, http.StatusOK, toProvisioning(result))
}

// claimDomain claims raw for website and sets website.Domain, or clears
// website.Domain when raw is empty. The previous domain is left bound.
func (h *Handler) claimDomain(w http.ResponseWriter, r *http.Request, website *domain.Website, raw string) (*domain.ProvisioningResult, bool) {
	if strings.TrimSpace(raw) == "" {
		website.Domain = nil
		return nil, true
	}

	name, ok := h.checkAvailable(w, r, website.ID, raw)
	if !ok {
		return nil, false
	}

	result, err := h.domains.Attach(r.Context(), provisioning.AttachRequest{
		TenantID:  website.TenantID,
		WebsiteID: website.ID,
		Domain:    name,
		TargetIP:  h.targetIP,
	})
	if err != nil {
		h.writeDomainError(w, err, "failed to change domain")
		return nil, false
	}

	website.Domain = &result.Domain
	return result, true
}

// releaseDomain detaches a domain the stored website no longer uses. Errors
// are reported as failures on the returned result.
func (h *Handler) releaseDomain(ctx context.Context, websiteID uuid.UUID, name string) *domain.ProvisioningResult {
	result, err := h.domains.Detach(ctx, provisioning.DetachRequest{WebsiteID: websiteID, Domain: name})
	switch {
	case errors.Is(err, domain.ErrDomainInUse):
		h.logger.Warn("previous domain belongs to another website, leaving it in place",
			"website_id", websiteID, "domain", name)
		return &domain.ProvisioningResult{Domain: name, WebsiteID: websiteID}
	case err != nil:
		h.logger.Error("failed to release previous domain", "website_id", websiteID, "domain", name, "error", err)
		result = &domain.ProvisioningResult{Domain: name, WebsiteID: websiteID}
		result.AddFailure(err)
	}
	return result
}

// checkAvailable normalises raw and rejects it when another website holds
// it. The claim itself happens in the provisioner.
func (h *Handler) checkAvailable(w http.ResponseWriter, r *http.Request, websiteID uuid.UUID, raw string) (string, bool) {
	name, err := domain.NormalizeDomain(raw)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid domain name")
		return "", false
	}

	if err := h.domains.Available(r.Context(), websiteID, name); err != nil {
		if errors.Is(err, domain.ErrDomainInUse) {
			httputil.Error(w, http.StatusBadRequest, "domain is already in use")
			return "", false
		}
		h.logger.Error("failed to check domain availability", "domain", name, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to check domain availability")
		return "", false
	}
	return name, true
}

// rollbackClaim releases a domain claimed for a website that was never
// stored.
func (h *Handler) rollbackClaim(ctx context.Context, websiteID uuid.UUID, name string) {
	result, err := h.domains.Detach(ctx, provisioning.DetachRequest{WebsiteID: websiteID, Domain: name})
	if err != nil || result.Degraded() {
		h.logger.Warn("failed to roll back domain claim",
			"website_id", websiteID, "domain", name, "error", errors.Join(err, result.Err()))
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, domain.ErrInvalidDomain):
		httputil.Error(w, http.StatusBadRequest, "invalid domain name")
	case errors.Is(err, domain.ErrDomainInUse):
		httputil.Error(w, http.StatusConflict, "domain is already in use")
	default:
		h.logger.Error(msg, "error", err)
		httputil.Error(w, http.StatusInternalServerError, msg)
	}
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*domain.Website, bool) {
	tenant, ok := middleware.GetTenant(r.Context())
	if !ok {
		httputil.Error(w, http.StatusBadRequest, "tenant not resolved")
		return nil, false
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, http.StatusNotFound, "website not found")
		return nil, false
	}

	website, err := h.websites.GetByID(r.Context(), tenant.ID, id)
	if err != nil {
		if errors.Is(err, domain.ErrWebsiteNotFound) {
			httputil.Error(w, http.StatusNotFound, "website not found")
			return nil, false
		}
		h.logger.Error("failed to load website", "tenant_id", tenant.ID, "website_id", id, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to load website")
		return nil, false
	}
	return website, true
}

func toResponse(website *domain.Website, result *domain.ProvisioningResult) WebsiteResponse {
	resp := WebsiteResponse{
		ID:        website.ID.String(),
		Name:      website.Name,
		Template:  website.Template,
		Domain:    website.Domain,
		Published: website.Published,
		CreatedAt: website.CreatedAt,
		UpdatedAt: website.UpdatedAt,
	}
	if result != nil {
		resp.Provisioning = toProvisioning(result)
	}
	return resp
}

func toProvisioning(result *domain.ProvisioningResult) *ProvisioningResponse {
	resp := &ProvisioningResponse{
		Domain: result.Domain,
		Stage:  string(result.Stage()),
	}
	if result.DNSRecord != nil {
		resp.DNSRecordID = result.DNSRecord.ID
	}
	if result.Certificate != nil {
		resp.CertificateID = result.Certificate.ID
		resp.CertificateStatus = string(result.Certificate.Status)
	}
	if result.Degraded() {
		resp.Warning = result.Err().Error()
	}
	return resp
}
