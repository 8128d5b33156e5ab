package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/tendant/sitehost/internal/config"
	"github.com/tendant/sitehost/internal/http/features/websites"
	"github.com/tendant/sitehost/internal/http/middleware"
	"github.com/tendant/sitehost/internal/httputil"
	"github.com/tendant/sitehost/pkg/auth"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger             *slog.Logger
	Tenants            middleware.TenantResolver
	TokenVerifier      *auth.TokenVerifier
	Websites           websites.Store
	Domains            websites.Provisioner
	TargetIP           string
	RateLimitConfig    config.RateLimitConfig
	SecurityHeaders    config.SecurityHeadersConfig
	MaxRequestBodySize int64
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBodySize))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Create rate limiters for different endpoint types
	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)

	websitesHandler := websites.NewHandler(cfg.Logger, cfg.Websites, cfg.Domains, cfg.TargetIP)

	// Tenant-scoped API: resolve tenant, then authenticate against it
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["api"])
		r.Use(middleware.Tenant(cfg.Tenants, cfg.Logger))
		r.Use(middleware.Auth(cfg.TokenVerifier))
		websitesHandler.RegisterRoutes(r, rateLimiters["domains"])
	})

	return r
}
