// Package sites provides tenant website hosting with custom domains as a
// library for an existing chi application.
//
// Setup:
//
//  1. Apply migrations with repository.Migrate (or run cmd/sitehost once)
//  2. Create a Sites instance and mount its router
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", "postgres://localhost/sitehost?sslmode=disable")
//
//	hosting, err := sites.New(sites.Config{
//	    DB:        db,
//	    JWTSecret: "your-secret-key-at-least-32-chars",
//	    TargetIP:  "203.0.113.10",
//	    Cloudflare: sites.CloudflareConfig{
//	        APIToken: "token",
//	        ZoneID:   "zone-id",
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err) // Will fail if migrations haven't been run
//	}
//
//	r := chi.NewRouter()
//	r.Mount("/", hosting.Router())
//	http.ListenAndServe(":8080", r)
package sites

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/tendant/sitehost/internal/cloudflare"
	"github.com/tendant/sitehost/internal/http/features/websites"
	"github.com/tendant/sitehost/internal/http/middleware"
	"github.com/tendant/sitehost/internal/httputil"
	"github.com/tendant/sitehost/internal/provisioning"
	"github.com/tendant/sitehost/internal/tenancy"
	"github.com/tendant/sitehost/pkg/auth"
	"github.com/tendant/sitehost/pkg/domain"
	"github.com/tendant/sitehost/pkg/repository"
)

// Config holds the configuration for the library.
type Config struct {
	// DB is the database connection (required).
	DB *sql.DB

	// JWTSecret is the secret key for verifying access tokens (required, min 32 chars).
	JWTSecret string

	// JWTIssuer is the expected issuer claim (optional).
	JWTIssuer string

	// TargetIP is the address custom domains are pointed at (required).
	TargetIP string

	// Cloudflare configures the DNS/TLS provider. Ignored when Provider is set.
	Cloudflare CloudflareConfig

	// Provider replaces the Cloudflare client (optional).
	Provider provisioning.Provider

	// DomainRegistry replaces the Postgres domain registry (optional).
	// repository.NewMemoryDomainsRepository serves single-process setups.
	DomainRegistry provisioning.Registry

	// ProviderCallTimeout bounds each provider call (default: 20 seconds).
	ProviderCallTimeout time.Duration

	// Logger is the structured logger (default: JSON to stdout).
	Logger *slog.Logger
}

// CloudflareConfig holds provider API settings.
type CloudflareConfig struct {
	APIToken string
	ZoneID   string
	BaseURL  string
}

// Sites is the main hosting instance.
type Sites struct {
	config       Config
	directory    *tenancy.Directory
	websitesRepo *repository.WebsitesRepository
	orchestrator *provisioning.Orchestrator
	verifier     *auth.TokenVerifier
}

// New creates a new instance with the given configuration.
// Returns an error if required database tables don't exist.
func New(cfg Config) (*Sites, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	// Validate schema exists
	if err := validateSchema(cfg.DB, requiredTables(cfg)); err != nil {
		return nil, err
	}

	return &Sites{
		config:       cfg,
		directory:    tenancy.NewDirectory(repository.NewTenantsRepository(cfg.DB), nil, cfg.Logger),
		websitesRepo: repository.NewWebsitesRepository(cfg.DB),
		orchestrator: newOrchestrator(cfg),
		verifier: auth.NewTokenVerifier(auth.TokenConfig{
			Secret: []byte(cfg.JWTSecret),
			Issuer: cfg.JWTIssuer,
		}),
	}, nil
}

// Router returns a chi router with the website routes behind tenant
// resolution and authentication.
//
// Routes:
//
//	POST   /v1/websites                       - Create website (optional domain)
//	GET    /v1/websites                       - List websites
//	GET    /v1/websites/{id}                  - Get website
//	PATCH  /v1/websites/{id}                  - Update website or change domain
//	DELETE /v1/websites/{id}                  - Delete website and release domain
//	GET    /v1/websites/{id}/domain           - Domain provisioning status
//	POST   /v1/websites/{id}/domain/reconcile - Re-run domain provisioning
func (s *Sites) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Logger)

	r.Group(func(r chi.Router) {
		r.Use(s.TenantMiddleware())
		r.Use(s.AuthMiddleware())
		handler := websites.NewHandler(s.config.Logger, s.websitesRepo, s.orchestrator, s.config.TargetIP)
		handler.RegisterRoutes(r, middleware.NoRateLimit())
	})

	return r
}

// TenantMiddleware returns middleware that resolves the request's tenant
// from the X-Tenant-Id header or the hostname label.
func (s *Sites) TenantMiddleware() func(http.Handler) http.Handler {
	return middleware.Tenant(s.directory, s.config.Logger)
}

// AuthMiddleware returns middleware that validates bearer tokens against the
// resolved tenant. Use after TenantMiddleware.
func (s *Sites) AuthMiddleware() func(http.Handler) http.Handler {
	return middleware.Auth(s.verifier)
}

// Orchestrator returns the domain orchestrator for advanced usage.
func (s *Sites) Orchestrator() *provisioning.Orchestrator {
	return s.orchestrator
}

// GetTenant extracts the resolved tenant from a request.
// Use after TenantMiddleware:
//
//	tenant, ok := sites.GetTenant(r)
func GetTenant(r *http.Request) (*domain.Tenant, bool) {
	return middleware.GetTenant(r.Context())
}

// HealthHandler returns a simple health check handler.
func (s *Sites) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func validateConfig(cfg *Config) error {
	if cfg.DB == nil {
		return errors.New("sites: DB is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("sites: JWTSecret is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return errors.New("sites: JWTSecret must be at least 32 characters")
	}
	if net.ParseIP(cfg.TargetIP) == nil {
		return errors.New("sites: TargetIP must be an IP address")
	}
	if cfg.Provider == nil && (cfg.Cloudflare.APIToken == "" || cfg.Cloudflare.ZoneID == "") {
		return errors.New("sites: Cloudflare APIToken and ZoneID are required when no Provider is set")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.ProviderCallTimeout == 0 {
		cfg.ProviderCallTimeout = 20 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
}

func newOrchestrator(cfg Config) *provisioning.Orchestrator {
	registry := cfg.DomainRegistry
	if registry == nil {
		registry = repository.NewDomainsRepository(cfg.DB)
	}

	provider := cfg.Provider
	if provider == nil {
		provider = cloudflare.NewClient(cloudflare.Config{
			BaseURL:  cfg.Cloudflare.BaseURL,
			APIToken: cfg.Cloudflare.APIToken,
			ZoneID:   cfg.Cloudflare.ZoneID,
		}, cfg.Logger)
	}

	return provisioning.New(registry, provider, provisioning.Options{
		CallTimeout: cfg.ProviderCallTimeout,
		Logger:      cfg.Logger,
	})
}

func requiredTables(cfg Config) []string {
	if cfg.DomainRegistry != nil {
		return []string{"tenants"}
	}
	return []string{"tenants", "domain_bindings"}
}

// validateSchema checks that required database tables exist.
func validateSchema(db *sql.DB, requiredTables []string) error {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	`

	for _, table := range requiredTables {
		var name string
		err := db.QueryRow(query, table).Scan(&name)
		if err == sql.ErrNoRows {
			return fmt.Errorf("sites: missing table '%s' - run migrations first", table)
		}
		if err != nil {
			return fmt.Errorf("sites: failed to check schema: %w", err)
		}
	}

	return nil
}
