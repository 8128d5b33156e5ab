package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tendant/sitehost/internal/cloudflare"
	"github.com/tendant/sitehost/internal/config"
	httpserver "github.com/tendant/sitehost/internal/http"
	"github.com/tendant/sitehost/internal/provisioning"
	"github.com/tendant/sitehost/internal/tenancy"
	"github.com/tendant/sitehost/pkg/auth"
	"github.com/tendant/sitehost/pkg/repository"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := repository.NewDB(repository.Config{
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		User:            cfg.DBUser,
		Password:        cfg.DBPassword,
		DBName:          cfg.DBName,
		SSLMode:         cfg.DBSSLMode,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxOpenConns / 2,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("connected to database")

	// Initialize repositories
	tenantsRepo := repository.NewTenantsRepository(db)
	websitesRepo := repository.NewWebsitesRepository(db)
	domainsRepo := repository.NewDomainsRepository(db)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 2*time.Minute)
	if cfg.MigrateOnStart {
		if err := repository.Migrate(startupCtx, db); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		n, err := repository.EnsurePartitions(startupCtx, db, tenantsRepo)
		if err != nil {
			logger.Error("failed to prepare tenant partitions", "error", err)
			os.Exit(1)
		}
		logger.Info("migrations applied", "tenant_partitions", n)
	}

	// Initialize tenant cache if configured
	var tenantCache tenancy.Cache
	if cfg.HasRedis() {
		redisClient, err := tenancy.NewRedisClient(startupCtx, cfg.RedisURL)
		if err != nil {
			// The directory works without a cache; run degraded.
			logger.Warn("tenant cache disabled", "error", err)
		} else {
			defer redisClient.Close()
			tenantCache = tenancy.NewRedisCache(redisClient, cfg.TenantCacheTTL)
			logger.Info("tenant cache enabled", "ttl", cfg.TenantCacheTTL)
		}
	}
	cancelStartup()

	// Initialize services
	directory := tenancy.NewDirectory(tenantsRepo, tenantCache, logger)

	cfClient := cloudflare.NewClient(cloudflare.Config{
		BaseURL:    cfg.Cloudflare.BaseURL,
		APIToken:   cfg.Cloudflare.APIToken,
		ZoneID:     cfg.Cloudflare.ZoneID,
		Timeout:    cfg.Cloudflare.Timeout,
		RetryCount: cfg.Cloudflare.RetryCount,
	}, logger)

	orchestrator := provisioning.New(domainsRepo, cfClient, provisioning.Options{
		RecordType:   cfg.DNSRecordType,
		DisableProxy: !cfg.DNSProxied,
		CallTimeout:  cfg.ProviderCallTimeout,
		Logger:       logger,
	})

	verifier := auth.NewTokenVerifier(auth.TokenConfig{
		Secret: []byte(cfg.JWTSecret),
		Issuer: cfg.JWTIssuer,
	})

	// Create router
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:             logger,
		Tenants:            directory,
		TokenVerifier:      verifier,
		Websites:           websitesRepo,
		Domains:            orchestrator,
		TargetIP:           cfg.AppIP,
		RateLimitConfig:    cfg.RateLimit,
		SecurityHeaders:    cfg.SecurityHeaders,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	})

	// Create HTTP server. WriteTimeout leaves room for a full provisioning
	// pass (list, create, certificate) at the provider call timeout.
	addr := cfg.Addr()
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15*time.Second + 4*cfg.ProviderCallTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
