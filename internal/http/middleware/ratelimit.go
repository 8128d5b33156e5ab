package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/tendant/sitehost/internal/config"
	"github.com/tendant/sitehost/internal/httputil"
)

// RateLimitConfig holds rate limiting configuration for a specific endpoint type.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Logger   *slog.Logger
	// PerTenant keys the limit on tenant and client IP instead of IP alone.
	// Requires Tenant to run first.
	PerTenant bool
}

// RateLimit creates an IP-based rate limiter middleware with logging.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	opts := []httprate.Option{
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Logger != nil {
				cfg.Logger.Warn("rate limit exceeded",
					"ip", r.RemoteAddr,
					"host", r.Host,
					"path", r.URL.Path,
					"method", r.Method,
					"user_agent", r.UserAgent(),
				)
			}
			httputil.Error(w, http.StatusTooManyRequests, "rate limit exceeded. please try again later")
		}),
	}
	if cfg.PerTenant {
		opts = append(opts, httprate.WithKeyFuncs(httprate.KeyByIP, keyByTenant))
	}
	return httprate.Limit(cfg.Requests, cfg.Window, opts...)
}

func keyByTenant(r *http.Request) (string, error) {
	if tenant, ok := GetTenant(r.Context()); ok {
		return tenant.ID, nil
	}
	return "", nil
}

// NoRateLimit returns a no-op middleware when rate limiting is disabled.
func NoRateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return next
	}
}

// CreateRateLimiters creates rate limiting middleware functions based on configuration.
// "api" applies to all tenant API routes, "domains" to routes that reach the
// DNS/TLS provider.
func CreateRateLimiters(cfg config.RateLimitConfig, logger *slog.Logger) map[string]func(http.Handler) http.Handler {
	if !cfg.Enabled {
		noOp := NoRateLimit()
		return map[string]func(http.Handler) http.Handler{
			"api":     noOp,
			"domains": noOp,
		}
	}

	return map[string]func(http.Handler) http.Handler{
		"api": RateLimit(RateLimitConfig{
			Requests: cfg.APIRequestsPerMinute,
			Window:   time.Minute,
			Logger:   logger,
		}),
		"domains": RateLimit(RateLimitConfig{
			Requests:  cfg.DomainRequestsPerWindow,
			Window:    cfg.DomainWindow,
			Logger:    logger,
			PerTenant: true,
		}),
	}
}
