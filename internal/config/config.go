package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr      string        `env:"SERVER_ADDR" envDefault:"0.0.0.0"`
	ServerPort      int           `env:"SERVER_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Database (defaults match podman setup: make postgres-start)
	DBHost         string `env:"DB_HOST" envDefault:"localhost"`
	DBPort         int    `env:"DB_PORT" envDefault:"25432"`
	DBUser         string `env:"DB_USER" envDefault:"postgres"`
	DBPassword     string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName         string `env:"DB_NAME" envDefault:"sitehost"`
	DBSSLMode      string `env:"DB_SSLMODE" envDefault:"disable"`
	DBMaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"true"`

	// Tenant cache (optional; disabled when REDIS_URL is empty)
	RedisURL       string        `env:"REDIS_URL"`
	TenantCacheTTL time.Duration `env:"TENANT_CACHE_TTL" envDefault:"5m"`

	// JWT
	JWTSecret string `env:"JWT_SECRET,required,notEmpty"`
	JWTIssuer string `env:"JWT_ISSUER"`

	// Domain provisioning
	Cloudflare          CloudflareConfig `envPrefix:"CLOUDFLARE_"`
	AppIP               string           `env:"APP_IP,required,notEmpty"`
	DNSRecordType       string           `env:"DNS_RECORD_TYPE" envDefault:"A"`
	DNSProxied          bool             `env:"DNS_PROXIED" envDefault:"true"`
	ProviderCallTimeout time.Duration    `env:"PROVIDER_CALL_TIMEOUT" envDefault:"20s"`

	RateLimit          RateLimitConfig
	SecurityHeaders    SecurityHeadersConfig
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// CloudflareConfig holds provider API settings.
type CloudflareConfig struct {
	APIToken   string        `env:"API_TOKEN,required,notEmpty"`
	ZoneID     string        `env:"ZONE_ID,required,notEmpty"`
	BaseURL    string        `env:"BASE_URL" envDefault:"https://api.cloudflare.com/client/v4"`
	Timeout    time.Duration `env:"TIMEOUT" envDefault:"15s"`
	RetryCount int           `env:"RETRY_COUNT" envDefault:"2"`
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	Enabled                 bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	APIRequestsPerMinute    int           `env:"RATE_LIMIT_API_PER_MINUTE" envDefault:"300"`
	DomainRequestsPerWindow int           `env:"RATE_LIMIT_DOMAIN_REQUESTS" envDefault:"10"`
	DomainWindow            time.Duration `env:"RATE_LIMIT_DOMAIN_WINDOW" envDefault:"1m"`
}

// SecurityHeadersConfig holds response security header settings.
type SecurityHeadersConfig struct {
	Enabled            bool   `env:"SECURITY_HEADERS_ENABLED" envDefault:"true"`
	CSP                string `env:"SECURITY_CSP" envDefault:"default-src 'none'; frame-ancestors 'none'"`
	HSTSMaxAge         int    `env:"SECURITY_HSTS_MAX_AGE" envDefault:"31536000"`
	FrameOptions       string `env:"SECURITY_FRAME_OPTIONS" envDefault:"DENY"`
	ContentTypeOptions string `env:"SECURITY_CONTENT_TYPE_OPTIONS" envDefault:"nosniff"`
	ReferrerPolicy     string `env:"SECURITY_REFERRER_POLICY" envDefault:"no-referrer"`
	CacheControl       string `env:"SECURITY_CACHE_CONTROL" envDefault:"no-store"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// HasRedis returns true if the tenant cache is configured.
func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.ServerAddr, fmt.Sprint(c.ServerPort))
}

func (c *Config) validate() error {
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}

	c.DNSRecordType = strings.ToUpper(c.DNSRecordType)
	ip := net.ParseIP(c.AppIP)
	if ip == nil {
		return fmt.Errorf("APP_IP %q is not an IP address", c.AppIP)
	}
	switch c.DNSRecordType {
	case "A":
		if ip.To4() == nil {
			return fmt.Errorf("APP_IP %q is not an IPv4 address, required for A records", c.AppIP)
		}
	case "AAAA":
		if ip.To4() != nil {
			return fmt.Errorf("APP_IP %q is not an IPv6 address, required for AAAA records", c.AppIP)
		}
	default:
		return fmt.Errorf("DNS_RECORD_TYPE %q is not supported (A or AAAA)", c.DNSRecordType)
	}

	if c.ProviderCallTimeout <= 0 {
		return errors.New("PROVIDER_CALL_TIMEOUT must be positive")
	}
	return nil
}
