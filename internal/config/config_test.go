package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret-key-test-secret-key-32")
	t.Setenv("CLOUDFLARE_API_TOKEN", "cf-token")
	t.Setenv("CLOUDFLARE_ZONE_ID", "zone-1")
	t.Setenv("APP_IP", "203.0.113.10")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	// Clear any other env vars that might interfere
	envVars := []string{"SERVER_ADDR", "SERVER_PORT", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE", "REDIS_URL", "TENANT_CACHE_TTL", "DNS_RECORD_TYPE"}
	for _, v := range envVars {
		t.Setenv(v, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Check defaults
	if cfg.ServerAddr != "0.0.0.0" {
		t.Errorf("ServerAddr = %q, want %q", cfg.ServerAddr, "0.0.0.0")
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 8080)
	}
	if cfg.DBHost != "localhost" {
		t.Errorf("DBHost = %q, want %q", cfg.DBHost, "localhost")
	}
	if cfg.DBPort != 25432 {
		t.Errorf("DBPort = %d, want %d", cfg.DBPort, 25432)
	}
	if cfg.DBSSLMode != "disable" {
		t.Errorf("DBSSLMode = %q, want %q", cfg.DBSSLMode, "disable")
	}
	if cfg.TenantCacheTTL != 5*time.Minute {
		t.Errorf("TenantCacheTTL = %v, want %v", cfg.TenantCacheTTL, 5*time.Minute)
	}
	if cfg.HasRedis() {
		t.Error("HasRedis() = true, want false")
	}
	if cfg.DNSRecordType != "A" || !cfg.DNSProxied {
		t.Errorf("DNS = %s proxied=%v, want A proxied=true", cfg.DNSRecordType, cfg.DNSProxied)
	}
	if cfg.Cloudflare.BaseURL != "https://api.cloudflare.com/client/v4" {
		t.Errorf("Cloudflare.BaseURL = %q", cfg.Cloudflare.BaseURL)
	}
	if cfg.Cloudflare.APIToken != "cf-token" || cfg.Cloudflare.ZoneID != "zone-1" {
		t.Errorf("Cloudflare credentials not loaded: %+v", cfg.Cloudflare)
	}
	if !cfg.RateLimit.Enabled || cfg.RateLimit.DomainWindow != time.Minute {
		t.Errorf("RateLimit = %+v", cfg.RateLimit)
	}
	if cfg.SecurityHeaders.CacheControl != "no-store" {
		t.Errorf("SecurityHeaders.CacheControl = %q, want no-store", cfg.SecurityHeaders.CacheControl)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
}

func TestLoad_RequiredVariables(t *testing.T) {
	for _, missing := range []string{"JWT_SECRET", "CLOUDFLARE_API_TOKEN", "CLOUDFLARE_ZONE_ID", "APP_IP"} {
		t.Run(missing, func(t *testing.T) {
			setRequired(t)
			t.Setenv(missing, "")

			_, err := Load()
			if err == nil {
				t.Errorf("Load should fail when %s is not set", missing)
			}
		})
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_HOST", "db.example.com")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("TENANT_CACHE_TTL", "30s")
	t.Setenv("CLOUDFLARE_RETRY_COUNT", "5")
	t.Setenv("DNS_RECORD_TYPE", "aaaa")
	t.Setenv("APP_IP", "2001:db8::10")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerPort != 9090 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 9090)
	}
	if cfg.DBHost != "db.example.com" {
		t.Errorf("DBHost = %q, want %q", cfg.DBHost, "db.example.com")
	}
	if !cfg.HasRedis() || cfg.TenantCacheTTL != 30*time.Second {
		t.Errorf("redis = %q ttl = %v", cfg.RedisURL, cfg.TenantCacheTTL)
	}
	if cfg.Cloudflare.RetryCount != 5 {
		t.Errorf("Cloudflare.RetryCount = %d, want 5", cfg.Cloudflare.RetryCount)
	}
	if cfg.DNSRecordType != "AAAA" {
		t.Errorf("DNSRecordType = %q, want AAAA", cfg.DNSRecordType)
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "short jwt secret",
			env:     map[string]string{"JWT_SECRET": "short"},
			wantErr: "JWT_SECRET",
		},
		{
			name:    "app ip not an ip",
			env:     map[string]string{"APP_IP": "app.example.com"},
			wantErr: "APP_IP",
		},
		{
			name:    "ipv6 with A record",
			env:     map[string]string{"APP_IP": "2001:db8::10"},
			wantErr: "IPv4",
		},
		{
			name:    "unsupported record type",
			env:     map[string]string{"DNS_RECORD_TYPE": "CNAME"},
			wantErr: "DNS_RECORD_TYPE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if err == nil {
				t.Fatal("Load should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
