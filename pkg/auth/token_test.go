package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tendant/sitehost/pkg/domain"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestTokenVerifier_RoundTrip(t *testing.T) {
	v := NewTokenVerifier(TokenConfig{Secret: testSecret, Issuer: "sitehost"})

	token, err := v.Sign("user-1", "acme")
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "user-1")
	}
	if claims.TenantID != "acme" {
		t.Errorf("TenantID = %q, want %q", claims.TenantID, "acme")
	}
}

func TestTokenVerifier_VerifyForTenant(t *testing.T) {
	v := NewTokenVerifier(TokenConfig{Secret: testSecret})
	token, _ := v.Sign("user-1", "acme")

	if _, err := v.VerifyForTenant(token, "acme"); err != nil {
		t.Errorf("VerifyForTenant(acme) = %v, want nil", err)
	}
	if _, err := v.VerifyForTenant(token, "globex"); !errors.Is(err, domain.ErrTenantMismatch) {
		t.Errorf("VerifyForTenant(globex) = %v, want ErrTenantMismatch", err)
	}
}

func TestTokenVerifier_Rejects(t *testing.T) {
	v := NewTokenVerifier(TokenConfig{Secret: testSecret, Issuer: "sitehost"})

	sign := func(method jwt.SigningMethod, key interface{}, claims Claims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		if err != nil {
			t.Fatalf("signing: %v", err)
		}
		return s
	}
	valid := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "sitehost",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		TenantID: "acme",
	}
	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	wrongIssuer := valid
	wrongIssuer.Issuer = "someone-else"

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", sign(jwt.SigningMethodHS256, []byte("another-secret-another-secret-xx"), valid)},
		{"expired", sign(jwt.SigningMethodHS256, testSecret, expired)},
		{"wrong issuer", sign(jwt.SigningMethodHS256, testSecret, wrongIssuer)},
		{"other hmac alg", sign(jwt.SigningMethodHS512, testSecret, valid)},
		{"none alg", sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.Verify(tt.token); !errors.Is(err, domain.ErrInvalidToken) {
				t.Errorf("Verify() = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestTokenVerifier_SignRequiresTenant(t *testing.T) {
	v := NewTokenVerifier(TokenConfig{Secret: testSecret})
	if _, err := v.Sign("user-1", ""); err == nil {
		t.Error("Sign should fail without a tenant")
	}
}
