package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tendant/sitehost/pkg/domain"
)

// DefaultTokenTTL is the lifetime of tokens issued by Sign.
const DefaultTokenTTL = 15 * time.Minute

// TokenConfig holds token verification configuration.
type TokenConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// Claims are the access token claims. TenantID scopes the token to a single
// tenant.
type Claims struct {
	jwt.RegisteredClaims
	TenantID string `json:"tenant_id"`
}

// TokenVerifier validates HS256 access tokens issued by the identity
// service.
type TokenVerifier struct {
	config TokenConfig
}

// NewTokenVerifier creates a new token verifier.
func NewTokenVerifier(config TokenConfig) *TokenVerifier {
	if config.TTL == 0 {
		config.TTL = DefaultTokenTTL
	}
	return &TokenVerifier{config: config}
}

// Verify validates a token and returns its claims.
func (v *TokenVerifier) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return v.config.Secret, nil
	}, opts...)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

// VerifyForTenant validates a token and checks that it was issued for
// tenantID.
func (v *TokenVerifier) VerifyForTenant(tokenString, tenantID string) (*Claims, error) {
	claims, err := v.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TenantID != tenantID {
		return nil, domain.ErrTenantMismatch
	}
	return claims, nil
}

// Sign issues a token for subject within tenantID.
func (v *TokenVerifier) Sign(subject, tenantID string) (string, error) {
	if subject == "" || tenantID == "" {
		return "", errors.New("auth: subject and tenant are required")
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.config.TTL)),
		},
		TenantID: tenantID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.config.Secret)
}
