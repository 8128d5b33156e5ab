package domain

import (
	"strings"

	"golang.org/x/net/idna"
)

var domainProfile = idna.New(
	idna.MapForLookup(),
	idna.ValidateLabels(true),
	idna.VerifyDNSLength(true),
	idna.StrictDomainName(true),
)

// NormalizeDomain lowercases, trims and converts a domain to its ASCII form.
// It requires at least two labels so that bare hostnames are rejected.
func NormalizeDomain(raw string) (string, error) {
	d := strings.TrimSuffix(strings.TrimSpace(raw), ".")
	if d == "" {
		return "", ErrInvalidDomain
	}
	ascii, err := domainProfile.ToASCII(d)
	if err != nil {
		return "", ErrInvalidDomain
	}
	ascii = strings.ToLower(ascii)
	if !strings.Contains(ascii, ".") {
		return "", ErrInvalidDomain
	}
	return ascii, nil
}
