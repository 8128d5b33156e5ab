package domain

import (
	"errors"
	"testing"
)

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain", input: "example.com", want: "example.com"},
		{name: "upper case", input: "Shop.Example.COM", want: "shop.example.com"},
		{name: "trailing dot", input: "example.com.", want: "example.com"},
		{name: "surrounding space", input: "  example.com ", want: "example.com"},
		{name: "unicode", input: "bücher.example", want: "xn--bcher-kva.example"},
		{name: "empty", input: "", wantErr: true},
		{name: "single label", input: "localhost", wantErr: true},
		{name: "underscore", input: "bad_name.com", wantErr: true},
		{name: "space inside", input: "exa mple.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDomain(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDomain) {
					t.Errorf("NormalizeDomain(%q) error = %v, want ErrInvalidDomain", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeDomain(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeDomain(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsValidTenantID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"tenantA", true},
		{"acme-co", true},
		{"acme_co", true},
		{"", false},
		{"-leading", false},
		{"has space", false},
		{"semi;colon", false},
	}

	for _, tt := range tests {
		if got := IsValidTenantID(tt.id); got != tt.want {
			t.Errorf("IsValidTenantID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestProvisioningResult_Stage(t *testing.T) {
	tests := []struct {
		name   string
		result *ProvisioningResult
		want   Stage
	}{
		{name: "nil", result: nil, want: StageUnbound},
		{name: "not bound", result: &ProvisioningResult{}, want: StageUnbound},
		{name: "bound only", result: &ProvisioningResult{Bound: true}, want: StageBound},
		{
			name:   "dns created",
			result: &ProvisioningResult{Bound: true, DNSRecord: &DNSRecord{ID: "r1"}},
			want:   StageDNSCreated,
		},
		{
			name: "cert pending",
			result: &ProvisioningResult{
				Bound:       true,
				DNSRecord:   &DNSRecord{ID: "r1"},
				Certificate: &Certificate{ID: "c1", Status: CertificateStatusPending},
			},
			want: StageCertPending,
		},
		{
			name: "cert issued",
			result: &ProvisioningResult{
				Bound:       true,
				DNSRecord:   &DNSRecord{ID: "r1"},
				Certificate: &Certificate{ID: "c1", Status: CertificateStatusIssued},
			},
			want: StageCertIssued,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Stage(); got != tt.want {
				t.Errorf("Stage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProvisioningResult_Degraded(t *testing.T) {
	r := &ProvisioningResult{Bound: true}
	if r.Degraded() {
		t.Error("result without failures should not be degraded")
	}
	if r.Err() != nil {
		t.Errorf("Err() = %v, want nil", r.Err())
	}

	r.AddFailure(nil)
	if r.Degraded() {
		t.Error("nil failure should be ignored")
	}

	pe := &ProviderError{Stage: StageCertCreate, Message: "quota exceeded"}
	r.AddFailure(pe)
	if !r.Degraded() {
		t.Error("result with failure should be degraded")
	}

	var got *ProviderError
	if !errors.As(r.Err(), &got) || got.Stage != StageCertCreate {
		t.Errorf("Err() = %v, want ProviderError at cert_create", r.Err())
	}
}

func TestProviderTimeoutError(t *testing.T) {
	err := error(&ProviderTimeoutError{Stage: StageDNSCreate})
	if !IsProviderTimeout(err) {
		t.Error("IsProviderTimeout should match ProviderTimeoutError")
	}
	if IsProviderTimeout(&ProviderError{Stage: StageDNSCreate}) {
		t.Error("IsProviderTimeout should not match ProviderError")
	}
	if got := err.Error(); got != "provider dns_create timed out" {
		t.Errorf("Error() = %q", got)
	}
}
