package domain

import (
	"errors"
	"fmt"
)

// Tenant errors
var (
	ErrTenantNotFound          = errors.New("tenant not found")
	ErrTenantIdentifierMissing = errors.New("tenant identifier not provided")
	ErrInvalidTenantIdentifier = errors.New("invalid tenant identifier")
	ErrPartitionNotSet         = errors.New("tenant partition not set on context")
)

// Website and domain errors
var (
	ErrWebsiteNotFound = errors.New("website not found")
	ErrInvalidDomain   = errors.New("invalid domain name")
	ErrDomainInUse     = errors.New("domain is already in use")
	ErrDomainNotBound  = errors.New("domain is not bound")
)

// Auth errors
var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrTenantMismatch = errors.New("token does not belong to tenant")
)

// ErrUpstreamNotFound is returned by the provider client when the target of a
// read no longer exists. Deletes never return it.
var ErrUpstreamNotFound = errors.New("resource not found upstream")

// ProviderStage names the provider call that failed.
type ProviderStage string

const (
	StageDNSCreate  ProviderStage = "dns_create"
	StageDNSDelete  ProviderStage = "dns_delete"
	StageDNSList    ProviderStage = "dns_list"
	StageCertCreate ProviderStage = "cert_create"
	StageCertDelete ProviderStage = "cert_delete"
	StageCertStatus ProviderStage = "cert_status"
)

// ProviderError is a provider-level failure: either a non-success envelope
// or a transport failure that is not a timeout.
type ProviderError struct {
	Stage      ProviderStage
	Code       int
	Message    string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("provider %s failed: %s (code %d)", e.Stage, e.Message, e.Code)
	}
	return fmt.Sprintf("provider %s failed: %s", e.Stage, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ProviderTimeoutError means the outcome of the call is unknown. Callers
// must reconcile through a list or status call before retrying a create.
type ProviderTimeoutError struct {
	Stage ProviderStage
	Err   error
}

func (e *ProviderTimeoutError) Error() string {
	return fmt.Sprintf("provider %s timed out", e.Stage)
}

func (e *ProviderTimeoutError) Unwrap() error {
	return e.Err
}

// IsProviderTimeout reports whether err is a provider timeout.
func IsProviderTimeout(err error) bool {
	var te *ProviderTimeoutError
	return errors.As(err, &te)
}
